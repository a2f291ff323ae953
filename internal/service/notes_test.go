package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blue-iris-software/notekeeper-back/internal/db"
)

func TestResolveCategoryIdempotent(t *testing.T) {
	gdb := newTestDB(t)
	s := NewNotes(gdb, newTestLogger())

	first, err := s.ResolveCategory("Work")
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	second, err := s.ResolveCategory("Work")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, gdb.Model(&db.Category{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateThenGetOwned(t *testing.T) {
	gdb := newTestDB(t)
	s := NewNotes(gdb, newTestLogger())
	owner := createTestUser(t, gdb, "alice", "alice@example.com")

	created, err := s.Create(owner, "Groceries", "milk, eggs", "Errands")
	require.NoError(t, err)

	got, err := s.GetOwned(created.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got.Title)
	assert.Equal(t, "milk, eggs", got.Content)
	assert.Equal(t, "Errands", got.Category.Name)
	assert.Equal(t, owner.ID, got.UserID)
}

func TestGetOwnedDistinguishesMissingFromForeign(t *testing.T) {
	gdb := newTestDB(t)
	s := NewNotes(gdb, newTestLogger())
	alice := createTestUser(t, gdb, "alice", "alice@example.com")
	bob := createTestUser(t, gdb, "bob", "bob@example.com")

	note, err := s.Create(alice, "Private", "for my eyes", "Personal")
	require.NoError(t, err)

	t.Run("other user gets forbidden, never not-found", func(t *testing.T) {
		_, err := s.GetOwned(note.ID, bob)
		assert.Equal(t, ErrNotOwner, err)
	})

	t.Run("missing note is not-found for anyone", func(t *testing.T) {
		_, err := s.GetOwned(note.ID+1000, alice)
		assert.Equal(t, ErrNoteNotFound, err)
		_, err = s.GetOwned(note.ID+1000, bob)
		assert.Equal(t, ErrNoteNotFound, err)
	})
}

func TestUpdateOverwritesInPlace(t *testing.T) {
	gdb := newTestDB(t)
	s := NewNotes(gdb, newTestLogger())
	alice := createTestUser(t, gdb, "alice", "alice@example.com")
	bob := createTestUser(t, gdb, "bob", "bob@example.com")

	note, err := s.Create(alice, "Draft", "v1", "Writing")
	require.NoError(t, err)

	_, err = s.Update(note.ID, alice, "Final", "v2", "Published")
	require.NoError(t, err)

	got, err := s.GetOwned(note.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, note.ID, got.ID)
	assert.Equal(t, "Final", got.Title)
	assert.Equal(t, "v2", got.Content)
	assert.Equal(t, "Published", got.Category.Name)

	t.Run("non-owner cannot update", func(t *testing.T) {
		_, err := s.Update(note.ID, bob, "Hijacked", "x", "X")
		assert.Equal(t, ErrNotOwner, err)

		got, err := s.GetOwned(note.ID, alice)
		require.NoError(t, err)
		assert.Equal(t, "Final", got.Title)
	})
}

func TestDeleteThenGet(t *testing.T) {
	gdb := newTestDB(t)
	s := NewNotes(gdb, newTestLogger())
	alice := createTestUser(t, gdb, "alice", "alice@example.com")
	bob := createTestUser(t, gdb, "bob", "bob@example.com")

	note, err := s.Create(alice, "Ephemeral", "soon gone", "Temp")
	require.NoError(t, err)

	t.Run("non-owner cannot delete", func(t *testing.T) {
		assert.Equal(t, ErrNotOwner, s.Delete(note.ID, bob))
	})

	require.NoError(t, s.Delete(note.ID, alice))

	_, err = s.GetOwned(note.ID, alice)
	assert.Equal(t, ErrNoteNotFound, err)
}

func TestListPagination(t *testing.T) {
	gdb := newTestDB(t)
	s := NewNotes(gdb, newTestLogger())
	alice := createTestUser(t, gdb, "alice", "alice@example.com")
	bob := createTestUser(t, gdb, "bob", "bob@example.com")

	for i := 1; i <= 7; i++ {
		_, err := s.Create(alice, fmt.Sprintf("note %d", i), "content", "Work")
		require.NoError(t, err)
	}
	// Another user's notes must never leak into the page.
	_, err := s.Create(bob, "bob note", "content", "Work")
	require.NoError(t, err)

	page1, total, err := s.List(alice, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
	assert.Len(t, page1, 5)

	page2, total, err := s.List(alice, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
	assert.Len(t, page2, 2)

	t.Run("stable insertion order", func(t *testing.T) {
		assert.Equal(t, "note 1", page1[0].Title)
		assert.Equal(t, "note 5", page1[4].Title)
		assert.Equal(t, "note 6", page2[0].Title)
		assert.Equal(t, "note 7", page2[1].Title)

		again, _, err := s.List(alice, 1, 5)
		require.NoError(t, err)
		assert.Equal(t, page1, again)
	})

	t.Run("out of range page is empty, not an error", func(t *testing.T) {
		page3, total, err := s.List(alice, 3, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(7), total)
		assert.Empty(t, page3)
	})
}
