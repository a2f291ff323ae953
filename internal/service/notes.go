package service

import (
	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/blue-iris-software/notekeeper-back/internal/db"
)

var (
	ErrNoteNotFound = errors.New("note not found")
	ErrNotOwner     = errors.New("note belongs to another user")
)

type Notes struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewNotes(db *gorm.DB, l *zap.SugaredLogger) *Notes {
	return &Notes{
		db:     db,
		logger: l,
	}
}

// ResolveCategory looks a category up by name, creating it on first use.
// When two requests race on the same new name, one insert loses to the
// unique index and the re-read returns the winner's row, so callers always
// converge on a single category id per name.
func (s *Notes) ResolveCategory(name string) (*db.Category, error) {
	category := db.Category{}
	res := s.db.Where("name = ?", name).First(&category)
	if res.Error == nil {
		return &category, nil
	}
	if res.Error != gorm.ErrRecordNotFound {
		return nil, errors.Wrap(res.Error, "lookup category")
	}

	category = db.Category{Name: name}
	res = s.db.Create(&category)
	if res.Error == nil {
		return &category, nil
	}

	category = db.Category{}
	reread := s.db.Where("name = ?", name).First(&category)
	if reread.Error != nil {
		return nil, errors.Wrap(res.Error, "create category")
	}
	return &category, nil
}

// GetOwned distinguishes a missing note from someone else's note. The two
// failures surface differently at the boundary: 404 for the former, a
// warning redirect for the latter.
func (s *Notes) GetOwned(noteID uint64, actor *db.User) (*db.Note, error) {
	note := db.Note{}
	res := s.db.Preload("Category").Where("id = ?", noteID).First(&note)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return nil, ErrNoteNotFound
		}
		return nil, errors.Wrap(res.Error, "lookup note")
	}
	if note.UserID != actor.ID {
		return nil, ErrNotOwner
	}
	return &note, nil
}

func (s *Notes) Create(owner *db.User, title, content, categoryName string) (*db.Note, error) {
	category, err := s.ResolveCategory(categoryName)
	if err != nil {
		return nil, err
	}

	model := db.Note{
		Title:      title,
		Content:    content,
		CategoryID: category.ID,
		UserID:     owner.ID,
	}
	res := s.db.Create(&model)
	if res.Error != nil {
		return nil, res.Error
	}
	return &model, nil
}

func (s *Notes) Update(noteID uint64, actor *db.User, title, content, categoryName string) (*db.Note, error) {
	note, err := s.GetOwned(noteID, actor)
	if err != nil {
		return nil, err
	}

	category, err := s.ResolveCategory(categoryName)
	if err != nil {
		return nil, err
	}

	res := s.db.Model(note).Updates(map[string]interface{}{
		"title":       title,
		"content":     content,
		"category_id": category.ID,
	})
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "update note")
	}
	return note, nil
}

func (s *Notes) Delete(noteID uint64, actor *db.User) error {
	note, err := s.GetOwned(noteID, actor)
	if err != nil {
		return err
	}
	res := s.db.Delete(note)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete note")
	}
	return nil
}

// List returns one page of the owner's notes in insertion order together
// with the total count. An out-of-range page yields an empty slice.
func (s *Notes) List(owner *db.User, page, perPage int) ([]db.Note, int64, error) {
	if page < 1 {
		page = 1
	}

	var total int64
	res := s.db.Model(&db.Note{}).Where("user_id = ?", owner.ID).Count(&total)
	if res.Error != nil {
		return nil, 0, errors.Wrap(res.Error, "count notes")
	}

	sql, args, err := squirrel.
		Select("n.id", "n.title", "n.content", "n.category_id", "n.user_id", "n.created_at", "n.updated_at").
		From("notes n").
		Where(squirrel.Eq{"n.user_id": owner.ID}).
		OrderBy("n.id").
		Limit(uint64(perPage)).
		Offset(uint64((page - 1) * perPage)).
		ToSql()
	if err != nil {
		return nil, 0, errors.Wrap(err, "build sql")
	}

	notes := make([]db.Note, 0)
	res = s.db.Raw(sql, args...).Scan(&notes)
	if res.Error != nil {
		return nil, 0, errors.Wrap(res.Error, "scan")
	}

	return notes, total, nil
}
