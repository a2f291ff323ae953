package service

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/blue-iris-software/notekeeper-back/internal/db"
)

var (
	ErrDuplicateUsername         = errors.New("username already exists")
	ErrDuplicateEmail            = errors.New("email already exists")
	ErrLoginUserNotFound         = errors.New("user not found")
	ErrLoginPasswordDoesNotMatch = errors.New("password does not match")
	ErrNoSession                 = errors.New("no session")
)

type Auth struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewAuth(db *gorm.DB, l *zap.SugaredLogger) *Auth {
	return &Auth{
		db:     db,
		logger: l,
	}
}

func (s *Auth) Register(username, email, pass string) (*db.User, error) {
	existing := db.User{}
	res := s.db.Where("username = ?", username).First(&existing)
	if res.Error == nil {
		return nil, ErrDuplicateUsername
	}
	if res.Error != gorm.ErrRecordNotFound {
		return nil, errors.Wrap(res.Error, "check username")
	}

	res = s.db.Where("email = ?", email).First(&existing)
	if res.Error == nil {
		return nil, ErrDuplicateEmail
	}
	if res.Error != gorm.ErrRecordNotFound {
		return nil, errors.Wrap(res.Error, "check email")
	}

	hash, err := s.bcryptGen(pass)
	if err != nil {
		return nil, errors.Wrap(err, "bcryptGen")
	}

	user := db.User{
		Username: username,
		Email:    email,
		Password: hash,
	}
	res = s.db.Create(&user)
	if res.Error != nil {
		return nil, res.Error
	}
	return &user, nil
}

// Login verifies the credentials and, on success, mints a fresh session
// token and stores it on the user row. Any previous session for that user
// is invalidated by the overwrite.
func (s *Auth) Login(username, pass string) (string, error) {
	user := db.User{}
	res := s.db.Where("username = ?", username).First(&user)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return "", ErrLoginUserNotFound
		}
		return "", res.Error
	}

	if err := s.bcryptCheck(user.Password, pass); err != nil {
		return "", ErrLoginPasswordDoesNotMatch
	}

	token := uuid.New().String()
	res = s.db.Model(&user).Update("token", token)
	if res.Error != nil {
		return "", errors.Wrap(res.Error, "update token")
	}

	return token, nil
}

func (s *Auth) UserByToken(token string) (*db.User, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	user := db.User{}
	res := s.db.Where("token = ?", token).First(&user)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return nil, ErrNoSession
		}
		return nil, res.Error
	}
	return &user, nil
}

func (s *Auth) Logout(user *db.User) error {
	res := s.db.Model(user).Update("token", "")
	if res.Error != nil {
		return errors.Wrap(res.Error, "clear token")
	}
	return nil
}

func (s *Auth) bcryptGen(pass string) (string, error) {
	passwordHashB, err := bcrypt.GenerateFromPassword([]byte(pass), 14)
	if err != nil {
		return "", errors.Wrap(err, "generate password hash")
	}
	return string(passwordHashB), nil
}

func (s *Auth) bcryptCheck(hash, pass string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass))
}
