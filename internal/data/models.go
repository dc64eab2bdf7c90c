package data

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrEditConflict      = errors.New("edit conflict")
	ErrDuplicateUsername = errors.New("duplicate username")
	ErrDuplicateEmail    = errors.New("duplicate email")
	ErrDuplicateSlug     = errors.New("duplicate slug")
	ErrDuplicateReview   = errors.New("duplicate review")
)

// queryTimeout bounds every statement issued by the models.
const queryTimeout = 3 * time.Second

// PostgreSQL error codes the models translate into sentinel errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Models groups every store the handlers depend on. Fields are interfaces so
// the HTTP layer can be exercised against in-memory implementations.
type Models struct {
	Users interface {
		Insert(user *User) error
		Get(id int64) (*User, error)
		GetByUsername(username string) (*User, error)
		GetAll(username string, filters Filters) ([]*User, Metadata, error)
		Update(user *User) error
		Delete(id int64) error
	}
	Categories TermStore
	Genres     TermStore
	Titles     interface {
		Insert(title *Title) error
		Get(id int64) (*Title, error)
		GetAll(search TitleSearch, filters Filters) ([]*Title, Metadata, error)
		Update(title *Title) error
		Delete(id int64) error
	}
	Reviews interface {
		Insert(review *Review) error
		Get(titleID, id int64) (*Review, error)
		GetAll(titleID int64, filters Filters) ([]*Review, Metadata, error)
		Update(review *Review) error
		Delete(id int64) error
	}
	Comments interface {
		Insert(comment *Comment) error
		Get(reviewID, id int64) (*Comment, error)
		GetAll(reviewID int64, filters Filters) ([]*Comment, Metadata, error)
		Update(comment *Comment) error
		Delete(id int64) error
	}
}

// TermStore is shared by categories and genres, which are both looked up by slug.
type TermStore interface {
	Insert(term *Term) error
	Get(slug string) (*Term, error)
	GetAll(search string, filters Filters) ([]*Term, Metadata, error)
	Update(term *Term) error
	Delete(slug string) error
}

// NewModels returns Models backed by PostgreSQL.
func NewModels(db *sql.DB) Models {
	return Models{
		Users:      UserModel{DB: db},
		Categories: TermModel{DB: db, table: "categories"},
		Genres:     TermModel{DB: db, table: "genres"},
		Titles:     TitleModel{DB: db},
		Reviews:    ReviewModel{DB: db},
		Comments:   CommentModel{DB: db},
	}
}

// constraintViolation returns the constraint name if err is a PostgreSQL
// error with the given code, and "" otherwise.
func constraintViolation(err error, code string) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == code {
		return pqErr.Constraint
	}
	return ""
}
