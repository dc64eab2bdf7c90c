package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hafizmfadli/go-review/internal/validator"
)

// Review is one user's scored opinion of a title. A user reviews a title at
// most once; the database enforces it with reviews_author_title_key.
type Review struct {
	ID       int64     `json:"id"`
	TitleID  int64     `json:"-"`
	AuthorID int64     `json:"-"`
	Author   string    `json:"author"`
	Text     string    `json:"text"`
	Score    int       `json:"score"`
	PubDate  time.Time `json:"pub_date"`
}

const (
	MinScore = 1
	MaxScore = 10
)

func ValidateReview(v *validator.Validator, review *Review) {
	v.Check(validator.NotBlank(review.Text), "text", "must be provided")
	v.Check(review.Score >= MinScore && review.Score <= MaxScore, "score", fmt.Sprintf("must be between %d and %d", MinScore, MaxScore))
}

type ReviewModel struct {
	DB *sql.DB
}

// Insert stores the review and returns ErrDuplicateReview if the author has
// already reviewed the title, or ErrRecordNotFound if the title is gone.
func (m ReviewModel) Insert(review *Review) error {
	query := `
		INSERT INTO reviews (title_id, author_id, text, score)
		VALUES ($1, $2, $3, $4)
		RETURNING id, pub_date`

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	err := m.DB.QueryRowContext(ctx, query, review.TitleID, review.AuthorID, review.Text, review.Score).
		Scan(&review.ID, &review.PubDate)
	if err != nil {
		switch {
		case constraintViolation(err, pgUniqueViolation) == "reviews_author_title_key":
			return ErrDuplicateReview
		case constraintViolation(err, pgForeignKeyViolation) != "":
			return ErrRecordNotFound
		default:
			return err
		}
	}
	return nil
}

const reviewSelect = `
	SELECT r.id, r.title_id, r.author_id, u.username, r.text, r.score, r.pub_date
	FROM reviews r
	JOIN users u ON u.id = r.author_id`

// Get returns the review only if it belongs to the given title.
func (m ReviewModel) Get(titleID, id int64) (*Review, error) {
	if id < 1 || titleID < 1 {
		return nil, ErrRecordNotFound
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var r Review
	err := m.DB.QueryRowContext(ctx, reviewSelect+` WHERE r.id = $1 AND r.title_id = $2`, id, titleID).
		Scan(&r.ID, &r.TitleID, &r.AuthorID, &r.Author, &r.Text, &r.Score, &r.PubDate)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}
	return &r, nil
}

func (m ReviewModel) GetAll(titleID int64, filters Filters) ([]*Review, Metadata, error) {
	query := fmt.Sprintf(`
		SELECT count(*) OVER(), r.id, r.title_id, r.author_id, u.username, r.text, r.score, r.pub_date
		FROM reviews r
		JOIN users u ON u.id = r.author_id
		WHERE r.title_id = $1
		ORDER BY %s
		LIMIT $2 OFFSET $3`, filters.orderBy("r"))

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query, titleID, filters.limit(), filters.offset())
	if err != nil {
		return nil, Metadata{}, err
	}
	defer rows.Close()

	totalRecords := 0
	reviews := []*Review{}
	for rows.Next() {
		var r Review
		err := rows.Scan(&totalRecords, &r.ID, &r.TitleID, &r.AuthorID, &r.Author, &r.Text, &r.Score, &r.PubDate)
		if err != nil {
			return nil, Metadata{}, err
		}
		reviews = append(reviews, &r)
	}
	if err = rows.Err(); err != nil {
		return nil, Metadata{}, err
	}

	return reviews, CalculateMetadata(totalRecords, filters.Page, filters.PageSize), nil
}

// Update changes text and score; author, title and pub_date never change.
func (m ReviewModel) Update(review *Review) error {
	query := `UPDATE reviews SET text = $1, score = $2 WHERE id = $3`

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	result, err := m.DB.ExecContext(ctx, query, review.Text, review.Score, review.ID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Delete removes the review together with its comments.
func (m ReviewModel) Delete(id int64) error {
	if id < 1 {
		return ErrRecordNotFound
	}
	return deleteByID(m.DB, "reviews", id)
}
