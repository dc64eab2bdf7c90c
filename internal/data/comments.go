package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hafizmfadli/go-review/internal/validator"
)

type Comment struct {
	ID       int64     `json:"id"`
	ReviewID int64     `json:"-"`
	AuthorID int64     `json:"-"`
	Author   string    `json:"author"`
	Text     string    `json:"text"`
	PubDate  time.Time `json:"pub_date"`
}

func ValidateComment(v *validator.Validator, comment *Comment) {
	v.Check(validator.NotBlank(comment.Text), "text", "must be provided")
}

type CommentModel struct {
	DB *sql.DB
}

func (m CommentModel) Insert(comment *Comment) error {
	query := `
		INSERT INTO comments (review_id, author_id, text)
		VALUES ($1, $2, $3)
		RETURNING id, pub_date`

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	err := m.DB.QueryRowContext(ctx, query, comment.ReviewID, comment.AuthorID, comment.Text).
		Scan(&comment.ID, &comment.PubDate)
	if err != nil {
		if constraintViolation(err, pgForeignKeyViolation) != "" {
			return ErrRecordNotFound
		}
		return err
	}
	return nil
}

// Get returns the comment only if it belongs to the given review.
func (m CommentModel) Get(reviewID, id int64) (*Comment, error) {
	if id < 1 || reviewID < 1 {
		return nil, ErrRecordNotFound
	}

	query := `
		SELECT c.id, c.review_id, c.author_id, u.username, c.text, c.pub_date
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.id = $1 AND c.review_id = $2`

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var c Comment
	err := m.DB.QueryRowContext(ctx, query, id, reviewID).
		Scan(&c.ID, &c.ReviewID, &c.AuthorID, &c.Author, &c.Text, &c.PubDate)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}
	return &c, nil
}

func (m CommentModel) GetAll(reviewID int64, filters Filters) ([]*Comment, Metadata, error) {
	query := fmt.Sprintf(`
		SELECT count(*) OVER(), c.id, c.review_id, c.author_id, u.username, c.text, c.pub_date
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.review_id = $1
		ORDER BY %s
		LIMIT $2 OFFSET $3`, filters.orderBy("c"))

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query, reviewID, filters.limit(), filters.offset())
	if err != nil {
		return nil, Metadata{}, err
	}
	defer rows.Close()

	totalRecords := 0
	comments := []*Comment{}
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&totalRecords, &c.ID, &c.ReviewID, &c.AuthorID, &c.Author, &c.Text, &c.PubDate); err != nil {
			return nil, Metadata{}, err
		}
		comments = append(comments, &c)
	}
	if err = rows.Err(); err != nil {
		return nil, Metadata{}, err
	}

	return comments, CalculateMetadata(totalRecords, filters.Page, filters.PageSize), nil
}

func (m CommentModel) Update(comment *Comment) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	result, err := m.DB.ExecContext(ctx, `UPDATE comments SET text = $1 WHERE id = $2`, comment.Text, comment.ID)
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

func (m CommentModel) Delete(id int64) error {
	if id < 1 {
		return ErrRecordNotFound
	}
	return deleteByID(m.DB, "comments", id)
}
