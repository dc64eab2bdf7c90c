package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hafizmfadli/go-review/internal/validator"
)

// Term is a named, slug-addressed catalog label. Categories and genres share
// the shape and differ only in the table that stores them.
type Term struct {
	ID   int64  `json:"-"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type (
	Category = Term
	Genre    = Term
)

func ValidateTerm(v *validator.Validator, term *Term) {
	v.Check(validator.NotBlank(term.Name), "name", "must be provided")
	v.Check(validator.MaxChars(term.Name, 256), "name", "must not be more than 256 characters long")

	v.Check(term.Slug != "", "slug", "must be provided")
	v.Check(validator.MaxChars(term.Slug, 50), "slug", "must not be more than 50 characters long")
	v.Check(validator.Matches(term.Slug, validator.SlugRX), "slug", "may contain only letters, digits, hyphens and underscores")
}

// TermModel stores terms in table, which is always one of the fixed names
// set by NewModels.
type TermModel struct {
	DB    *sql.DB
	table string
}

func (m TermModel) uniqueError(err error) error {
	if constraintViolation(err, pgUniqueViolation) == m.table+"_slug_key" {
		return ErrDuplicateSlug
	}
	return err
}

func (m TermModel) Insert(term *Term) error {
	query := fmt.Sprintf(`INSERT INTO %s (name, slug) VALUES ($1, $2) RETURNING id`, m.table)

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if err := m.DB.QueryRowContext(ctx, query, term.Name, term.Slug).Scan(&term.ID); err != nil {
		return m.uniqueError(err)
	}
	return nil
}

func (m TermModel) Get(slug string) (*Term, error) {
	query := fmt.Sprintf(`SELECT id, name, slug FROM %s WHERE slug = $1`, m.table)

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var term Term
	err := m.DB.QueryRowContext(ctx, query, slug).Scan(&term.ID, &term.Name, &term.Slug)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}
	return &term, nil
}

// GetAll returns a page of terms whose name or slug contains search,
// ignoring case.
func (m TermModel) GetAll(search string, filters Filters) ([]*Term, Metadata, error) {
	query := fmt.Sprintf(`
		SELECT count(*) OVER(), t.id, t.name, t.slug
		FROM %s t
		WHERE %s
		ORDER BY %s
		LIMIT $2 OFFSET $3`, m.table, containsCondition("t.name", "t.slug"), filters.orderBy("t"))

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query, search, filters.limit(), filters.offset())
	if err != nil {
		return nil, Metadata{}, err
	}
	defer rows.Close()

	totalRecords := 0
	terms := []*Term{}
	for rows.Next() {
		var term Term
		if err := rows.Scan(&totalRecords, &term.ID, &term.Name, &term.Slug); err != nil {
			return nil, Metadata{}, err
		}
		terms = append(terms, &term)
	}
	if err = rows.Err(); err != nil {
		return nil, Metadata{}, err
	}

	return terms, CalculateMetadata(totalRecords, filters.Page, filters.PageSize), nil
}

// Update rewrites name and slug of the term identified by ID.
func (m TermModel) Update(term *Term) error {
	query := fmt.Sprintf(`UPDATE %s SET name = $1, slug = $2 WHERE id = $3`, m.table)

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	result, err := m.DB.ExecContext(ctx, query, term.Name, term.Slug, term.ID)
	if err != nil {
		return m.uniqueError(err)
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

func (m TermModel) Delete(slug string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE slug = $1`, m.table)

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	result, err := m.DB.ExecContext(ctx, query, slug)
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
