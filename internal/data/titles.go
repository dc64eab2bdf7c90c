package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/lib/pq"

	"github.com/hafizmfadli/go-review/internal/validator"
)

// MinTitleYear is the earliest release year accepted for a title.
const MinTitleYear = -4000

// Title is a reviewable catalog item. Rating is the mean review score and is
// nil when the title has no reviews; it is computed on every read.
type Title struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Year        int32     `json:"year"`
	Rating      *float64  `json:"rating"`
	Description string    `json:"description"`
	Genres      []Genre   `json:"genre"`
	Category    *Category `json:"category"`
	Version     int32     `json:"-"`
}

// GenreIDs returns the ids of the title's genres.
func (t *Title) GenreIDs() []int64 {
	ids := make([]int64, 0, len(t.Genres))
	for _, g := range t.Genres {
		ids = append(ids, g.ID)
	}
	return ids
}

func ValidateTitle(v *validator.Validator, title *Title) {
	v.Check(validator.NotBlank(title.Name), "name", "must be provided")
	v.Check(validator.MaxChars(title.Name, 300), "name", "must not be more than 300 characters long")

	v.Check(title.Year >= MinTitleYear, "year", fmt.Sprintf("must be greater than or equal to %d", MinTitleYear))
	v.Check(int(title.Year) <= time.Now().Year(), "year", "must not be in the future")

	v.Check(validator.Unique(title.GenreIDs()), "genre", "must not contain duplicate values")
}

// Title search fields, in the priority order used by NewTitleSearch.
const (
	SearchGenre    = "genre"
	SearchCategory = "category"
	SearchYear     = "year"
	SearchName     = "name"
)

var titleSearchFields = []string{SearchGenre, SearchCategory, SearchYear, SearchName}

// TitleSearch restricts a title listing to one field. An empty Field means a
// full-text search of Term over name and description.
type TitleSearch struct {
	Field string
	Term  string
}

// NewTitleSearch picks the first non-empty field parameter from qs; the
// remaining ones are ignored. Without any it falls back to "search".
func NewTitleSearch(qs url.Values) TitleSearch {
	for _, field := range titleSearchFields {
		if value := qs.Get(field); value != "" {
			return TitleSearch{Field: field, Term: value}
		}
	}
	return TitleSearch{Term: qs.Get("search")}
}

func ValidateTitleSearch(v *validator.Validator, s TitleSearch) {
	if s.Field == SearchYear {
		// titles.year is a 32-bit column; larger values fail in the database.
		_, err := strconv.ParseInt(s.Term, 10, 32)
		v.Check(err == nil, SearchYear, "must be an integer value between -2147483648 and 2147483647")
	}
}

// condition returns the WHERE clause for the search and its single argument.
func (s TitleSearch) condition() (string, any) {
	switch s.Field {
	case SearchGenre:
		return `EXISTS (
			SELECT 1 FROM titles_genres tg JOIN genres g ON g.id = tg.genre_id
			WHERE tg.title_id = t.id AND g.slug = $1)`, s.Term
	case SearchCategory:
		return `c.slug = $1`, s.Term
	case SearchYear:
		year, _ := strconv.ParseInt(s.Term, 10, 32)
		return `t.year = $1`, int(year)
	case SearchName:
		return `t.name = $1`, s.Term
	default:
		return `(to_tsvector('simple', t.name || ' ' || t.description) @@ plainto_tsquery('simple', $1) OR $1 = '')`, s.Term
	}
}

type TitleModel struct {
	DB *sql.DB
}

const (
	titleColumns = `
		t.id, t.name, t.year, t.description, t.version,
		(SELECT AVG(r.score)::float8 FROM reviews r WHERE r.title_id = t.id),
		c.id, c.name, c.slug`
	titleFrom = `
		FROM titles t
		LEFT JOIN categories c ON c.id = t.category_id`
)

func scanTitle(row rowScanner, title *Title, extra ...any) error {
	var (
		rating       sql.NullFloat64
		categoryID   sql.NullInt64
		categoryName sql.NullString
		categorySlug sql.NullString
	)
	dest := append(extra,
		&title.ID, &title.Name, &title.Year, &title.Description, &title.Version,
		&rating, &categoryID, &categoryName, &categorySlug,
	)
	if err := row.Scan(dest...); err != nil {
		return err
	}

	title.Rating = nil
	if rating.Valid {
		title.Rating = &rating.Float64
	}
	title.Category = nil
	if categoryID.Valid {
		title.Category = &Category{ID: categoryID.Int64, Name: categoryName.String, Slug: categorySlug.String}
	}
	title.Genres = []Genre{}
	return nil
}

func (m TitleModel) Insert(title *Title) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO titles (name, year, description, category_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, version`

	err = tx.QueryRowContext(ctx, query, title.Name, title.Year, title.Description, title.categoryID()).
		Scan(&title.ID, &title.Version)
	if err != nil {
		return titleReferenceError(err)
	}
	if err := linkGenres(ctx, tx, title); err != nil {
		return err
	}
	return tx.Commit()
}

func (t *Title) categoryID() sql.NullInt64 {
	if t.Category == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Category.ID, Valid: true}
}

func linkGenres(ctx context.Context, tx *sql.Tx, title *Title) error {
	if len(title.Genres) == 0 {
		return nil
	}
	query := `
		INSERT INTO titles_genres (title_id, genre_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING`

	_, err := tx.ExecContext(ctx, query, title.ID, pq.Array(title.GenreIDs()))
	return titleReferenceError(err)
}

// titleReferenceError maps a foreign key violation, i.e. a category or genre
// deleted between lookup and write, to ErrRecordNotFound.
func titleReferenceError(err error) error {
	if err != nil && constraintViolation(err, pgForeignKeyViolation) != "" {
		return ErrRecordNotFound
	}
	return err
}

func (m TitleModel) Get(id int64) (*Title, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	query := `SELECT ` + titleColumns + titleFrom + ` WHERE t.id = $1`

	var title Title
	err := scanTitle(m.DB.QueryRowContext(ctx, query, id), &title)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	if err := m.loadGenres(ctx, []*Title{&title}); err != nil {
		return nil, err
	}
	return &title, nil
}

func (m TitleModel) GetAll(search TitleSearch, filters Filters) ([]*Title, Metadata, error) {
	condition, arg := search.condition()
	query := fmt.Sprintf(`
		SELECT count(*) OVER(), %s %s
		WHERE %s
		ORDER BY %s
		LIMIT $2 OFFSET $3`, titleColumns, titleFrom, condition, filters.orderBy("t"))

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query, arg, filters.limit(), filters.offset())
	if err != nil {
		return nil, Metadata{}, err
	}
	defer rows.Close()

	totalRecords := 0
	titles := []*Title{}
	for rows.Next() {
		var title Title
		if err := scanTitle(rows, &title, &totalRecords); err != nil {
			return nil, Metadata{}, err
		}
		titles = append(titles, &title)
	}
	if err = rows.Err(); err != nil {
		return nil, Metadata{}, err
	}

	if err := m.loadGenres(ctx, titles); err != nil {
		return nil, Metadata{}, err
	}
	return titles, CalculateMetadata(totalRecords, filters.Page, filters.PageSize), nil
}

// loadGenres fills Genres for every title with a single query.
func (m TitleModel) loadGenres(ctx context.Context, titles []*Title) error {
	if len(titles) == 0 {
		return nil
	}
	byID := make(map[int64]*Title, len(titles))
	ids := make([]int64, 0, len(titles))
	for _, t := range titles {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	query := `
		SELECT tg.title_id, g.id, g.name, g.slug
		FROM titles_genres tg
		JOIN genres g ON g.id = tg.genre_id
		WHERE tg.title_id = ANY($1)
		ORDER BY g.name, g.id`

	rows, err := m.DB.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			titleID int64
			genre   Genre
		)
		if err := rows.Scan(&titleID, &genre.ID, &genre.Name, &genre.Slug); err != nil {
			return err
		}
		if t, ok := byID[titleID]; ok {
			t.Genres = append(t.Genres, genre)
		}
	}
	return rows.Err()
}

// Update replaces the title's columns and genre links, guarded by Version.
func (m TitleModel) Update(title *Title) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE titles
		SET name = $1, year = $2, description = $3, category_id = $4, version = version + 1
		WHERE id = $5 AND version = $6
		RETURNING version`

	args := []any{title.Name, title.Year, title.Description, title.categoryID(), title.ID, title.Version}

	err = tx.QueryRowContext(ctx, query, args...).Scan(&title.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrEditConflict
		default:
			return titleReferenceError(err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM titles_genres WHERE title_id = $1`, title.ID); err != nil {
		return err
	}
	if err := linkGenres(ctx, tx, title); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes the title; its reviews and their comments cascade.
func (m TitleModel) Delete(id int64) error {
	if id < 1 {
		return ErrRecordNotFound
	}
	return deleteByID(m.DB, "titles", id)
}
