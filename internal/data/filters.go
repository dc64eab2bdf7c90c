package data

import (
	"fmt"
	"math"
	"strings"

	"github.com/hafizmfadli/go-review/internal/validator"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Filters carries the pagination and ordering parameters of a list request.
type Filters struct {
	Page         int
	PageSize     int
	Sort         string
	SortSafelist []string
}

// sortColumn strips the direction prefix from Sort. It panics if Sort is not
// in the safelist, which would mean a handler skipped ValidateFilters.
func (f Filters) sortColumn() string {
	for _, safeValue := range f.SortSafelist {
		if f.Sort == safeValue {
			return strings.TrimPrefix(f.Sort, "-")
		}
	}
	panic("unsafe sort parameter: " + f.Sort)
}

func (f Filters) sortDirection() string {
	if strings.HasPrefix(f.Sort, "-") {
		return "DESC"
	}
	return "ASC"
}

// orderBy builds an ORDER BY body for the table alias, with id as the
// tiebreaker so pages are stable.
func (f Filters) orderBy(alias string) string {
	column := f.sortColumn()
	if column == "id" {
		return fmt.Sprintf("%s.id %s", alias, f.sortDirection())
	}
	return fmt.Sprintf("%s.%s %s, %s.id ASC", alias, column, f.sortDirection(), alias)
}

// containsCondition matches rows where any of columns contains $1, ignoring
// case. An empty $1 matches everything. strpos treats $1 literally, so % and
// _ are not wildcards.
func containsCondition(columns ...string) string {
	terms := make([]string, 0, len(columns)+1)
	for _, column := range columns {
		terms = append(terms, fmt.Sprintf("strpos(lower(%s), lower($1)) > 0", column))
	}
	terms = append(terms, "$1 = ''")
	return "(" + strings.Join(terms, " OR ") + ")"
}

func (f Filters) limit() int {
	return f.PageSize
}

func (f Filters) offset() int {
	return (f.Page - 1) * f.PageSize
}

func ValidateFilters(v *validator.Validator, f Filters) {
	v.Check(f.Page > 0, "page", "must be greater than zero")
	v.Check(f.Page <= 10_000_000, "page", "must be a maximum of 10 million")
	v.Check(f.PageSize > 0, "page_size", "must be greater than zero")
	v.Check(f.PageSize <= MaxPageSize, "page_size", "must be a maximum of 100")
	v.Check(validator.In(f.Sort, f.SortSafelist...), "sort", "invalid sort value")
}

// Metadata describes the page returned by a list query.
type Metadata struct {
	CurrentPage  int `json:"current_page,omitempty"`
	PageSize     int `json:"page_size,omitempty"`
	FirstPage    int `json:"first_page,omitempty"`
	LastPage     int `json:"last_page,omitempty"`
	TotalRecords int `json:"total_records,omitempty"`
}

// CalculateMetadata derives pagination metadata; the last page is rounded up,
// so 12 records with a page size of 5 give a last page of 3.
func CalculateMetadata(totalRecords, page, pageSize int) Metadata {
	if totalRecords == 0 {
		return Metadata{}
	}

	return Metadata{
		CurrentPage:  page,
		PageSize:     pageSize,
		FirstPage:    1,
		LastPage:     int(math.Ceil(float64(totalRecords) / float64(pageSize))),
		TotalRecords: totalRecords,
	}
}
