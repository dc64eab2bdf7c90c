package data

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hafizmfadli/go-review/internal/validator"
)

func TestCalculateMetadata(t *testing.T) {
	assert.Equal(t, Metadata{}, CalculateMetadata(0, 1, 20))
	assert.Equal(t, Metadata{
		CurrentPage:  2,
		PageSize:     5,
		FirstPage:    1,
		LastPage:     3,
		TotalRecords: 12,
	}, CalculateMetadata(12, 2, 5))
}

func TestFiltersOrderBy(t *testing.T) {
	f := Filters{Page: 3, PageSize: 10, Sort: "-year", SortSafelist: []string{"id", "year", "-id", "-year"}}

	assert.Equal(t, "t.year DESC, t.id ASC", f.orderBy("t"))
	assert.Equal(t, 10, f.limit())
	assert.Equal(t, 20, f.offset())

	f.Sort = "-id"
	assert.Equal(t, "t.id DESC", f.orderBy("t"))
}

func TestFiltersUnsafeSortPanics(t *testing.T) {
	f := Filters{Sort: "id; DROP TABLE users", SortSafelist: []string{"id"}}
	assert.Panics(t, func() { f.sortColumn() })
}

func TestContainsCondition(t *testing.T) {
	assert.Equal(t,
		"(strpos(lower(t.name), lower($1)) > 0 OR strpos(lower(t.slug), lower($1)) > 0 OR $1 = '')",
		containsCondition("t.name", "t.slug"))
	assert.NotContains(t, containsCondition("u.username::text"), "LIKE")
}

func TestValidateFilters(t *testing.T) {
	tests := []struct {
		name    string
		filters Filters
		invalid []string
	}{
		{"valid", Filters{Page: 1, PageSize: 20, Sort: "id", SortSafelist: []string{"id"}}, nil},
		{"zero page", Filters{Page: 0, PageSize: 20, Sort: "id", SortSafelist: []string{"id"}}, []string{"page"}},
		{"page size too big", Filters{Page: 1, PageSize: 101, Sort: "id", SortSafelist: []string{"id"}}, []string{"page_size"}},
		{"bad sort", Filters{Page: 1, PageSize: 20, Sort: "score", SortSafelist: []string{"id"}}, []string{"sort"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validator.New()
			ValidateFilters(v, tt.filters)
			assert.Len(t, v.Errors, len(tt.invalid))
			for _, key := range tt.invalid {
				assert.Contains(t, v.Errors, key)
			}
		})
	}
}
