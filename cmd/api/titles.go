package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hafizmfadli/go-review/internal/data"
	"github.com/hafizmfadli/go-review/internal/validator"
)

// optionalSlug decodes a nullable slug and records whether the key was
// present at all, so PATCH can tell "unchanged" from "cleared".
type optionalSlug struct {
	Set   bool
	Value *string
}

func (s *optionalSlug) UnmarshalJSON(b []byte) error {
	s.Set = true
	if string(b) == "null" {
		s.Value = nil
		return nil
	}
	var slug string
	if err := json.Unmarshal(b, &slug); err != nil {
		return err
	}
	s.Value = &slug
	return nil
}

// titleInput is the write representation of a title: genres and category
// are referenced by slug.
type titleInput struct {
	Name        *string      `json:"name"`
	Year        *int32       `json:"year"`
	Description *string      `json:"description"`
	Genre       *[]string    `json:"genre"`
	Category    optionalSlug `json:"category"`
}

// titleWriteView mirrors titleInput in responses to POST and PATCH.
type titleWriteView struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Year        int32    `json:"year"`
	Description string   `json:"description"`
	Genre       []string `json:"genre"`
	Category    *string  `json:"category"`
}

func newTitleWriteView(t *data.Title) titleWriteView {
	view := titleWriteView{
		ID:          t.ID,
		Name:        t.Name,
		Year:        t.Year,
		Description: t.Description,
		Genre:       make([]string, 0, len(t.Genres)),
	}
	for _, g := range t.Genres {
		view.Genre = append(view.Genre, g.Slug)
	}
	if t.Category != nil {
		view.Category = &t.Category.Slug
	}
	return view
}

// applyTitleInput copies the present fields of input onto title, resolving
// slugs to stored genres and categories. Unknown slugs are recorded in v.
func (app *application) applyTitleInput(v *validator.Validator, input titleInput, title *data.Title) error {
	if input.Name != nil {
		title.Name = *input.Name
	}
	if input.Year != nil {
		title.Year = *input.Year
	}
	if input.Description != nil {
		title.Description = *input.Description
	}

	if input.Genre != nil {
		genres := make([]data.Genre, 0, len(*input.Genre))
		seen := make(map[string]bool, len(*input.Genre))
		for _, slug := range *input.Genre {
			if seen[slug] {
				continue
			}
			seen[slug] = true

			genre, err := app.models.Genres.Get(slug)
			switch {
			case err == nil:
				genres = append(genres, *genre)
			case errors.Is(err, data.ErrRecordNotFound):
				v.AddError("genre", fmt.Sprintf("genre %q does not exist", slug))
			default:
				return err
			}
		}
		title.Genres = genres
	}

	if input.Category.Set {
		title.Category = nil
		if input.Category.Value != nil {
			category, err := app.models.Categories.Get(*input.Category.Value)
			switch {
			case err == nil:
				title.Category = category
			case errors.Is(err, data.ErrRecordNotFound):
				v.AddError("category", fmt.Sprintf("category %q does not exist", *input.Category.Value))
			default:
				return err
			}
		}
	}

	return nil
}

// listTitlesHandler for the "GET /v1/titles" endpoint.
func (app *application) listTitlesHandler(w http.ResponseWriter, r *http.Request) {
	v := validator.New()
	qs := r.URL.Query()

	search := data.NewTitleSearch(qs)
	filters := app.readFilters(qs, v, "-id", "id", "name", "year")

	data.ValidateTitleSearch(v, search)
	if data.ValidateFilters(v, filters); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	titles, metadata, err := app.models.Titles.GetAll(search, filters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"metadata": metadata, "titles": titles}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// createTitleHandler for the "POST /v1/titles" endpoint.
func (app *application) createTitleHandler(w http.ResponseWriter, r *http.Request) {
	var input titleInput

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()
	v.Check(input.Year != nil, "year", "must be provided")

	title := &data.Title{Genres: []data.Genre{}}
	err = app.applyTitleInput(v, input, title)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	if data.ValidateTitle(v, title); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Titles.Insert(title)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/v1/titles/%d", title.ID))

	err = app.writeJSON(w, http.StatusCreated, envelope{"title": newTitleWriteView(title)}, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showTitleHandler for the "GET /v1/titles/:title_id" endpoint.
func (app *application) showTitleHandler(w http.ResponseWriter, r *http.Request) {
	title, ok := app.titleFromPath(w, r)
	if !ok {
		return
	}

	err := app.writeJSON(w, http.StatusOK, envelope{"title": title}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updateTitleHandler for the "PATCH /v1/titles/:title_id" endpoint.
func (app *application) updateTitleHandler(w http.ResponseWriter, r *http.Request) {
	title, ok := app.titleFromPath(w, r)
	if !ok {
		return
	}

	var input titleInput

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()

	err = app.applyTitleInput(v, input, title)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	if data.ValidateTitle(v, title); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Titles.Update(title)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrEditConflict):
			app.editConflictResponse(w, r)
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"title": newTitleWriteView(title)}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// deleteTitleHandler for the "DELETE /v1/titles/:title_id" endpoint.
func (app *application) deleteTitleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "title_id")
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	err = app.models.Titles.Delete(id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// titleFromPath loads the title named by :title_id, answering 404 itself
// when there is none.
func (app *application) titleFromPath(w http.ResponseWriter, r *http.Request) (*data.Title, bool) {
	id, err := app.readIDParam(r, "title_id")
	if err != nil {
		app.notFoundResponse(w, r)
		return nil, false
	}

	title, err := app.models.Titles.Get(id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return nil, false
	}
	return title, true
}
