package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hafizmfadli/go-review/internal/data"
	"github.com/hafizmfadli/go-review/internal/validator"
)

// termResource describes one slug-addressed catalog collection, categories
// or genres, served by the term handler constructors below.
type termResource struct {
	singular string
	plural   string
	store    data.TermStore
}

func (res termResource) location(slug string) string {
	return fmt.Sprintf("/v1/%s/%s", res.plural, slug)
}

// termWriteError answers a failed Insert or Update of a term.
func (app *application) termWriteError(w http.ResponseWriter, r *http.Request, res termResource, err error) {
	switch {
	case errors.Is(err, data.ErrDuplicateSlug):
		v := validator.New()
		v.AddError("slug", fmt.Sprintf("a %s with this slug already exists", res.singular))
		app.failedValidationResponse(w, r, v.Errors)
	case errors.Is(err, data.ErrRecordNotFound):
		app.notFoundResponse(w, r)
	default:
		app.serverErrorResponse(w, r, err)
	}
}

// termFromPath loads the term named by :slug, answering 404 itself when
// there is none.
func (app *application) termFromPath(w http.ResponseWriter, r *http.Request, res termResource) (*data.Term, bool) {
	term, err := res.store.Get(app.readParam(r, "slug"))
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return nil, false
	}
	return term, true
}

// listTermsHandler serves "GET /v1/<plural>", optionally filtered by a
// search string matched against name and slug.
func (app *application) listTermsHandler(res termResource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := validator.New()
		qs := r.URL.Query()

		search := app.readString(qs, "search", "")
		filters := app.readFilters(qs, v, "name", "id", "name", "slug")

		if data.ValidateFilters(v, filters); !v.Valid() {
			app.failedValidationResponse(w, r, v.Errors)
			return
		}

		terms, metadata, err := res.store.GetAll(search, filters)
		if err != nil {
			app.serverErrorResponse(w, r, err)
			return
		}

		err = app.writeJSON(w, http.StatusOK, envelope{"metadata": metadata, res.plural: terms}, nil)
		if err != nil {
			app.serverErrorResponse(w, r, err)
		}
	}
}

// createTermHandler serves "POST /v1/<plural>".
func (app *application) createTermHandler(res termResource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input struct {
			Name string `json:"name"`
			Slug string `json:"slug"`
		}

		err := app.readJSON(w, r, &input)
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}

		term := &data.Term{Name: input.Name, Slug: input.Slug}

		v := validator.New()

		if data.ValidateTerm(v, term); !v.Valid() {
			app.failedValidationResponse(w, r, v.Errors)
			return
		}

		err = res.store.Insert(term)
		if err != nil {
			app.termWriteError(w, r, res, err)
			return
		}

		headers := make(http.Header)
		headers.Set("Location", res.location(term.Slug))

		err = app.writeJSON(w, http.StatusCreated, envelope{res.singular: term}, headers)
		if err != nil {
			app.serverErrorResponse(w, r, err)
		}
	}
}

// showTermHandler serves "GET /v1/<plural>/:slug".
func (app *application) showTermHandler(res termResource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		term, ok := app.termFromPath(w, r, res)
		if !ok {
			return
		}

		err := app.writeJSON(w, http.StatusOK, envelope{res.singular: term}, nil)
		if err != nil {
			app.serverErrorResponse(w, r, err)
		}
	}
}

// updateTermHandler serves "PATCH /v1/<plural>/:slug". Absent fields keep
// their current value.
func (app *application) updateTermHandler(res termResource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		term, ok := app.termFromPath(w, r, res)
		if !ok {
			return
		}

		var input struct {
			Name *string `json:"name"`
			Slug *string `json:"slug"`
		}

		err := app.readJSON(w, r, &input)
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}

		if input.Name != nil {
			term.Name = *input.Name
		}
		if input.Slug != nil {
			term.Slug = *input.Slug
		}

		v := validator.New()

		if data.ValidateTerm(v, term); !v.Valid() {
			app.failedValidationResponse(w, r, v.Errors)
			return
		}

		err = res.store.Update(term)
		if err != nil {
			app.termWriteError(w, r, res, err)
			return
		}

		err = app.writeJSON(w, http.StatusOK, envelope{res.singular: term}, nil)
		if err != nil {
			app.serverErrorResponse(w, r, err)
		}
	}
}

// deleteTermHandler serves "DELETE /v1/<plural>/:slug".
func (app *application) deleteTermHandler(res termResource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := res.store.Delete(app.readParam(r, "slug"))
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
}
