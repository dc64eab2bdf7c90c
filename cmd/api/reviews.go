package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hafizmfadli/go-review/internal/data"
	"github.com/hafizmfadli/go-review/internal/policy"
	"github.com/hafizmfadli/go-review/internal/validator"
)

// reviewFromPath loads the review named by :review_id under :title_id,
// answering 404 itself when either does not match.
func (app *application) reviewFromPath(w http.ResponseWriter, r *http.Request) (*data.Review, bool) {
	titleID, err := app.readIDParam(r, "title_id")
	if err != nil {
		app.notFoundResponse(w, r)
		return nil, false
	}
	id, err := app.readIDParam(r, "review_id")
	if err != nil {
		app.notFoundResponse(w, r)
		return nil, false
	}

	review, err := app.models.Reviews.Get(titleID, id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return nil, false
	}
	return review, true
}

// listReviewsHandler for the "GET /v1/titles/:title_id/reviews" endpoint.
func (app *application) listReviewsHandler(w http.ResponseWriter, r *http.Request) {
	title, ok := app.titleFromPath(w, r)
	if !ok {
		return
	}

	v := validator.New()

	filters := app.readFilters(r.URL.Query(), v, "id", "id", "score", "pub_date")
	if data.ValidateFilters(v, filters); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	reviews, metadata, err := app.models.Reviews.GetAll(title.ID, filters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"metadata": metadata, "reviews": reviews}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// createReviewHandler for the "POST /v1/titles/:title_id/reviews" endpoint.
// The author is the requesting user; a second review of the same title by
// the same user is rejected.
func (app *application) createReviewHandler(w http.ResponseWriter, r *http.Request) {
	title, ok := app.titleFromPath(w, r)
	if !ok {
		return
	}

	var input struct {
		Text  string `json:"text"`
		Score int    `json:"score"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := app.contextGetUser(r)
	review := &data.Review{
		TitleID:  title.ID,
		AuthorID: user.ID,
		Author:   user.Username,
		Text:     input.Text,
		Score:    input.Score,
	}

	v := validator.New()

	if data.ValidateReview(v, review); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Reviews.Insert(review)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrDuplicateReview):
			v.AddError("review", "you have already reviewed this title")
			app.failedValidationResponse(w, r, v.Errors)
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/v1/titles/%d/reviews/%d", title.ID, review.ID))

	err = app.writeJSON(w, http.StatusCreated, envelope{"review": review}, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showReviewHandler for the "GET /v1/titles/:title_id/reviews/:review_id" endpoint.
func (app *application) showReviewHandler(w http.ResponseWriter, r *http.Request) {
	review, ok := app.reviewFromPath(w, r)
	if !ok {
		return
	}

	err := app.writeJSON(w, http.StatusOK, envelope{"review": review}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updateReviewHandler for the "PATCH /v1/titles/:title_id/reviews/:review_id"
// endpoint. Only text and score can change.
func (app *application) updateReviewHandler(w http.ResponseWriter, r *http.Request) {
	review, ok := app.reviewFromPath(w, r)
	if !ok {
		return
	}

	if !policy.CanModifyContent(app.contextGetUser(r), review.AuthorID) {
		app.notPermittedResponse(w, r)
		return
	}

	var input struct {
		Text  *string `json:"text"`
		Score *int    `json:"score"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if input.Text != nil {
		review.Text = *input.Text
	}
	if input.Score != nil {
		review.Score = *input.Score
	}

	v := validator.New()

	if data.ValidateReview(v, review); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Reviews.Update(review)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"review": review}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// deleteReviewHandler for the "DELETE /v1/titles/:title_id/reviews/:review_id" endpoint.
func (app *application) deleteReviewHandler(w http.ResponseWriter, r *http.Request) {
	review, ok := app.reviewFromPath(w, r)
	if !ok {
		return
	}

	if !policy.CanModifyContent(app.contextGetUser(r), review.AuthorID) {
		app.notPermittedResponse(w, r)
		return
	}

	err := app.models.Reviews.Delete(review.ID)
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
