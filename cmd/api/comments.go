package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hafizmfadli/go-review/internal/data"
	"github.com/hafizmfadli/go-review/internal/policy"
	"github.com/hafizmfadli/go-review/internal/validator"
)

// commentFromPath loads the comment named by :comment_id under review,
// answering 404 itself when it belongs to another review.
func (app *application) commentFromPath(w http.ResponseWriter, r *http.Request, review *data.Review) (*data.Comment, bool) {
	id, err := app.readIDParam(r, "comment_id")
	if err != nil {
		app.notFoundResponse(w, r)
		return nil, false
	}

	comment, err := app.models.Comments.Get(review.ID, id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return nil, false
	}
	return comment, true
}

// listCommentsHandler for the "GET /v1/titles/:title_id/reviews/:review_id/comments" endpoint.
func (app *application) listCommentsHandler(w http.ResponseWriter, r *http.Request) {
	review, ok := app.reviewFromPath(w, r)
	if !ok {
		return
	}

	v := validator.New()

	filters := app.readFilters(r.URL.Query(), v, "id", "id", "pub_date")
	if data.ValidateFilters(v, filters); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	comments, metadata, err := app.models.Comments.GetAll(review.ID, filters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"metadata": metadata, "comments": comments}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// createCommentHandler for the "POST /v1/titles/:title_id/reviews/:review_id/comments"
// endpoint. The author is the requesting user.
func (app *application) createCommentHandler(w http.ResponseWriter, r *http.Request) {
	review, ok := app.reviewFromPath(w, r)
	if !ok {
		return
	}

	var input struct {
		Text string `json:"text"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := app.contextGetUser(r)
	comment := &data.Comment{
		ReviewID: review.ID,
		AuthorID: user.ID,
		Author:   user.Username,
		Text:     input.Text,
	}

	v := validator.New()

	if data.ValidateComment(v, comment); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Comments.Insert(comment)
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
	headers.Set("Location", fmt.Sprintf("/v1/titles/%d/reviews/%d/comments/%d", review.TitleID, review.ID, comment.ID))

	err = app.writeJSON(w, http.StatusCreated, envelope{"comment": comment}, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showCommentHandler for the "GET .../comments/:comment_id" endpoint.
func (app *application) showCommentHandler(w http.ResponseWriter, r *http.Request) {
	review, ok := app.reviewFromPath(w, r)
	if !ok {
		return
	}
	comment, ok := app.commentFromPath(w, r, review)
	if !ok {
		return
	}

	err := app.writeJSON(w, http.StatusOK, envelope{"comment": comment}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updateCommentHandler for the "PATCH .../comments/:comment_id" endpoint.
// The author, moderators and admins may change the text.
func (app *application) updateCommentHandler(w http.ResponseWriter, r *http.Request) {
	review, ok := app.reviewFromPath(w, r)
	if !ok {
		return
	}
	comment, ok := app.commentFromPath(w, r, review)
	if !ok {
		return
	}

	if !policy.CanModifyContent(app.contextGetUser(r), comment.AuthorID) {
		app.notPermittedResponse(w, r)
		return
	}

	var input struct {
		Text *string `json:"text"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if input.Text != nil {
		comment.Text = *input.Text
	}

	v := validator.New()

	if data.ValidateComment(v, comment); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Comments.Update(comment)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"comment": comment}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// deleteCommentHandler for the "DELETE .../comments/:comment_id" endpoint.
func (app *application) deleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	review, ok := app.reviewFromPath(w, r)
	if !ok {
		return
	}
	comment, ok := app.commentFromPath(w, r, review)
	if !ok {
		return
	}

	if !policy.CanModifyContent(app.contextGetUser(r), comment.AuthorID) {
		app.notPermittedResponse(w, r)
		return
	}

	err := app.models.Comments.Delete(comment.ID)
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
