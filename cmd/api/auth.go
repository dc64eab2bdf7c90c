package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/hafizmfadli/go-review/internal/auth"
	"github.com/hafizmfadli/go-review/internal/data"
	"github.com/hafizmfadli/go-review/internal/validator"
)

// signupHandler for the "POST /v1/auth/signup" endpoint. Calling it again
// with the same username and email mails a fresh code, which replaces the
// previous one.
func (app *application) signupHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()

	data.ValidateUsername(v, input.Username)
	data.ValidateEmail(v, input.Email)
	if !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	user, err := app.models.Users.GetByUsername(input.Username)
	switch {
	case err == nil:
		if !strings.EqualFold(user.Email, input.Email) {
			v.AddError("username", "a user with this username already exists")
			app.failedValidationResponse(w, r, v.Errors)
			return
		}
	case errors.Is(err, data.ErrRecordNotFound):
		user = &data.User{
			Username: input.Username,
			Email:    input.Email,
			Role:     data.RoleUser,
		}
		err = app.models.Users.Insert(user)
		if err != nil {
			switch {
			case errors.Is(err, data.ErrDuplicateEmail):
				v.AddError("email", "a user with this email address already exists")
				app.failedValidationResponse(w, r, v.Errors)
			case errors.Is(err, data.ErrDuplicateUsername):
				v.AddError("username", "a user with this username already exists")
				app.failedValidationResponse(w, r, v.Errors)
			default:
				app.serverErrorResponse(w, r, err)
			}
			return
		}
	default:
		app.serverErrorResponse(w, r, err)
		return
	}

	code, hash, err := app.codes.Generate(user.ID, user.Email)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	user.ConfirmationCode = hash
	err = app.models.Users.Update(user)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrEditConflict):
			app.editConflictResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.background(func() {
		mailData := map[string]any{
			"username":         user.Username,
			"confirmationCode": code,
			"lifetime":         app.config.auth.codeTTL.String(),
		}

		err := app.mailer.Send(user.Email, "user_confirmation.tmpl", mailData)
		if err != nil {
			app.logger.PrintError(err, map[string]string{"username": user.Username})
			return
		}
		app.logger.PrintDebug("confirmation code sent", map[string]string{"username": user.Username})
	})

	err = app.writeJSON(w, http.StatusOK, envelope{"username": user.Username, "email": user.Email}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// tokenHandler for the "POST /v1/auth/token" endpoint. It redeems a
// confirmation code for an access token.
func (app *application) tokenHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username         string `json:"username"`
		ConfirmationCode string `json:"confirmation_code"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()

	v.Check(input.Username != "", "username", "must be provided")
	v.Check(input.ConfirmationCode != "", "confirmation_code", "must be provided")
	if !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	user, err := app.models.Users.GetByUsername(input.Username)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.codes.Verify(user.ID, user.Email, user.ConfirmationCode, input.ConfirmationCode)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCode):
			app.invalidConfirmationCodeResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	user.ConfirmationCode = ""
	user.Confirmed = true

	err = app.models.Users.Update(user)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrEditConflict):
			app.editConflictResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	token, err := app.tokens.Issue(user.ID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"token": token}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
