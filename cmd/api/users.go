package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hafizmfadli/go-review/internal/data"
	"github.com/hafizmfadli/go-review/internal/validator"
)

// userRoute dispatches /v1/users/:user_id to me when the parameter is the
// literal "me", and to byID otherwise. A nil me answers 405.
func (app *application) userRoute(me, byID http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if app.readParam(r, "user_id") != data.ReservedUsername {
			byID(w, r)
			return
		}
		if me == nil {
			app.methodNotAllowedResponse(w, r)
			return
		}
		me(w, r)
	}
}

// userInput is the body of POST and PATCH user requests. Pointer fields let
// PATCH tell an absent key from an empty value.
type userInput struct {
	Username  *string    `json:"username"`
	Email     *string    `json:"email"`
	FirstName *string    `json:"first_name"`
	LastName  *string    `json:"last_name"`
	Bio       *string    `json:"bio"`
	Role      *data.Role `json:"role"`
}

// apply copies the present fields onto user. Email and role are only
// copied when privileged is set.
func (in userInput) apply(user *data.User, privileged bool) {
	if in.Username != nil {
		user.Username = *in.Username
	}
	if in.FirstName != nil {
		user.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		user.LastName = *in.LastName
	}
	if in.Bio != nil {
		user.Bio = *in.Bio
	}
	if !privileged {
		return
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.Role != nil {
		user.Role = *in.Role
	}
}

// userWriteError answers a failed Insert or Update of a user.
func (app *application) userWriteError(w http.ResponseWriter, r *http.Request, err error) {
	v := validator.New()

	switch {
	case errors.Is(err, data.ErrDuplicateUsername):
		v.AddError("username", "a user with this username already exists")
		app.failedValidationResponse(w, r, v.Errors)
	case errors.Is(err, data.ErrDuplicateEmail):
		v.AddError("email", "a user with this email address already exists")
		app.failedValidationResponse(w, r, v.Errors)
	case errors.Is(err, data.ErrEditConflict):
		app.editConflictResponse(w, r)
	default:
		app.serverErrorResponse(w, r, err)
	}
}

// listUsersHandler for the "GET /v1/users" endpoint.
func (app *application) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	v := validator.New()
	qs := r.URL.Query()

	search := app.readString(qs, "search", "")
	filters := app.readFilters(qs, v, "id", "id", "username", "email", "role")

	if data.ValidateFilters(v, filters); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	users, metadata, err := app.models.Users.GetAll(search, filters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"metadata": metadata, "users": users}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// createUserHandler for the "POST /v1/users" endpoint.
func (app *application) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var input userInput

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := &data.User{Role: data.RoleUser}
	input.apply(user, true)

	v := validator.New()

	if data.ValidateUser(v, user); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Users.Insert(user)
	if err != nil {
		app.userWriteError(w, r, err)
		return
	}

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/v1/users/%d", user.ID))

	err = app.writeJSON(w, http.StatusCreated, envelope{"user": user}, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showUserHandler for the "GET /v1/users/:user_id" endpoint.
func (app *application) showUserHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := app.userFromPath(w, r)
	if !ok {
		return
	}

	err := app.writeJSON(w, http.StatusOK, envelope{"user": user}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updateUserHandler for the "PATCH /v1/users/:user_id" endpoint.
func (app *application) updateUserHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := app.userFromPath(w, r)
	if !ok {
		return
	}
	app.updateUser(w, r, user, true)
}

// deleteUserHandler for the "DELETE /v1/users/:user_id" endpoint.
func (app *application) deleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "user_id")
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	err = app.models.Users.Delete(id)
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

// showCurrentUserHandler for the "GET /v1/users/me" endpoint.
func (app *application) showCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	user := app.contextGetUser(r)

	err := app.writeJSON(w, http.StatusOK, envelope{"user": user}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updateCurrentUserHandler for the "PATCH /v1/users/me" endpoint. Email and
// role in the body are ignored.
func (app *application) updateCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	current := *app.contextGetUser(r)
	app.updateUser(w, r, &current, false)
}

func (app *application) updateUser(w http.ResponseWriter, r *http.Request, user *data.User, privileged bool) {
	var input userInput

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	input.apply(user, privileged)

	v := validator.New()

	if data.ValidateUser(v, user); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Users.Update(user)
	if err != nil {
		app.userWriteError(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"user": user}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// userFromPath loads the user named by :user_id, answering 404 itself when
// there is none.
func (app *application) userFromPath(w http.ResponseWriter, r *http.Request) (*data.User, bool) {
	id, err := app.readIDParam(r, "user_id")
	if err != nil {
		app.notFoundResponse(w, r)
		return nil, false
	}

	user, err := app.models.Users.Get(id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return nil, false
	}
	return user, true
}
