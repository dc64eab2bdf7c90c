package main

import (
	"fmt"
	"net/http"
	"time"
)

// logError logs err with enough request context to find the failing call.
func (app *application) logError(r *http.Request, err error) {
	app.logger.PrintError(err, map[string]string{
		"request_method": r.Method,
		"request_url":    r.URL.String(),
		"request_id":     contextGetRequestID(r),
	})
}

// errorResponse sends message as {"error": message} with the given status.
func (app *application) errorResponse(w http.ResponseWriter, r *http.Request, status int, message any) {
	env := envelope{"error": message}

	err := app.writeJSON(w, status, env, nil)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// serverErrorResponse logs err and sends a generic 500 so internals never
// reach the client.
func (app *application) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)

	message := "the server encountered a problem and could not process your request"
	app.errorResponse(w, r, http.StatusInternalServerError, message)
}

// notFoundResponse sends a 404 Not Found. It also backs the router's NotFound handler.
func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	message := "the requested resource could not be found"
	app.errorResponse(w, r, http.StatusNotFound, message)
}

// methodNotAllowedResponse sends a 405 Method Not Allowed naming the method.
func (app *application) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	message := fmt.Sprintf("the %s method is not supported for this resource", r.Method)
	app.errorResponse(w, r, http.StatusMethodNotAllowed, message)
}

// badRequestResponse sends a 400 with err's message, e.g. a malformed body.
func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

// failedValidationResponse sends field-level messages with 400 Bad Request.
func (app *application) failedValidationResponse(w http.ResponseWriter, r *http.Request, errors map[string]string) {
	app.errorResponse(w, r, http.StatusBadRequest, errors)
}

// invalidConfirmationCodeResponse is used when a code is wrong, expired or
// already redeemed. The three cases are not told apart.
func (app *application) invalidConfirmationCodeResponse(w http.ResponseWriter, r *http.Request) {
	message := "invalid confirmation code"
	app.errorResponse(w, r, http.StatusBadRequest, message)
}

// editConflictResponse sends a 409 when the row changed since it was read.
func (app *application) editConflictResponse(w http.ResponseWriter, r *http.Request) {
	message := "unable to update the record due to an edit conflict, please try again"
	app.errorResponse(w, r, http.StatusConflict, message)
}

// rateLimitExceededResponse sends a 429 Too Many Requests.
func (app *application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request) {
	message := "rate limit exceeded"
	app.errorResponse(w, r, http.StatusTooManyRequests, message)
}

// retryAfterResponse is rateLimitExceededResponse with a Retry-After hint.
func (app *application) retryAfterResponse(w http.ResponseWriter, r *http.Request, wait time.Duration) {
	seconds := int(wait.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", fmt.Sprint(seconds))
	app.rateLimitExceededResponse(w, r)
}

// invalidAuthenticationTokenResponse is used when the bearer token is
// malformed, expired or names an unknown user.
func (app *application) invalidAuthenticationTokenResponse(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")

	message := "invalid or missing authentication token"
	app.errorResponse(w, r, http.StatusUnauthorized, message)
}

// authenticationRequiredResponse sends a 401 to anonymous requests for a
// protected resource.
func (app *application) authenticationRequiredResponse(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")

	message := "you must be authenticated to access this resource"
	app.errorResponse(w, r, http.StatusUnauthorized, message)
}

// unconfirmedAccountResponse sends a 403 to users without a redeemed code.
func (app *application) unconfirmedAccountResponse(w http.ResponseWriter, r *http.Request) {
	message := "your email address must be confirmed to access this resource"
	app.errorResponse(w, r, http.StatusForbidden, message)
}

// notPermittedResponse sends a 403 when the user's role does not allow the
// action.
func (app *application) notPermittedResponse(w http.ResponseWriter, r *http.Request) {
	message := "your user account doesn't have the necessary permissions to access this resource"
	app.errorResponse(w, r, http.StatusForbidden, message)
}
