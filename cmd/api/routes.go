package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/hafizmfadli/go-review/internal/policy"
)

func (app *application) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedResponse)

	catalogWriter := func(next http.HandlerFunc) http.HandlerFunc {
		return app.requirePolicy(policy.CanWriteCatalog, next)
	}
	userManager := func(next http.HandlerFunc) http.HandlerFunc {
		return app.requirePolicy(policy.CanManageUsers, next)
	}
	contentAuthor := func(next http.HandlerFunc) http.HandlerFunc {
		return app.requirePolicy(policy.CanCreateContent, next)
	}

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthcheckHandler)

	router.HandlerFunc(http.MethodPost, "/v1/auth/signup", app.rateLimitAuth(app.signupHandler))
	router.HandlerFunc(http.MethodPost, "/v1/auth/token", app.rateLimitAuth(app.tokenHandler))

	router.HandlerFunc(http.MethodGet, "/v1/users", userManager(app.listUsersHandler))
	router.HandlerFunc(http.MethodPost, "/v1/users", userManager(app.createUserHandler))
	router.HandlerFunc(http.MethodGet, "/v1/users/:user_id", app.userRoute(app.requireAuthenticatedUser(app.showCurrentUserHandler), userManager(app.showUserHandler)))
	router.HandlerFunc(http.MethodPatch, "/v1/users/:user_id", app.userRoute(app.requireAuthenticatedUser(app.updateCurrentUserHandler), userManager(app.updateUserHandler)))
	router.HandlerFunc(http.MethodDelete, "/v1/users/:user_id", app.userRoute(nil, userManager(app.deleteUserHandler)))

	for _, res := range []termResource{
		{singular: "category", plural: "categories", store: app.models.Categories},
		{singular: "genre", plural: "genres", store: app.models.Genres},
	} {
		router.HandlerFunc(http.MethodGet, "/v1/"+res.plural, app.listTermsHandler(res))
		router.HandlerFunc(http.MethodPost, "/v1/"+res.plural, catalogWriter(app.createTermHandler(res)))
		router.HandlerFunc(http.MethodGet, "/v1/"+res.plural+"/:slug", app.showTermHandler(res))
		router.HandlerFunc(http.MethodPatch, "/v1/"+res.plural+"/:slug", catalogWriter(app.updateTermHandler(res)))
		router.HandlerFunc(http.MethodDelete, "/v1/"+res.plural+"/:slug", catalogWriter(app.deleteTermHandler(res)))
	}

	router.HandlerFunc(http.MethodGet, "/v1/titles", app.listTitlesHandler)
	router.HandlerFunc(http.MethodPost, "/v1/titles", catalogWriter(app.createTitleHandler))
	router.HandlerFunc(http.MethodGet, "/v1/titles/:title_id", app.showTitleHandler)
	router.HandlerFunc(http.MethodPatch, "/v1/titles/:title_id", catalogWriter(app.updateTitleHandler))
	router.HandlerFunc(http.MethodDelete, "/v1/titles/:title_id", catalogWriter(app.deleteTitleHandler))

	// Every content write needs a confirmed account. Edits and deletes also
	// check authorship in the handler, since that needs the stored row.
	router.HandlerFunc(http.MethodGet, "/v1/titles/:title_id/reviews", app.listReviewsHandler)
	router.HandlerFunc(http.MethodPost, "/v1/titles/:title_id/reviews", contentAuthor(app.createReviewHandler))
	router.HandlerFunc(http.MethodGet, "/v1/titles/:title_id/reviews/:review_id", app.showReviewHandler)
	router.HandlerFunc(http.MethodPatch, "/v1/titles/:title_id/reviews/:review_id", contentAuthor(app.updateReviewHandler))
	router.HandlerFunc(http.MethodDelete, "/v1/titles/:title_id/reviews/:review_id", contentAuthor(app.deleteReviewHandler))

	router.HandlerFunc(http.MethodGet, "/v1/titles/:title_id/reviews/:review_id/comments", app.listCommentsHandler)
	router.HandlerFunc(http.MethodPost, "/v1/titles/:title_id/reviews/:review_id/comments", contentAuthor(app.createCommentHandler))
	router.HandlerFunc(http.MethodGet, "/v1/titles/:title_id/reviews/:review_id/comments/:comment_id", app.showCommentHandler)
	router.HandlerFunc(http.MethodPatch, "/v1/titles/:title_id/reviews/:review_id/comments/:comment_id", contentAuthor(app.updateCommentHandler))
	router.HandlerFunc(http.MethodDelete, "/v1/titles/:title_id/reviews/:review_id/comments/:comment_id", contentAuthor(app.deleteCommentHandler))

	// Outermost first: recovery wraps everything, and rate limiting runs
	// before the token lookup hits the database.
	return app.recoverPanic(app.requestID(app.enableCORS(app.rateLimit(app.authenticate(router)))))
}
