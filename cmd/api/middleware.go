package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hafizmfadli/go-review/internal/auth"
	"github.com/hafizmfadli/go-review/internal/data"
)

// recoverPanic turns a panic in any later handler into a 500 response.
func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The deferred function runs while Go unwinds the stack after a panic.
		defer func() {
			if err := recover(); err != nil {
				// "Connection: close" makes net/http close the connection once
				// the response has been sent.
				w.Header().Set("Connection", "close")
				// recover returns an any; normalize it into an error for the
				// log entry.
				app.serverErrorResponse(w, r, fmt.Errorf("%s", err))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestID tags the request with an id, reusing a well-formed X-Request-Id
// from the client, and echoes it in the response.
func (app *application) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Anything that is not a UUID is replaced.
		id := r.Header.Get("X-Request-Id")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, contextSetRequestID(r, id))
	})
}

// enableCORS allows the configured origins. With no trusted origins the
// handler is returned unchanged.
func (app *application) enableCORS(next http.Handler) http.Handler {
	if len(app.config.cors.trustedOrigins) == 0 {
		return next
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: app.config.cors.trustedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Location", "X-Request-Id"},
		MaxAge:         300,
	})(next)
}

// rateLimit applies a token bucket per client IP. Idle clients are evicted
// by a background sweep.
func (app *application) rateLimit(next http.Handler) http.Handler {
	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	var (
		mu      sync.Mutex
		clients = make(map[string]*client)
	)

	// Once a minute, drop clients that have not been seen for three minutes.
	go func() {
		for {
			time.Sleep(time.Minute)

			// Hold the lock so no limiter check runs during the sweep.
			mu.Lock()
			for ip, client := range clients {
				if time.Since(client.lastSeen) > 3*time.Minute {
					delete(clients, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if app.config.limiter.enabled {
			ip := clientIP(r)

			mu.Lock()

			// First request from this IP: give it its own token bucket.
			if _, found := clients[ip]; !found {
				clients[ip] = &client{
					limiter: rate.NewLimiter(rate.Limit(app.config.limiter.rps), app.config.limiter.burst),
				}
			}
			clients[ip].lastSeen = time.Now()

			// Allow takes a token, or reports false when the bucket is empty.
			if !clients[ip].limiter.Allow() {
				mu.Unlock()
				app.rateLimitExceededResponse(w, r)
				return
			}

			// Not deferred: the lock must not be held while downstream
			// handlers run.
			mu.Unlock()
		}

		next.ServeHTTP(w, r)
	})
}

// rateLimitAuth applies the shared Redis window to the credential endpoints
// when one is configured. A Redis failure is logged and the request let
// through.
func (app *application) rateLimitAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if app.authLimiter == nil || !app.config.limiter.enabled {
			next.ServeHTTP(w, r)
			return
		}

		// One window per client IP, shared by signup and token requests and
		// by every API instance using the same Redis.
		key := "auth:" + clientIP(r)
		ok, wait, err := app.authLimiter.Allow(r.Context(), key)
		if err != nil {
			// Fail open: a Redis outage must not lock everyone out of
			// signup and login. The per-IP limiter still applies.
			app.logger.PrintWarn("auth rate limiter unavailable", map[string]string{
				"error":          err.Error(),
				"request_method": r.Method,
				"request_url":    r.URL.String(),
			})
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			app.retryAfterResponse(w, r, wait)
			return
		}
		next.ServeHTTP(w, r)
	}
}

// clientIP returns the host part of RemoteAddr, or RemoteAddr unchanged if
// it has no port.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// authenticate resolves the bearer token to a user. Requests without an
// Authorization header continue as data.AnonymousUser.
func (app *application) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Responses differ by token, so caches must key on the header.
		w.Header().Add("Vary", "Authorization")

		authorizationHeader := r.Header.Get("Authorization")
		if authorizationHeader == "" {
			r = app.contextSetUser(r, data.AnonymousUser)
			next.ServeHTTP(w, r)
			return
		}

		// Expect "Bearer <token>"; anything else is rejected outright rather
		// than treated as anonymous.
		headerParts := strings.Split(authorizationHeader, " ")
		if len(headerParts) != 2 || headerParts[0] != "Bearer" {
			app.invalidAuthenticationTokenResponse(w, r)
			return
		}

		// Parse checks the signature, algorithm and expiry and yields the
		// user id from the subject claim.
		userID, err := app.tokens.Parse(headerParts[1])
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidToken):
				app.invalidAuthenticationTokenResponse(w, r)
			default:
				app.serverErrorResponse(w, r, err)
			}
			return
		}

		// The token may outlive its user: a deleted account is treated as an
		// invalid token.
		user, err := app.models.Users.Get(userID)
		if err != nil {
			switch {
			case errors.Is(err, data.ErrRecordNotFound):
				app.invalidAuthenticationTokenResponse(w, r)
			default:
				app.serverErrorResponse(w, r, err)
			}
			return
		}

		r = app.contextSetUser(r, user)
		next.ServeHTTP(w, r)
	})
}

// requireAuthenticatedUser answers 401 for anonymous requests.
func (app *application) requireAuthenticatedUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := app.contextGetUser(r)

		if user.IsAnonymous() {
			app.authenticationRequiredResponse(w, r)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// requireConfirmedUser rejects users who never redeemed a confirmation code.
// Tokens are only issued on redemption, so this guards accounts created by
// an admin and any token minted outside the signup flow.
func (app *application) requireConfirmedUser(next http.HandlerFunc) http.HandlerFunc {
	fn := func(w http.ResponseWriter, r *http.Request) {
		user := app.contextGetUser(r)

		if !user.Confirmed {
			app.unconfirmedAccountResponse(w, r)
			return
		}

		next.ServeHTTP(w, r)
	}

	return app.requireAuthenticatedUser(fn)
}

// requirePolicy lets the request through only if rule holds for the
// confirmed requesting user.
func (app *application) requirePolicy(rule func(*data.User) bool, next http.HandlerFunc) http.HandlerFunc {
	fn := func(w http.ResponseWriter, r *http.Request) {
		if !rule(app.contextGetUser(r)) {
			app.notPermittedResponse(w, r)
			return
		}

		next.ServeHTTP(w, r)
	}

	return app.requireConfirmedUser(fn)
}
