package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// serve runs the HTTP server until SIGINT or SIGTERM, then shuts it down
// gracefully and waits for background tasks such as mail delivery.
func (app *application) serve() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", app.config.port),
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		// Errors from the server itself go through our JSON logger at ERROR.
		ErrorLog:     log.New(app.logger, "", 0),
	}

	// shutdownError receives the result of the graceful shutdown.
	shutdownError := make(chan error)

	go func() {
		// Relay SIGINT and SIGTERM to quit. The channel is buffered so a signal
		// sent before we start receiving is not dropped.
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		// Block until a signal arrives.
		s := <-quit

		app.logger.PrintInfo("shutting down server", map[string]string{
			"signal": s.String(),
		})

		// In-flight requests get 20 seconds to finish.
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		// Shutdown fails if a listener cannot be closed or the deadline passes
		// first. Either way there is nothing left to wait for.
		err := srv.Shutdown(ctx)
		if err != nil {
			shutdownError <- err
			return
		}

		app.logger.PrintInfo("completing background tasks", map[string]string{
			"addr": srv.Addr,
		})

		// Wait for goroutines started with app.background, such as pending
		// confirmation mails.
		app.wg.Wait()
		shutdownError <- nil
	}()

	app.logger.PrintInfo("starting server", map[string]string{
		"addr":    srv.Addr,
		"env":     app.config.env,
		"version": version,
	})

	// ListenAndServe returns http.ErrServerClosed as soon as Shutdown starts.
	// Any other error means the server never came up.
	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	// Shutdown has begun; its outcome arrives on shutdownError once the
	// background tasks are done too.
	err = <-shutdownError
	if err != nil {
		return err
	}

	app.logger.PrintInfo("stopped server", map[string]string{
		"addr": srv.Addr,
	})

	return nil
}
