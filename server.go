package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sqlchat/cmd"
	"sqlchat/internal/chat"
)

// chatContextID identifies the SQL chat conversation. Entering the session
// with another id resets it.
const chatContextID = "sql-chat"

// ServerConfig holds configuration for the web server
type ServerConfig struct {
	Port           int
	Store          *chat.Store
	Loop           *chat.Loop
	Suggestions    []string
	RequestTimeout time.Duration
}

// NewRouter wires the web pages and the JSON API
func NewRouter(config ServerConfig) (http.Handler, error) {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 3 * time.Minute
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(config.RequestTimeout))
	r.Use(config.Store.Middleware)

	// Web handlers (HTMX HTML responses)
	webHandler, err := NewWebHandler(config.Loop, config.Suggestions)
	if err != nil {
		return nil, err
	}
	r.Get("/", webHandler.LandingPage)
	r.Route("/chat", func(r chi.Router) {
		r.Use(chat.WithChatHistory(chatContextID))
		r.Get("/", webHandler.ChatPage)
		r.Post("/messages", webHandler.SendMessage)
		r.Post("/database", webHandler.SelectDatabase)
		r.Post("/reset", webHandler.Reset)
		r.Get("/charts/{id}", webHandler.Chart)
	})

	// API handlers (JSON responses)
	apiHandler := &APIHandler{Loop: config.Loop, Store: config.Store}
	r.Route("/api", func(r chi.Router) {
		r.Use(chat.WithChatHistory(chatContextID))
		r.Get("/session", apiHandler.GetSession)
		r.Delete("/session", apiHandler.ResetSession)
		r.Post("/messages", apiHandler.SendMessage)
		r.Put("/database", apiHandler.SelectDatabase)
		r.Get("/tables", apiHandler.Tables)
	})

	return r, nil
}

// StartServer initializes and starts the HTTP server and stops it when ctx
// is done
func StartServer(ctx context.Context, app *cmd.App, port int) error {
	store := chat.NewStore(app.Config.Server.SessionTTL, app.SessionOptions())
	defer store.Close()
	store.StartSweeper(ctx)

	handler, err := NewRouter(ServerConfig{
		Port:           port,
		Store:          store,
		Loop:           app.NewLoop(),
		Suggestions:    app.Config.App.Suggestions,
		RequestTimeout: app.Config.Server.RequestTimeout,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "addr", srv.Addr)
		fmt.Printf("Listening on http://localhost%s\n", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("Shutting down server", "reason", ctx.Err())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
