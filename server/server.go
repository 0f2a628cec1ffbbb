// Package server exposes the conversation history over a JSON REST API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/spf13/cobra"

	"github.com/dungnx/chathist/configuration"
	"github.com/dungnx/chathist/internal/attachment"
	"github.com/dungnx/chathist/internal/llm"
	"github.com/dungnx/chathist/retention"
	"github.com/dungnx/chathist/store"
)

// sessionHeader carries the client's opaque session token. A missing
// header maps to the shared "anonymous" bucket: every caller without a
// token sees one common history. Documented behavior, not a bug.
const (
	sessionHeader          = "session-id"
	anonymousSession       = "anonymous"
	maxUploadBytes   int64 = 10 << 20
)

// Server handles the REST API.
type Server struct {
	store     *store.Store
	provider  llm.Client
	processor attachment.Processor
	logger    *slog.Logger

	defaultModel      string
	requestTimeout    time.Duration
	attachmentTimeout time.Duration
}

// New server over the given collaborators.
func New(config *configuration.Config, s *store.Store, provider llm.Client, processor attachment.Processor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:             s,
		provider:          provider,
		processor:         processor,
		logger:            logger.With("component", "server"),
		defaultModel:      config.Provider.DefaultModel,
		requestTimeout:    time.Duration(config.RequestTimeoutSeconds) * time.Second,
		attachmentTimeout: time.Duration(config.AttachmentTimeoutSeconds) * time.Second,
	}
}

// Handler builds the routed and middleware-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/upload", s.handleUpload)
	mux.HandleFunc("/api/conversations", s.handleConversations)
	mux.HandleFunc("/api/conversations/", s.handleConversationRoutes)
	return chainMiddlewares(mux, s.withLogging, withCORS)
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Handler(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("server starting", "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// handleConversationRoutes dispatches /api/conversations/{id}[/messages].
func (s *Server) handleConversationRoutes(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path)
	// parts: ["api", "conversations", id, ...]
	switch {
	case r.Method == http.MethodPut && len(parts) == 3:
		s.handleRenameConversation(w, r, parts[2])
	case r.Method == http.MethodGet && len(parts) == 4 && parts[3] == "messages":
		s.handleListMessages(w, r, parts[2])
	case r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "messages":
		s.handleAppendMessage(w, r, parts[2])
	default:
		http.NotFound(w, r)
	}
}

// resolveUser maps the session-id header to a durable user.
func (s *Server) resolveUser(r *http.Request) (*store.User, error) {
	token := r.Header.Get(sessionHeader)
	if token == "" {
		token = anonymousSession
	}
	return s.store.GetOrCreateUser(r.Context(), token)
}

// withLogging tags every request with a short id and logs it.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := shortuuid.New()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// withCORS leaves the API open to any web front-end.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+sessionHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func chainMiddlewares(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for _, m := range middlewares {
		h = m(h)
	}
	return h
}

// NewServeCmd creates the serve command: the REST API plus the retention
// janitor (startup sweep, then every 24h).
func NewServeCmd(config *configuration.Config, s *store.Store, provider llm.Client) *cobra.Command {
	var opts struct {
		Port int
	}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the conversation history API",
		Long:  "Serve the conversation history API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default()
			server := New(config, s, provider, attachment.NewLocal(), logger)

			janitor := retention.NewJanitor(s, logger)
			janitor.Start(cmd.Context())
			defer janitor.Stop()

			return server.Start(cmd.Context(), opts.Port)
		},
	}

	cmd.Flags().IntVarP(&opts.Port, "port", "p", 0, "Port to serve on (defaults to the configured port)")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		if opts.Port == 0 {
			opts.Port = config.Port
		}
	}
	return cmd
}
