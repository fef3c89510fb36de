package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"uploadflow/internal/config"
	"uploadflow/internal/logging"
	"uploadflow/internal/notifications"
	"uploadflow/internal/pipeline"
	"uploadflow/internal/services"
	"uploadflow/internal/session"
	"uploadflow/internal/toolexec"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{
	"index.html",
	"process.html",
	"select_title.html",
	"edit_description.html",
	"confirm.html",
	"download.html",
}

// Server hosts the upload workflow over HTTP.
type Server struct {
	cfg      *config.Config
	sessions *session.Manager
	exec     toolexec.Runner
	logger   *slog.Logger
	notifier notifications.Service
	signer   signer
	pages    map[string]*template.Template
	mux      *http.ServeMux

	listener net.Listener
	server   *http.Server
}

// New builds a Server. exec runs the external tools for every session.
func New(cfg *config.Config, sessions *session.Manager, exec toolexec.Runner, logger *slog.Logger) (*Server, error) {
	if cfg == nil || sessions == nil || exec == nil {
		return nil, errors.New("web server requires config, session manager, and tool runner")
	}
	sign, err := newSigner(cfg.Web.SessionSecret)
	if err != nil {
		return nil, err
	}
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		exec:     exec,
		logger:   logging.NewComponentLogger(logger, "web"),
		notifier: notifications.NewService(cfg),
		signer:   sign,
		pages:    pages,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return pages, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("GET /process", s.handleProcessForm)
	s.mux.HandleFunc("POST /process", s.handleProcess)
	s.mux.HandleFunc("GET /select-title", s.handleSelectTitleForm)
	s.mux.HandleFunc("POST /select-title", s.handleSelectTitle)
	s.mux.HandleFunc("GET /edit-description", s.handleEditDescriptionForm)
	s.mux.HandleFunc("POST /edit-description", s.handleEditDescription)
	s.mux.HandleFunc("GET /confirm", s.handleConfirmForm)
	s.mux.HandleFunc("POST /confirm", s.handleConfirm)
	s.mux.HandleFunc("GET /download", s.handleDownloads)
	s.mux.HandleFunc("GET /download/{session}/{file}", s.handleDownloadFile)
	s.mux.HandleFunc("GET /api/status/{session}", s.requireToken(s.handleStatus))
	s.mux.HandleFunc("DELETE /api/sessions/{session}", s.requireToken(s.handleDeleteSession))
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
}

// Handler returns the root handler with request correlation applied.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.mux)
}

// Start listens on the configured bind address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Web.Bind)
	if err != nil {
		return fmt.Errorf("web listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("web server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("web server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		ctx := services.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-ID", requestID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))
		logging.WithContext(ctx, s.logger).Debug("http request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Duration("elapsed", time.Since(started)),
		)
	})
}

func (s *Server) runner(ctx context.Context) (*pipeline.Runner, func()) {
	logger := logging.WithContext(ctx, s.logger)
	stdout := newLogWriter(logger, "stdout")
	stderr := newLogWriter(logger, "stderr")
	runner := pipeline.NewRunner(s.cfg, s.exec,
		pipeline.WithLogger(s.logger),
		pipeline.WithOutput(stdout, stderr),
	)
	return runner, func() {
		stdout.Flush()
		stderr.Flush()
	}
}

// notify publishes a notification, logging rather than surfacing failures.
func (s *Server) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := s.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "no push message was delivered"),
		)
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	tmpl, ok := s.pages[name]
	if !ok {
		http.Error(w, "page not found", http.StatusInternalServerError)
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["Flash"] = s.takeFlash(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		logging.WithContext(r.Context(), s.logger).Error("render page failed",
			logging.String("page", name),
			logging.Error(err),
		)
	}
}

func (s *Server) flash(w http.ResponseWriter, message string) {
	s.signer.setCookie(w, flashCookie, message, time.Minute)
}

func (s *Server) takeFlash(w http.ResponseWriter, r *http.Request) string {
	message, ok := s.signer.readCookie(r, flashCookie)
	if _, err := r.Cookie(flashCookie); err == nil {
		clearCookie(w, flashCookie)
	}
	if !ok {
		return ""
	}
	return message
}

func (s *Server) redirect(w http.ResponseWriter, r *http.Request, path, message string) {
	if message != "" {
		s.flash(w, message)
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
