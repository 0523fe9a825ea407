package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/chatlog/internal/logparse"
	"github.com/MikeSquared-Agency/chatlog/internal/observe"
	"github.com/MikeSquared-Agency/chatlog/internal/processor"
	"github.com/MikeSquared-Agency/chatlog/internal/render"
	"github.com/MikeSquared-Agency/chatlog/internal/source"
)

// defaultMaxLogBytes caps the request body accepted by POST /api/v1/reports.
// Larger logs are refused whole rather than parsed in part.
const defaultMaxLogBytes = 32 << 20

type Server struct {
	router  *chi.Mux
	port    int
	proc    *processor.Processor
	logger  *slog.Logger
	http    *http.Server
	maxBody int64
}

// NewServer wires the routes. metrics may be nil, in which case requests are
// not timed and /metrics is not mounted. An empty apiToken leaves the report
// routes open.
func NewServer(port int, apiToken string, proc *processor.Processor, metrics *observe.Metrics, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	if metrics != nil {
		router.Use(observe.Middleware(metrics, logger))
		router.Handle("/metrics", promhttp.Handler())
	}

	s := &Server{
		router:  router,
		port:    port,
		proc:    proc,
		logger:  logger,
		http:    &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: router},
		maxBody: defaultMaxLogBytes,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/chatlog/status", s.status)
	router.Route("/api/v1/reports", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Post("/", s.createReport)
	})

	return s
}

func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	cfg := s.proc.Config()
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":         "chatlog",
		"status":        "ready",
		"known_modules": cfg.KnownModules,
		"attribution":   cfg.Attribution,
	})
}

type reportResponse struct {
	ReportID string          `json:"report_id"`
	Report   json.RawMessage `json:"report"`
}

func (s *Server) createReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	format := render.FormatJSON
	if v := q.Get("format"); v != "" {
		f, err := render.ParseFormat(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		format = f
	}

	var year int
	if v := q.Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "year must be a positive integer")
			return
		}
		year = n
	}

	var noErrors bool
	if v := q.Get("noerrors"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "noerrors must be a boolean")
			return
		}
		noErrors = b
	}

	group := logparse.GroupHour
	if v := q.Get("timegroup"); v != "" {
		g, err := logparse.ParseTimeGroup(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		group = g
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("log exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	res, err := s.proc.Run(r.Context(), processor.Request{
		Source:   source.Text{Name: "request:" + middleware.GetReqID(r.Context()), Body: string(body)},
		Year:     year,
		NoErrors: noErrors,
	})
	if err != nil {
		if errors.Is(err, logparse.ErrTimestampFormat) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.Error("report failed", "error", err)
		writeError(w, http.StatusInternalServerError, "report failed")
		return
	}

	out, err := render.Render(res.Report, render.Options{
		Format:    format,
		Config:    s.proc.Config(),
		TimeGroup: group,
	})
	if err != nil {
		s.logger.Error("render failed", "report_id", res.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}

	if format != render.FormatJSON {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Report-ID", res.ID.String())
		w.WriteHeader(http.StatusOK)
		if _, err := io.WriteString(w, out); err != nil {
			s.logger.Warn("failed to write report", "report_id", res.ID, "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{
		ReportID: res.ID.String(),
		Report:   json.RawMessage(out),
	})
}

// BearerAuthMiddleware rejects requests whose Authorization header does not
// carry token. An empty token disables the check.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
