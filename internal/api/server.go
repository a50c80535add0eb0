package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsletter-extractor/internal/article"
	"github.com/JakeFAU/newsletter-extractor/internal/metrics"
	"github.com/JakeFAU/newsletter-extractor/internal/pipeline"
)

const maxBodyBytes = 10 << 20

// Extractor runs one extraction request end to end.
type Extractor interface {
	Run(ctx context.Context, req pipeline.Request) (article.Result, error)
}

// Options configures request handling.
type Options struct {
	// FetchBudget bounds linked-article fetching for each request. When it
	// lapses, pending fetches report an error and the extraction is still
	// returned. Zero leaves fetches bounded by their per-tier timeouts.
	FetchBudget time.Duration
	// FetchDefaults apply when a request omits its fetch knobs.
	FetchDefaults article.FetchOptions
}

// Server wires HTTP handlers to the extraction pipeline.
type Server struct {
	router    chi.Router
	extractor Extractor
	opts      Options
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(extractor Extractor, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		extractor: extractor,
		opts:      opts,
		logger:    logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Post("/extract", s.extract)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) extract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.HTML) == "" && strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "html or text is required")
		return
	}

	result, err := s.extractor.Run(r.Context(), s.toPipelineRequest(req))
	if err != nil {
		s.logger.Error("extraction failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Extraction failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, NewExtractResponse(result))
}

func (s *Server) toPipelineRequest(req extractRequest) pipeline.Request {
	fetch := s.opts.FetchDefaults
	if req.FetchTimeout != nil && *req.FetchTimeout > 0 {
		fetch.Timeout = time.Duration(*req.FetchTimeout * float64(time.Second))
	}
	if req.MaxFetchContent != nil && *req.MaxFetchContent > 0 {
		fetch.MaxContentLength = *req.MaxFetchContent
	}
	if req.MaxConcurrent != nil && *req.MaxConcurrent > 0 {
		fetch.MaxConcurrent = *req.MaxConcurrent
	}
	return pipeline.Request{
		HTML:          req.HTML,
		Text:          req.Text,
		BaseURL:       req.BaseURL,
		FetchArticles: req.FetchArticles,
		Fetch:         fetch,
		FetchBudget:   s.opts.FetchBudget,
	}
}

// RequestID returns the request ID assigned by the server middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type requestIDKey struct{}

// requestIDMiddleware keeps a well-formed inbound X-Request-ID and mints one otherwise.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic recovered",
						zap.String("request_id", RequestID(r.Context())),
						zap.Any("panic", rec),
						zap.Stack("stack"),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
