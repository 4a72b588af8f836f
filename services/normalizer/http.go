package normalizer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/otherjamesbrown/penf-transcripts/pkg/buildinfo"
	"github.com/otherjamesbrown/penf-transcripts/pkg/db"
	pferrors "github.com/otherjamesbrown/penf-transcripts/pkg/errors"
	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/meeting"
	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/storage"
	"github.com/otherjamesbrown/penf-transcripts/pkg/logging"
	"github.com/otherjamesbrown/penf-transcripts/pkg/observability"
)

// ServiceName identifies the HTTP service in logs and /version.
const ServiceName = "penf-transcripts"

// bodySlack covers JSON escaping on top of the raw size limit.
const bodySlack = 1 << 20

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Checks are pinged by /readyz, keyed by dependency name.
	Checks map[string]db.Pinger

	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer

	Metrics *observability.Metrics
	Logger  logging.Logger
}

// Server exposes the service over HTTP.
type Server struct {
	svc      *Service
	checks   map[string]db.Pinger
	gatherer prometheus.Gatherer
	metrics  *observability.Metrics
	logger   logging.Logger
}

// NewServer creates the HTTP API for svc.
func NewServer(svc *Service, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		svc:      svc,
		checks:   cfg.Checks,
		gatherer: gatherer,
		metrics:  cfg.Metrics,
		logger:   logger.With(logging.F("component", "http")),
	}
}

// normalizeRequest is the JSON request body. Plain-text bodies are taken as
// Content verbatim.
type normalizeRequest struct {
	Content    string                   `json:"content"`
	Format     meeting.TranscriptFormat `json:"format,omitempty"`
	MinLength  int                      `json:"min_length,omitempty"`
	SourcePath string                   `json:"source_path,omitempty"`
	Title      string                   `json:"title,omitempty"`
	Persist    bool                     `json:"persist,omitempty"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Get("/version", buildinfo.Handler(ServiceName))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/normalize", s.normalize)
		r.Post("/detect", s.detect)
		r.Post("/validate", s.validate)
		r.Post("/participants", s.participants)
		r.Get("/transcripts", s.listTranscripts)
		r.Get("/transcripts/{id}", s.getTranscript)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", logging.F("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.logger.Info("HTTP server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) normalize(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readRequest(w, r)
	if !ok {
		return
	}

	result, err := s.svc.Process(r.Context(), Request{
		Content:       []byte(req.Content),
		Format:        req.Format,
		Validation:    s.validationFor(req),
		SourcePath:    req.SourcePath,
		Title:         req.Title,
		CorrelationID: chimiddleware.GetReqID(r.Context()),
		Persist:       req.Persist,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Stored {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

func (s *Server) detect(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readRequest(w, r)
	if !ok {
		return
	}
	text, _ := meeting.DecodeBytes([]byte(req.Content))
	format, rule := s.svc.Detect(text)
	writeJSON(w, http.StatusOK, map[string]string{"format": string(format), "rule": rule})
}

func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readRequest(w, r)
	if !ok {
		return
	}
	text, _ := meeting.DecodeBytes([]byte(req.Content))
	result := s.svc.Validate(text, s.validationFor(req))

	status := http.StatusOK
	if !result.Valid {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

func (s *Server) participants(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readRequest(w, r)
	if !ok {
		return
	}

	// Already-normalized text is read as is; anything else is normalized first.
	text, _ := meeting.DecodeBytes([]byte(req.Content))
	if format, _ := s.svc.Detect(text); format != meeting.FormatPlain {
		text = meeting.NormalizeText(text)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"participants": meeting.ExtractParticipants(text)})
}

func (s *Server) getTranscript(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) listTranscripts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	format := meeting.TranscriptFormat(q.Get("format"))
	if format != "" && !format.IsValid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown format: " + string(format)})
		return
	}

	list, err := s.svc.List(r.Context(), storage.ListOptions{Format: format, Limit: limit, Offset: offset})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transcripts": list, "count": len(list)})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]db.HealthStatus, len(s.checks))
	status := http.StatusOK
	for name, p := range s.checks {
		hs := db.Check(r.Context(), p)
		checks[name] = hs
		if !hs.Healthy {
			status = http.StatusServiceUnavailable
		}
	}

	label := "ok"
	if status != http.StatusOK {
		label = "unhealthy"
	}
	writeJSON(w, status, map[string]interface{}{"status": label, "checks": checks})
}

// readRequest decodes a JSON or plain-text body plus query overrides.
func (s *Server) readRequest(w http.ResponseWriter, r *http.Request) (normalizeRequest, bool) {
	var req normalizeRequest

	limit := int64(s.svc.ValidationOptions().MaxBytes) + bodySlack
	body := http.MaxBytesReader(w, r.Body, limit)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			s.writeBodyError(w, r, err)
			return req, false
		}
	} else {
		data, err := io.ReadAll(body)
		if err != nil {
			s.writeBodyError(w, r, err)
			return req, false
		}
		req.Content = string(data)
	}

	q := r.URL.Query()
	if v := q.Get("min_length"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "min_length must be a non-negative integer"})
			return req, false
		}
		req.MinLength = n
	}
	if v := q.Get("format"); v != "" {
		req.Format = meeting.TranscriptFormat(v)
	}
	if req.Format != "" && !req.Format.IsValid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown format: " + string(req.Format)})
		return req, false
	}
	if v := q.Get("persist"); v != "" {
		req.Persist, _ = strconv.ParseBool(v)
	}
	if v := q.Get("source_path"); v != "" {
		req.SourcePath = v
	}
	if v := q.Get("title"); v != "" {
		req.Title = v
	}
	return req, true
}

func (s *Server) validationFor(req normalizeRequest) *meeting.ValidationOptions {
	if req.MinLength == 0 {
		return nil
	}
	opts := s.svc.ValidationOptions()
	opts.MinLength = req.MinLength
	return &opts
}

func (s *Server) writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
			Error:     "request body too large",
			Code:      string(pferrors.ErrContentTooLarge),
			RequestID: chimiddleware.GetReqID(r.Context()),
		})
		return
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:     "invalid request body: " + err.Error(),
		Code:      string(pferrors.ErrInvalidInput),
		RequestID: chimiddleware.GetReqID(r.Context()),
	})
}

// writeError maps pipeline errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case pferrors.IsValidation(err):
		status = http.StatusUnprocessableEntity
	case pferrors.IsNotFound(err):
		status = http.StatusNotFound
	case pferrors.IsUnavailable(err):
		status = http.StatusServiceUnavailable
	case pferrors.IsTimeout(err):
		status = http.StatusGatewayTimeout
	}

	resp := errorResponse{Error: err.Error(), RequestID: chimiddleware.GetReqID(r.Context())}
	if code := pferrors.CodeOf(err); code != "" {
		resp.Code = string(code)
		resp.Suggestion = pferrors.GetSuggestedAction(code)
		resp.Retryable = pferrors.IsErrorRetryable(err)
	}
	if status >= http.StatusInternalServerError {
		s.logger.WithContext(r.Context()).Error("Request failed", logging.Err(err), logging.F("path", r.URL.Path))
	}
	writeJSON(w, status, resp)
}

// requestLogger logs each request and records its latency by route pattern.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		ctx := r.Context()
		if id := chimiddleware.GetReqID(ctx); id != "" {
			ctx = logging.WithRequestID(ctx, id)
			r = r.WithContext(ctx)
		}

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.RecordHTTPRequest(route, r.Method, strconv.Itoa(code), elapsed)

		s.logger.WithContext(ctx).Debug("HTTP request",
			logging.F("method", r.Method),
			logging.F("route", route),
			logging.F("status", code),
			logging.F("bytes", ww.BytesWritten()),
			logging.F("duration", elapsed))
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
