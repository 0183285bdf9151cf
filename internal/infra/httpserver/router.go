package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appanalyses "github.com/bryanwahyu/mediatrust/internal/application/analyses"
	domain "github.com/bryanwahyu/mediatrust/internal/domain/analyses"
	"github.com/bryanwahyu/mediatrust/internal/middleware"
)

const (
	msgNotFound      = "Analysis not found"
	msgNoFile        = "No file uploaded"
	msgAnalyzeFailed = "Failed to analyze file"
	msgInternal      = "Internal server error"

	// room for multipart boundaries and the duration field
	multipartSlack = 1 << 20
	// memory kept by ParseMultipartForm before spilling to disk
	multipartMemory = 8 << 20
	maxDurationLen  = 32
)

// Options configures the HTTP surface.
type Options struct {
	BasePath    string
	Env         string
	MaxFileSize int64
	Checkers    map[string]middleware.HealthChecker
	// RateLimiter guards POST {base}/analyze; nil disables limiting.
	RateLimiter *middleware.RateLimiter
	Logger      *slog.Logger
}

type Router struct {
	svc  *appanalyses.Service
	opts Options
	log  *slog.Logger
}

func NewRouter(svc *appanalyses.Service, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = domain.DefaultMaxFileSize
	}
	base := "/" + strings.Trim(opts.BasePath, "/")
	if base == "/" {
		base = "/api"
	}
	r := &Router{svc: svc, opts: opts, log: opts.Logger}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.RequestLogger(opts.Logger))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(chimw.Recoverer)
	if !isProduction(opts.Env) {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	mux.Get("/health", middleware.HealthHandler(opts.Checkers))
	mux.Get("/health/live", middleware.LivenessHandler)
	mux.Get("/health/ready", middleware.ReadinessHandler(opts.Checkers))
	mux.Handle("/metrics", middleware.MetricsHandler())

	mux.Route(base, func(rt chi.Router) {
		rt.Get("/analyses", r.wrap(r.handleList, msgInternal))
		rt.Get("/analyses/recent", r.wrap(r.handleRecent, msgInternal))
		rt.Get("/analyses/{id}", r.wrap(r.handleGet, msgInternal))
		rt.Get("/summary", r.wrap(r.handleSummary, msgInternal))

		post := rt
		if opts.RateLimiter != nil {
			post = rt.With(middleware.RateLimitMiddleware(opts.RateLimiter))
		}
		post.Post("/analyze", r.wrap(r.handleAnalyze, msgAnalyzeFailed))
	})

	return mux
}

func isProduction(env string) bool {
	env = strings.ToLower(env)
	return env == "prod" || env == "production"
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

type errorBody struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// wrap maps domain errors to status codes. Anything unexpected becomes a
// 500 carrying fallback, never the internal error text.
func (r *Router) wrap(h handlerFunc, fallback string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		var ve *domain.ValidationError
		var de *domain.DetectorError
		switch {
		case errors.As(err, &ve):
			writeJSON(w, http.StatusBadRequest, errorBody{Message: ve.Message, Field: ve.Field})
		case errors.Is(err, domain.ErrValidation) && errors.As(err, &de):
			writeJSON(w, http.StatusBadRequest, errorBody{Message: de.Err.Error(), Field: "file"})
		case errors.Is(err, domain.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody{Message: msgNotFound})
		default:
			r.log.ErrorContext(req.Context(), "request failed",
				slog.String("request_id", chimw.GetReqID(req.Context())),
				slog.String("path", req.URL.Path),
				slog.String("error", err.Error()),
			)
			writeJSON(w, http.StatusInternalServerError, errorBody{Message: fallback})
		}
	}
}

// GET {base}/analyses
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	list, err := r.svc.List(req.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET {base}/analyses/recent?limit=
func (r *Router) handleRecent(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.svc.Recent(req.Context(), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET {base}/analyses/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id, err := middleware.ParseID(chi.URLParam(req, "id"))
	if err != nil {
		// id yang tidak valid diperlakukan sama dengan tidak ditemukan
		return domain.ErrNotFound
	}
	a, err := r.svc.Get(req.Context(), domain.ID(id))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, a)
	return nil
}

// GET {base}/summary
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	sum, err := r.svc.Summary(req.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, sum)
	return nil
}

// POST {base}/analyze (multipart: file, optional duration)
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.opts.MaxFileSize+multipartSlack)
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &domain.ValidationError{Field: "file", Constraint: domain.ConstraintTooLarge, Message: "File too large"}
		}
		return &domain.ValidationError{Field: "file", Constraint: domain.ConstraintRequired, Message: msgNoFile}
	}
	defer func() { _ = req.MultipartForm.RemoveAll() }()

	file, hdr, err := req.FormFile("file")
	if err != nil {
		return &domain.ValidationError{Field: "file", Constraint: domain.ConstraintRequired, Message: msgNoFile}
	}
	defer file.Close()

	name := middleware.SanitizeFileName(hdr.Filename)
	if name == "" {
		return &domain.ValidationError{Field: "file", Constraint: domain.ConstraintRequired, Message: "File name is required"}
	}

	head, err := readHeader(file)
	if err != nil {
		return err
	}

	cmd := appanalyses.AnalyzeCommand{
		Media: domain.MediaDescriptor{
			FileName: name,
			FileType: hdr.Header.Get("Content-Type"),
			FileSize: hdr.Size,
			Header:   head,
		},
		Body:     file,
		Duration: durationField(req.FormValue("duration")),
	}
	a, err := r.svc.Analyze(req.Context(), cmd)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, a)
	return nil
}

// readHeader reads the sniffing prefix and rewinds the file.
func readHeader(f multipart.File) ([]byte, error) {
	head := make([]byte, domain.SniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return head[:n], nil
}

func durationField(raw string) *string {
	raw = middleware.SanitizeString(raw)
	if raw == "" {
		return nil
	}
	if len(raw) > maxDurationLen {
		raw = strings.ToValidUTF8(raw[:maxDurationLen], "")
	}
	return &raw
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
