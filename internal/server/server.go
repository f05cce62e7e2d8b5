// Package server exposes the normalizer over HTTP: a vendor file is posted
// as a multipart upload and the batch summary comes back as JSON.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ginjaninja78/sales-normalizer/internal/batch"
	"github.com/ginjaninja78/sales-normalizer/internal/config"
	"github.com/ginjaninja78/sales-normalizer/internal/converter"
	"github.com/ginjaninja78/sales-normalizer/internal/logging"
	"github.com/ginjaninja78/sales-normalizer/internal/normalize"
	"github.com/ginjaninja78/sales-normalizer/internal/vendor"
)

// Server is the HTTP upload endpoint.
type Server struct {
	engine  *converter.Engine
	vendors []*config.VendorConfig
	sink    converter.Sink
	cfg     config.ServerConfig

	router *chi.Mux
	server *http.Server
	now    func() time.Time
}

// New creates a Server. vendors supplies per-vendor overrides and may be
// empty; sink may be nil, in which case batches are only summarized.
func New(engine *converter.Engine, vendors []*config.VendorConfig, sink converter.Sink, cfg config.ServerConfig) *Server {
	s := &Server{
		engine:  engine,
		vendors: vendors,
		sink:    sink,
		cfg:     cfg,
		router:  chi.NewRouter(),
		now:     time.Now,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(5 * time.Minute))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/uploads", s.handleUpload)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("server starting", "addr", s.cfg.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"vendors": vendor.IDs(),
	})
}

// uploadResponse is the body of a processed upload.
type uploadResponse struct {
	batch.Summary
	Stored bool `json:"stored"`
}

// handleUpload normalizes one multipart upload.
//
// FORM FIELDS:
//   - file        : the vendor spreadsheet (.xlsx, .xlsm or .csv)
//   - vendor      : registered vendor id
//   - reseller_id : defaults to the vendor config's reseller id
//   - month, year : optional sale period, both or neither
//   - upload_id   : optional; a UUID is generated when empty
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeError(w, r, http.StatusBadRequest, "file too large or invalid form")
		return
	}

	vendorID := strings.ToLower(strings.TrimSpace(r.FormValue("vendor")))
	if vendorID == "" {
		writeError(w, r, http.StatusBadRequest, "vendor is required")
		return
	}
	if _, err := vendor.Get(vendorID); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	vcfg := s.vendorConfig(vendorID)

	resellerID := strings.TrimSpace(r.FormValue("reseller_id"))
	if resellerID == "" {
		resellerID = vcfg.ResellerID
	}

	period, err := parsePeriod(r.FormValue("month"), r.FormValue("year"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	uploadID := strings.TrimSpace(r.FormValue("upload_id"))
	if uploadID == "" {
		uploadID = uuid.NewString()
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	sheet, err := converter.ReadSheet(file, header.Filename, vcfg)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	res, err := s.engine.Normalize(ctx, sheet, converter.Input{
		VendorID:   vendorID,
		FileName:   header.Filename,
		ResellerID: resellerID,
		UploadID:   uploadID,
		Period:     period,
		UploadedAt: s.now(),
		Overrides:  converter.OverridesFromConfig(vcfg),
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, vendor.ErrUnknownVendor) {
			status = http.StatusBadRequest
		}
		writeError(w, r, status, err.Error())
		return
	}

	resp := uploadResponse{Summary: res.Summary()}
	if res.Failed() {
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	if s.sink != nil {
		if err := s.sink.WriteBatch(ctx, res); err != nil {
			writeError(w, r, http.StatusInternalServerError, fmt.Sprintf("failed to store batch: %v", err))
			return
		}
		resp.Stored = true
	}

	writeJSON(w, http.StatusOK, resp)
}

// vendorConfig returns the config for vendorID, or a bare one carrying the
// vendor id as reseller id.
func (s *Server) vendorConfig(vendorID string) *config.VendorConfig {
	for _, v := range s.vendors {
		if v.VendorID == vendorID {
			return v
		}
	}
	return &config.VendorConfig{VendorID: vendorID, ResellerID: vendorID}
}

// parsePeriod parses the optional month and year fields. An out-of-range
// period is returned as-is; the engine reports it and falls back.
func parsePeriod(month, year string) (*normalize.Period, error) {
	month, year = strings.TrimSpace(month), strings.TrimSpace(year)
	if month == "" && year == "" {
		return nil, nil
	}
	if month == "" || year == "" {
		return nil, errors.New("month and year must be given together")
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return nil, fmt.Errorf("invalid month %q", month)
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return nil, fmt.Errorf("invalid year %q", year)
	}
	return &normalize.Period{Year: y, Month: m}, nil
}

// =============================================================================
// RESPONSES
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	logging.FromContext(r.Context()).Warn("request error",
		"path", r.URL.Path,
		"status", status,
		"error", message,
	)
	writeJSON(w, status, map[string]string{"error": message})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.FromContext(r.Context()).Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}
