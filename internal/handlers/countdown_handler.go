package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/koios/countdown-renderer/internal/countdown"
	"github.com/koios/countdown-renderer/internal/fonts"
	"github.com/koios/countdown-renderer/internal/render"
	"github.com/koios/countdown-renderer/pkg/models"
	"go.uber.org/zap"
)

// CountdownHandler handles HTTP requests for countdown rendering
type CountdownHandler struct {
	processor *render.Processor
	fonts     *fonts.Registry
	logger    *zap.Logger
}

// NewCountdownHandler creates a new countdown handler
func NewCountdownHandler(processor *render.Processor, registry *fonts.Registry, logger *zap.Logger) *CountdownHandler {
	return &CountdownHandler{
		processor: processor,
		fonts:     registry,
		logger:    logger,
	}
}

// RegisterRoutes registers the countdown routes
func (h *CountdownHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/generate", h.handleGenerate)
	mux.HandleFunc("/serve", h.handleServe)
	mux.HandleFunc("/validate", h.handleValidate)
	mux.HandleFunc("/fonts", h.handleFonts)
	mux.HandleFunc("/renders/", h.handleRenderDetails)
	mux.Handle("/gifs/", h.gifFileServer())
}

// handleHealth handles GET /health - returns service health status
func (h *CountdownHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body := map[string]interface{}{
		"status":       "healthy",
		"service":      "countdown-renderer",
		"version":      "1.0.0",
		"render_index": h.processor.Index() != nil,
	}
	// Index trouble degrades the report but never the status code
	if index := h.processor.Index(); index != nil {
		if err := index.Ping(r.Context()); err != nil {
			h.logger.Warn("Render index unreachable", zap.Error(err))
			body["render_index_error"] = err.Error()
		} else if n, err := index.Count(r.Context()); err != nil {
			h.logger.Warn("Failed to count indexed renders", zap.Error(err))
			body["render_index_error"] = err.Error()
		} else {
			body["indexed_renders"] = n
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// handleGenerate handles GET /generate - renders and returns the GIF as a download
func (h *CountdownHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	h.renderAndServe(w, r, true)
}

// handleServe handles GET /serve - renders and returns the GIF inline
func (h *CountdownHandler) handleServe(w http.ResponseWriter, r *http.Request) {
	h.renderAndServe(w, r, false)
}

func (h *CountdownHandler) renderAndServe(w http.ResponseWriter, r *http.Request, attachment bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	params := queryParams(r.URL.Query())
	if errs := ValidateParams(params); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, ValidationResponse{Valid: false, Errors: errs})
		return
	}

	request := &models.RenderRequest{
		Type:   models.RenderRequestType,
		ID:     r.Header.Get("X-Request-ID"),
		Params: params,
	}

	result, err := h.processor.Render(r.Context(), request)
	if err != nil {
		h.writeRenderError(w, err)
		return
	}

	f, err := os.Open(result.Path)
	if err != nil {
		h.logger.Error("Failed to open rendered gif", zap.String("path", result.Path), zap.Error(err))
		http.Error(w, "Failed to read rendered countdown", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "Failed to read rendered countdown", http.StatusInternalServerError)
		return
	}

	filename := render.DownloadName(params, result.Name)
	disposition := "inline"
	if attachment {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, filename))
	w.Header().Set("Cache-Control", "no-cache")

	http.ServeContent(w, r, filename, info.ModTime(), f)

	h.logger.Debug("Served countdown",
		zap.String("name", result.Name),
		zap.Bool("attachment", attachment),
		zap.Int64("size", result.SizeBytes))
}

// ValidationResponse represents the response for parameter validation
type ValidationResponse struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// handleValidate handles GET /validate - checks parameters without rendering
func (h *CountdownHandler) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	errs := ValidateParams(queryParams(r.URL.Query()))
	writeJSON(w, http.StatusOK, ValidationResponse{Valid: len(errs) == 0, Errors: errs})
}

// handleFonts handles GET /fonts - returns the registered font families
func (h *CountdownHandler) handleFonts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	families := h.fonts.Families()
	manifests := make(map[string]*models.FontManifest)
	for _, family := range families {
		if m, ok := h.fonts.Manifest(family); ok {
			manifests[family] = m
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"families":  families,
		"fallback":  h.fonts.Fallback(),
		"manifests": manifests,
	})

	h.logger.Debug("Served font list", zap.Int("count", len(families)))
}

// handleRenderDetails handles /renders/{name}: GET returns indexed render
// metadata, DELETE drops the index record.
func (h *CountdownHandler) handleRenderDetails(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/renders/")
	if name == "" || !render.ValidName(name) {
		http.Error(w, "Invalid render name", http.StatusBadRequest)
		return
	}

	index := h.processor.Index()
	if index == nil {
		http.Error(w, "Render index not enabled", http.StatusNotFound)
		return
	}

	if r.Method == http.MethodDelete {
		if err := index.Forget(r.Context(), name); err != nil {
			h.logger.Error("Failed to forget render", zap.String("name", name), zap.Error(err))
			http.Error(w, "Failed to forget render", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	rec, found, err := index.Lookup(r.Context(), name)
	if err != nil {
		h.logger.Error("Failed to look up render", zap.String("name", name), zap.Error(err))
		http.Error(w, "Failed to look up render", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "Render not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// gifFileServer serves rendered artifacts from the output directory.
// Directory listings are not exposed.
func (h *CountdownHandler) gifFileServer() http.Handler {
	files := http.StripPrefix("/gifs/", http.FileServer(http.Dir(h.processor.OutputDir())))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") || !strings.HasSuffix(r.URL.Path, ".gif") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func (h *CountdownHandler) writeRenderError(w http.ResponseWriter, err error) {
	var cfgErr *countdown.ConfigError
	if errors.As(err, &cfgErr) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": cfgErr.Error(),
			"field": cfgErr.Field,
		})
		return
	}

	h.logger.Error("Countdown render failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "Failed to render countdown",
	})
}

// queryParams flattens a query string, keeping the first value of each key.
func queryParams(values url.Values) map[string]string {
	params := make(map[string]string, len(values))
	for key, v := range values {
		if len(v) > 0 {
			params[key] = v[0]
		}
	}
	return params
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
