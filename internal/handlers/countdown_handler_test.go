package handlers

import (
	"context"
	"encoding/json"
	"image/gif"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/koios/countdown-renderer/internal/config"
	"github.com/koios/countdown-renderer/internal/countdown"
	"github.com/koios/countdown-renderer/internal/fonts"
	"github.com/koios/countdown-renderer/internal/render"
	"github.com/koios/countdown-renderer/pkg/models"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/image/font/gofont/gomono"
)

// setupTestHandler creates a CountdownHandler backed by a real processor,
// worker pool and font registry writing into a temp directory.
func setupTestHandler(t *testing.T) (*CountdownHandler, *http.ServeMux) {
	t.Helper()
	return newTestHandler(t, nil)
}

// setupIndexedHandler is setupTestHandler with a Redis render index. It skips
// the test when Redis is not reachable.
func setupIndexedHandler(t *testing.T) (*CountdownHandler, *http.ServeMux) {
	t.Helper()

	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379", DB: 1})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	index := render.NewRenderIndexFromClient(client, time.Minute)
	t.Cleanup(func() { index.Close() })
	return newTestHandler(t, index)
}

func newTestHandler(t *testing.T, index *render.RenderIndex) (*CountdownHandler, *http.ServeMux) {
	t.Helper()

	logger := zap.NewNop()
	registry, err := fonts.NewRegistry("", logger)
	if err != nil {
		t.Fatalf("Failed to create font registry: %v", err)
	}

	pool := render.NewWorkerPool(2, registry, countdown.NewRenderer(logger), logger)
	pool.Start()
	t.Cleanup(pool.Stop)

	cfg := &config.RenderConfig{
		OutputPath: filepath.Join(t.TempDir(), "gifs"),
		Workers:    2,
		FrameDelay: 1000,
		Quality:    10,
		Timezone:   "UTC",
		JobTimeout: 30,
	}
	processor, err := render.NewProcessor(cfg, pool, index, logger)
	if err != nil {
		t.Fatalf("Failed to create processor: %v", err)
	}

	handler := NewCountdownHandler(processor, registry, logger)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return handler, mux
}

func doRequest(mux *http.ServeMux, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

const smallCountdown = "time=2099-01-01T00:00:00Z&width=150&height=150&frames=2"

func TestHealth(t *testing.T) {
	_, mux := setupTestHandler(t)

	rec := doRequest(mux, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v", body["status"])
	}
	if body["render_index"] != false {
		t.Errorf("render_index = %v, want false", body["render_index"])
	}

	if rec := doRequest(mux, http.MethodPost, "/health"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health = %d, want 405", rec.Code)
	}
}

func TestGenerate(t *testing.T) {
	_, mux := setupTestHandler(t)

	rec := doRequest(mux, http.MethodGet, "/generate?"+smallCountdown+"&name=launch")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/gif" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="launch.gif"` {
		t.Errorf("Content-Disposition = %q", cd)
	}

	anim, err := gif.DecodeAll(rec.Body)
	if err != nil {
		t.Fatalf("response is not a gif: %v", err)
	}
	if len(anim.Image) != 2 {
		t.Errorf("frames = %d, want 2", len(anim.Image))
	}
}

func TestServe_Inline(t *testing.T) {
	_, mux := setupTestHandler(t)

	rec := doRequest(mux, http.MethodGet, "/serve?"+smallCountdown)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "inline;") {
		t.Errorf("Content-Disposition = %q, want inline", cd)
	}
	if _, err := gif.DecodeAll(rec.Body); err != nil {
		t.Errorf("response is not a gif: %v", err)
	}
}

func TestServe_PassedDate(t *testing.T) {
	_, mux := setupTestHandler(t)

	rec := doRequest(mux, http.MethodGet, "/serve?time=2001-01-01&width=150&height=150&frames=60")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	anim, err := gif.DecodeAll(rec.Body)
	if err != nil {
		t.Fatalf("response is not a gif: %v", err)
	}
	if len(anim.Image) != 1 {
		t.Errorf("frames = %d, want 1 for a passed date", len(anim.Image))
	}
}

func TestGenerate_ValidationErrors(t *testing.T) {
	_, mux := setupTestHandler(t)

	tests := []struct {
		name  string
		query string
		field string
	}{
		{"missing time", "width=300", "time"},
		{"bad time", "time=whenever", "time"},
		{"bad color", "time=2099-01-01&bgColor=nothex", "bgColor"},
		{"bad locale", "time=2099-01-01&unitLocale=A_B", "unitLocale"},
		{"bad number", "time=2099-01-01&frames=many", "frames"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(mux, http.MethodGet, "/generate?"+tt.query)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}

			var resp ValidationResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if resp.Valid || len(resp.Errors) == 0 {
				t.Fatalf("expected validation errors, got %+v", resp)
			}
			if resp.Errors[0].Field != tt.field {
				t.Errorf("field = %q, want %q", resp.Errors[0].Field, tt.field)
			}
		})
	}
}

func TestValidateEndpoint(t *testing.T) {
	_, mux := setupTestHandler(t)

	rec := doRequest(mux, http.MethodGet, "/validate?time=2099-01-01")
	var resp ValidationResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if rec.Code != http.StatusOK || !resp.Valid {
		t.Errorf("valid params: status=%d resp=%+v", rec.Code, resp)
	}

	rec = doRequest(mux, http.MethodGet, "/validate?textColor=xyz")
	resp = ValidationResponse{}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Valid || len(resp.Errors) != 2 {
		t.Errorf("expected 2 errors, got %+v", resp)
	}
}

func TestFonts(t *testing.T) {
	h, mux := setupTestHandler(t)

	dir := filepath.Join(t.TempDir(), "noto")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, "NotoSans.ttf"), gomono.TTF, 0644)
	os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte("family: NotoSans\nfileName: NotoSans.ttf\nlicense: OFL\n"), 0644)
	if _, err := h.fonts.LoadDir(filepath.Dir(dir)); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	rec := doRequest(mux, http.MethodGet, "/fonts")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Families  []string                        `json:"families"`
		Fallback  string                          `json:"fallback"`
		Manifests map[string]*models.FontManifest `json:"manifests"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(body.Families) != 5 {
		t.Errorf("families = %v, want the 4 built-ins plus NotoSans", body.Families)
	}
	if body.Fallback != fonts.DefaultFallback {
		t.Errorf("fallback = %q", body.Fallback)
	}
	if len(body.Manifests) != 1 || body.Manifests["NotoSans"] == nil || body.Manifests["NotoSans"].License != "OFL" {
		t.Errorf("manifests = %+v, want only NotoSans", body.Manifests)
	}
}

func TestRenderDetails(t *testing.T) {
	_, mux := setupTestHandler(t)

	if rec := doRequest(mux, http.MethodGet, "/renders/12345"); rec.Code != http.StatusNotFound {
		t.Errorf("index disabled: status = %d, want 404", rec.Code)
	}
	if rec := doRequest(mux, http.MethodDelete, "/renders/12345"); rec.Code != http.StatusNotFound {
		t.Errorf("index disabled delete: status = %d, want 404", rec.Code)
	}
	if rec := doRequest(mux, http.MethodPost, "/renders/12345"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST: status = %d, want 405", rec.Code)
	}
	for _, name := range []string{"launch", "bad.name", "../x", ""} {
		if rec := doRequest(mux, http.MethodGet, "/renders/"+name); rec.Code != http.StatusBadRequest {
			t.Errorf("name %q: status = %d, want 400", name, rec.Code)
		}
	}
}

func TestRenderDetails_WithIndex(t *testing.T) {
	_, mux := setupIndexedHandler(t)

	params := map[string]string{
		"time":   "2099-01-01T00:00:00Z",
		"width":  "150",
		"height": "150",
		"frames": "1",
		"name":   "indexed",
	}
	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	name := render.ArtifactName(params)

	if rec := doRequest(mux, http.MethodGet, "/serve?"+query.Encode()); rec.Code != http.StatusOK {
		t.Fatalf("serve status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec := doRequest(mux, http.MethodGet, "/renders/"+name)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup status = %d", rec.Code)
	}
	var record render.RenderRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if record.Name != name || record.Frames != 1 {
		t.Errorf("record = %+v", record)
	}

	rec = doRequest(mux, http.MethodGet, "/health")
	var health map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if n, ok := health["indexed_renders"].(float64); !ok || n < 1 {
		t.Errorf("indexed_renders = %v, want at least 1", health["indexed_renders"])
	}

	if rec := doRequest(mux, http.MethodDelete, "/renders/"+name); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := doRequest(mux, http.MethodGet, "/renders/"+name); rec.Code != http.StatusNotFound {
		t.Errorf("after delete: status = %d, want 404", rec.Code)
	}
}

func TestServe_SameCallerNameDifferentTimes(t *testing.T) {
	_, mux := setupTestHandler(t)

	soon := doRequest(mux, http.MethodGet, "/serve?time=2099-01-01T00:00:00Z&width=150&height=150&frames=3&name=x")
	past := doRequest(mux, http.MethodGet, "/serve?time=2000-01-01T00:00:00Z&width=150&height=150&frames=3&name=x")

	for _, tc := range []struct {
		label  string
		rec    *httptest.ResponseRecorder
		frames int
	}{
		{"countdown", soon, 3},
		{"passed", past, 1},
	} {
		if tc.rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tc.label, tc.rec.Code)
		}
		if cd := tc.rec.Header().Get("Content-Disposition"); cd != `inline; filename="x.gif"` {
			t.Errorf("%s: Content-Disposition = %q", tc.label, cd)
		}
		anim, err := gif.DecodeAll(tc.rec.Body)
		if err != nil {
			t.Fatalf("%s: not a gif: %v", tc.label, err)
		}
		if len(anim.Image) != tc.frames {
			t.Errorf("%s: %d frames, want %d", tc.label, len(anim.Image), tc.frames)
		}
	}
}

func TestGifFileServer(t *testing.T) {
	h, mux := setupTestHandler(t)

	result, err := h.processor.Render(context.Background(), &models.RenderRequest{
		Type:   models.RenderRequestType,
		Params: map[string]string{"time": "2099-01-01", "width": "150", "height": "150", "frames": "1", "name": "static"},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	rec := doRequest(mux, http.MethodGet, "/gifs/"+result.Name+".gif")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, err := gif.DecodeAll(rec.Body); err != nil {
		t.Errorf("served file is not a gif: %v", err)
	}

	if rec := doRequest(mux, http.MethodGet, "/gifs/"); rec.Code != http.StatusNotFound {
		t.Errorf("directory listing: status = %d, want 404", rec.Code)
	}
	if rec := doRequest(mux, http.MethodGet, "/gifs/missing.gif"); rec.Code != http.StatusNotFound {
		t.Errorf("missing file: status = %d, want 404", rec.Code)
	}
}
