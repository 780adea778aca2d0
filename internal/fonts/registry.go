// Package fonts holds the process-wide set of font families the canvas can
// draw with. Built-in Go fonts are always available; additional families are
// loaded from manifest directories on disk.
//
// The countdown's default family, NotoSans, is not built in. Deployments
// supply it under FONTS_PATH as a family directory:
//
//	fonts/noto-sans/manifest.yaml   family: NotoSans, fileName: NotoSansTC-Medium.otf
//	fonts/noto-sans/NotoSansTC-Medium.otf
//
// Without it every default render uses the fallback family (GoMedium), and
// the miss is logged once.
package fonts

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/koios/countdown-renderer/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// DefaultFallback is used when a requested family is not registered.
const DefaultFallback = "GoMedium"

var builtins = map[string][]byte{
	"GoRegular": goregular.TTF,
	"GoMedium":  gomedium.TTF,
	"GoMono":    gomono.TTF,
	"GoBold":    gobold.TTF,
}

// Registry maps family names to parsed fonts. It is safe for concurrent use;
// the fonts it returns are shared and must only be used to create faces.
type Registry struct {
	mu       sync.RWMutex
	fonts    map[string]*opentype.Font
	fallback string
	warned   map[string]bool
	catalog  *models.FontCatalog
	logger   *zap.Logger
}

// NewRegistry creates a registry holding the built-in Go font families.
func NewRegistry(fallback string, logger *zap.Logger) (*Registry, error) {
	if fallback == "" {
		fallback = DefaultFallback
	}

	r := &Registry{
		fonts:   make(map[string]*opentype.Font),
		warned:  make(map[string]bool),
		catalog: models.NewFontCatalog(),
		logger:  logger,
	}

	for family, data := range builtins {
		f, err := opentype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse built-in font %s: %w", family, err)
		}
		r.fonts[family] = f
	}

	if _, ok := r.fonts[fallback]; !ok {
		return nil, fmt.Errorf("fallback font family %q is not a built-in family", fallback)
	}
	r.fallback = fallback

	return r, nil
}

// Register parses data and stores it under family, replacing any previous font.
func (r *Registry) Register(family string, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse font %s: %w", family, err)
	}

	r.mu.Lock()
	r.fonts[family] = f
	delete(r.warned, family)
	r.mu.Unlock()

	return nil
}

// LoadDir registers every family listed by the manifests under dir and
// returns the number of families loaded. Broken entries are logged and skipped.
func (r *Registry) LoadDir(dir string) (int, error) {
	catalog := models.NewFontCatalog()
	if err := catalog.LoadFonts(dir); err != nil {
		return 0, err
	}

	for name, err := range catalog.Skipped() {
		r.logger.Warn("Skipping font directory", zap.String("dir", name), zap.Error(err))
	}

	loaded := 0
	for _, manifest := range catalog.GetFontsList() {
		data, err := os.ReadFile(manifest.FontFilePath)
		if err != nil {
			r.logger.Warn("Failed to read font file",
				zap.String("family", manifest.Family),
				zap.String("path", manifest.FontFilePath),
				zap.Error(err))
			continue
		}
		if err := r.Register(manifest.Family, data); err != nil {
			r.logger.Warn("Failed to register font", zap.String("family", manifest.Family), zap.Error(err))
			continue
		}
		r.logger.Info("Registered font family",
			zap.String("family", manifest.Family),
			zap.String("file", manifest.FileName))
		loaded++
	}

	r.mu.Lock()
	r.catalog = catalog
	r.mu.Unlock()

	return loaded, nil
}

// Lookup returns the font for family and the family actually used. Unknown
// families resolve to the fallback; the first miss per family is logged.
func (r *Registry) Lookup(family string) (*opentype.Font, string) {
	r.mu.RLock()
	f, ok := r.fonts[family]
	if ok {
		r.mu.RUnlock()
		return f, family
	}
	fb := r.fonts[r.fallback]
	warned := r.warned[family]
	r.mu.RUnlock()

	if !warned {
		r.mu.Lock()
		r.warned[family] = true
		r.mu.Unlock()
		r.logger.Warn("Font family not registered, using fallback",
			zap.String("family", family),
			zap.String("fallback", r.fallback))
	}
	return fb, r.fallback
}

// Families returns the registered family names, sorted.
func (r *Registry) Families() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	families := make([]string, 0, len(r.fonts))
	for family := range r.fonts {
		families = append(families, family)
	}
	sort.Strings(families)
	return families
}

// Manifest returns the manifest a directory-loaded family was registered
// from. Built-in families have none.
func (r *Registry) Manifest(family string) (*models.FontManifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.catalog.GetFont(family)
}

// Fallback returns the family used for unknown names.
func (r *Registry) Fallback() string {
	return r.fallback
}

var (
	initOnce    sync.Once
	initialized *Registry
	initErr     error
)

// Init performs the process-wide font registration once: built-ins plus the
// families found under dir (dir may be empty or missing). Later calls return
// the registry from the first call and ignore their arguments.
func Init(dir, fallback string, logger *zap.Logger) (*Registry, error) {
	initOnce.Do(func() {
		r, err := NewRegistry(fallback, logger)
		if err != nil {
			initErr = err
			return
		}
		if dir != "" {
			n, err := r.LoadDir(dir)
			if err != nil {
				logger.Warn("Font directory not loaded, using built-in fonts only",
					zap.String("dir", dir),
					zap.Error(err))
			} else {
				logger.Info("Loaded font directory", zap.String("dir", dir), zap.Int("families", n))
			}
		}
		initialized = r
	})
	return initialized, initErr
}
