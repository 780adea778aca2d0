package models

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// FontManifest represents the manifest.yaml structure for a font family
type FontManifest struct {
	Family   string `yaml:"family" json:"family"`
	Name     string `yaml:"name" json:"name"`
	FileName string `yaml:"fileName" json:"fileName"`
	Author   string `yaml:"author" json:"author"`
	License  string `yaml:"license" json:"license"`

	// Runtime fields (not in manifest)
	DirectoryPath string `yaml:"-" json:"directoryPath"`
	FontFilePath  string `yaml:"-" json:"fontFilePath"`
}

// LoadManifest loads a manifest.yaml file from the given directory
func LoadManifest(fontDir string) (*FontManifest, error) {
	manifestPath := filepath.Join(fontDir, "manifest.yaml")

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var manifest FontManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest file: %w", err)
	}

	if manifest.Family == "" {
		return nil, fmt.Errorf("manifest %s does not name a family", manifestPath)
	}

	manifest.DirectoryPath = fontDir
	manifest.FontFilePath = filepath.Join(fontDir, manifest.FileName)

	if _, err := os.Stat(manifest.FontFilePath); err != nil {
		return nil, fmt.Errorf("font file not found: %s", manifest.FontFilePath)
	}

	return &manifest, nil
}

// FontCatalog manages the collection of font manifests found on disk
type FontCatalog struct {
	fonts   map[string]*FontManifest
	skipped map[string]error
}

// NewFontCatalog creates an empty font catalog
func NewFontCatalog() *FontCatalog {
	return &FontCatalog{
		fonts:   make(map[string]*FontManifest),
		skipped: make(map[string]error),
	}
}

// LoadFonts scans fontsDir/{family}/manifest.yaml. Directories with a broken
// manifest are skipped and reported by Skipped.
func (c *FontCatalog) LoadFonts(fontsDir string) error {
	c.fonts = make(map[string]*FontManifest)
	c.skipped = make(map[string]error)

	entries, err := os.ReadDir(fontsDir)
	if err != nil {
		return fmt.Errorf("failed to read fonts directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		fontDir := filepath.Join(fontsDir, entry.Name())
		manifest, err := LoadManifest(fontDir)
		if err != nil {
			c.skipped[entry.Name()] = err
			continue
		}

		c.fonts[manifest.Family] = manifest
	}

	return nil
}

// GetFont returns a font manifest by family
func (c *FontCatalog) GetFont(family string) (*FontManifest, bool) {
	font, exists := c.fonts[family]
	return font, exists
}

// GetFontsList returns all font manifests sorted by family
func (c *FontCatalog) GetFontsList() []*FontManifest {
	fonts := make([]*FontManifest, 0, len(c.fonts))
	for _, font := range c.fonts {
		fonts = append(fonts, font)
	}
	sort.Slice(fonts, func(i, j int) bool { return fonts[i].Family < fonts[j].Family })
	return fonts
}

// Skipped returns the directories that failed to load, keyed by directory name
func (c *FontCatalog) Skipped() map[string]error {
	result := make(map[string]error, len(c.skipped))
	for k, v := range c.skipped {
		result[k] = v
	}
	return result
}
