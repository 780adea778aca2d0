package fonts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/koios/countdown-renderer/internal/countdown"
	"go.uber.org/zap"
	"golang.org/x/image/font/gofont/gomono"
)

func TestNewRegistry_Builtins(t *testing.T) {
	r, err := NewRegistry("", zap.NewNop())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	for _, family := range []string{"GoRegular", "GoMedium", "GoMono", "GoBold"} {
		f, used := r.Lookup(family)
		if f == nil || used != family {
			t.Errorf("Lookup(%q) = %v, %q", family, f, used)
		}
	}
	if r.Fallback() != DefaultFallback {
		t.Errorf("Fallback = %q, want %q", r.Fallback(), DefaultFallback)
	}
}

func TestNewRegistry_UnknownFallback(t *testing.T) {
	if _, err := NewRegistry("Comic", zap.NewNop()); err == nil {
		t.Error("expected error for unknown fallback family")
	}
}

func TestLookup_FallsBack(t *testing.T) {
	r, _ := NewRegistry("GoMono", zap.NewNop())

	f, used := r.Lookup("NotoSans")
	if f == nil {
		t.Fatal("expected fallback font")
	}
	if used != "GoMono" {
		t.Errorf("used = %q, want GoMono", used)
	}

	if err := r.Register("NotoSans", gomono.TTF); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, used := r.Lookup("NotoSans"); used != "NotoSans" {
		t.Errorf("used = %q after Register, want NotoSans", used)
	}
}

func TestLookup_DefaultFamilyNeedsFontDir(t *testing.T) {
	r, _ := NewRegistry("", zap.NewNop())
	if _, used := r.Lookup(countdown.DefaultFontFamily); used != DefaultFallback {
		t.Errorf("stock registry resolved %s to %q, want %s", countdown.DefaultFontFamily, used, DefaultFallback)
	}
}

func TestRegister_InvalidData(t *testing.T) {
	r, _ := NewRegistry("", zap.NewNop())
	if err := r.Register("Broken", []byte("not a font")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadDir(t *testing.T) {
	root := t.TempDir()

	dir := filepath.Join(root, "roboto-mono")
	os.MkdirAll(dir, 0755)
	os.WriteFile(filepath.Join(dir, "RobotoMono.ttf"), gomono.TTF, 0644)
	os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte("family: RobotoMono\nfileName: RobotoMono.ttf\n"), 0644)

	bad := filepath.Join(root, "bad")
	os.MkdirAll(bad, 0755)
	os.WriteFile(filepath.Join(bad, "Bad.ttf"), []byte("garbage"), 0644)
	os.WriteFile(filepath.Join(bad, "manifest.yaml"), []byte("family: Bad\nfileName: Bad.ttf\n"), 0644)

	r, _ := NewRegistry("", zap.NewNop())
	n, err := r.LoadDir(root)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if n != 1 {
		t.Errorf("loaded %d families, want 1", n)
	}
	if _, used := r.Lookup("RobotoMono"); used != "RobotoMono" {
		t.Errorf("RobotoMono resolved to %q", used)
	}
	if _, used := r.Lookup("Bad"); used != DefaultFallback {
		t.Errorf("Bad resolved to %q, want fallback", used)
	}

	families := r.Families()
	if len(families) != 5 {
		t.Errorf("Families() = %v, want 4 built-ins plus RobotoMono", families)
	}

	if m, ok := r.Manifest("RobotoMono"); !ok || m.FileName != "RobotoMono.ttf" {
		t.Errorf("Manifest(RobotoMono) = %+v, %v", m, ok)
	}
	if _, ok := r.Manifest("GoMono"); ok {
		t.Error("built-in family should have no manifest")
	}
}

func TestInit_Idempotent(t *testing.T) {
	first, err := Init("", "", zap.NewNop())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	second, err := Init("/ignored", "GoMono", zap.NewNop())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if first != second {
		t.Error("Init should return the same registry on every call")
	}
}
