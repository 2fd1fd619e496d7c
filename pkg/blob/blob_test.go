package blob

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"m5chat/pkg/models"
)

func TestSaveAndRemove(t *testing.T) {
	fs, err := New(t.TempDir(), 1024)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	url, path, err := fs.Save(models.TypeImage, "cat.png", strings.NewReader("pngbytes"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(url, URLPrefix) || !strings.HasSuffix(url, ".png") {
		t.Fatalf("url = %q", url)
	}
	if filepath.Dir(path) != fs.Dir() {
		t.Fatalf("path %q not under %q", path, fs.Dir())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "pngbytes" {
		t.Fatalf("stored bytes = %q", data)
	}

	if err := fs.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	// already absent is fine
	if err := fs.Remove(path); err != nil {
		t.Fatalf("Remove twice: %v", err)
	}
}

func TestSaveRejectsBadKindAndExtension(t *testing.T) {
	fs, err := New(t.TempDir(), 1024)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := fs.Save(models.TypeText, "a.png", strings.NewReader("x")); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("Save(text kind) = %v; want ErrUnsupportedType", err)
	}
	if _, _, err := fs.Save(models.TypeImage, "malware.exe", strings.NewReader("x")); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("Save(.exe) = %v; want ErrUnsupportedType", err)
	}
	if _, _, err := fs.Save(models.TypeVoice, "note.ogg", strings.NewReader("x")); err != nil {
		t.Fatalf("Save(voice .ogg): %v", err)
	}
}

func TestSaveEnforcesSizeLimit(t *testing.T) {
	fs, err := New(t.TempDir(), 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, _, err = fs.Save(models.TypeImage, "big.png", strings.NewReader("way more than eight bytes"))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Save(oversized) = %v; want ErrTooLarge", err)
	}
	// nothing left behind
	entries, rerr := os.ReadDir(fs.Dir())
	if rerr != nil {
		t.Fatalf("ReadDir: %v", rerr)
	}
	if len(entries) != 0 {
		t.Fatalf("oversized upload left %d files", len(entries))
	}
}
