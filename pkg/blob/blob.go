// Package blob is the attachment store: durable files on local disk keyed
// by generated name, referenced from messages by URL. The sweeper owns
// deletion once the referencing message is gone.
package blob

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"m5chat/pkg/logger"
	"m5chat/pkg/models"
)

// URLPrefix is the public path under which stored files are served.
const URLPrefix = "/uploads/"

var (
	ErrTooLarge        = errors.New("attachment exceeds configured size limit")
	ErrUnsupportedType = errors.New("attachment extension not allowed for this kind")
)

// allowedExts maps a message variant to the file extensions accepted for it.
var allowedExts = map[string]map[string]struct{}{
	models.TypeImage: {".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}},
	models.TypeVoice: {".webm": {}, ".ogg": {}, ".mp3": {}, ".wav": {}, ".m4a": {}},
}

// FS stores attachments under a single directory.
type FS struct {
	dir     string
	maxSize int64
}

// New creates the upload directory if needed and returns a store writing
// into it. maxSize bounds a single attachment in bytes.
func New(dir string, maxSize int64) (*FS, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &FS{dir: dir, maxSize: maxSize}, nil
}

// Dir returns the directory attachments are written to.
func (f *FS) Dir() string { return f.dir }

// Save validates and stores one attachment. kind must be an attachment
// variant (image or voice) and origName's extension must be allowed for it.
// It returns the public URL to reference from a message and the storage
// path tracked internally for sweep-time deletion.
func (f *FS) Save(kind, origName string, r io.Reader) (url, path string, err error) {
	exts, ok := allowedExts[kind]
	if !ok {
		return "", "", fmt.Errorf("%w: kind %q", ErrUnsupportedType, kind)
	}
	ext := strings.ToLower(filepath.Ext(filepath.Base(origName)))
	if _, ok := exts[ext]; !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}

	name := uuid.NewString() + ext
	path = filepath.Join(f.dir, name)
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", "", fmt.Errorf("failed to create attachment file: %w", err)
	}
	n, err := io.Copy(dst, io.LimitReader(r, f.maxSize+1))
	cerr := dst.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", "", fmt.Errorf("failed to write attachment: %w", err)
	}
	if n > f.maxSize {
		_ = os.Remove(path)
		return "", "", fmt.Errorf("%w: limit %d bytes", ErrTooLarge, f.maxSize)
	}
	logger.Debug("attachment_saved", "kind", kind, "name", name, "bytes", n)
	return URLPrefix + name, path, nil
}

// Remove deletes a stored attachment. It is idempotent: a file that is
// already absent is not an error.
func (f *FS) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
