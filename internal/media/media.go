// Package media stores uploaded product images.
package media

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/xenking/tokyo-express/internal/domain"
)

// MaxImageSize is the default upload limit.
const MaxImageSize = 5 << 20

var allowedExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
}

// ErrUnsupportedType is returned for files that are not images.
var ErrUnsupportedType = domain.Invalid("image", "unsupported image type")

// Object is a stored file.
type Object struct {
	Filename string
	// URL is absolute for remote stores and a root-relative path for the
	// disk store.
	URL string
}

// Store saves uploaded images.
type Store interface {
	Save(ctx context.Context, original string, r io.Reader) (Object, error)
}

var spaces = regexp.MustCompile(`\s+`)

// Filename builds a unique stored name from the client's file name:
// "<base>-<unix ms>-<random>.<ext>" with whitespace in base replaced by "_".
func Filename(original string, now time.Time) (string, error) {
	original = filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(original))
	if _, ok := allowedExt[ext]; !ok {
		return "", ErrUnsupportedType
	}
	base := spaces.ReplaceAllString(strings.TrimSpace(strings.TrimSuffix(original, filepath.Ext(original))), "_")
	if base == "" || base == "." {
		base = "image"
	}
	return fmt.Sprintf("%s-%d-%d%s", base, now.UnixMilli(), rand.IntN(1e9), ext), nil
}

// ContentType returns the MIME type for a stored file name.
func ContentType(name string) string {
	if ct, ok := allowedExt[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}
