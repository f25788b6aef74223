// Package storage keeps uploaded review images on the local filesystem.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedImage is returned for files that are not a decodable
// jpeg, png or webp image.
var ErrUnsupportedImage = errors.New("unsupported image")

// MaxEdge bounds the longer side of stored images.
const MaxEdge = 1600

// Uploads declaring a larger canvas are refused before decoding.
const (
	MaxSourceEdge   = 6000
	MaxSourcePixels = 24_000_000
)

var allowedExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

var allowedMIME = map[string]bool{"image/jpeg": true, "image/png": true, "image/webp": true}

// LocalImages writes images under Root.  Returned paths are relative to
// Root and use forward slashes.
type LocalImages struct {
	Root string
}

func NewLocalImages(root string) *LocalImages {
	if root == "" {
		root = "uploads"
	}
	return &LocalImages{Root: root}
}

// AllowedExtension reports whether the file name carries an accepted
// image extension.
func AllowedExtension(name string) bool {
	return allowedExt[strings.ToLower(filepath.Ext(name))]
}

// SaveReviewImage validates, decodes and re-encodes the image as JPEG under
// reviews/<uuid>.jpg.
func (s *LocalImages) SaveReviewImage(ctx context.Context, name string, data []byte) (string, error) {
	if !AllowedExtension(name) {
		return "", fmt.Errorf("%w: extension %q", ErrUnsupportedImage, filepath.Ext(name))
	}
	if ct := http.DetectContentType(data); !allowedMIME[ct] {
		return "", fmt.Errorf("%w: content type %s", ErrUnsupportedImage, ct)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width > MaxSourceEdge || cfg.Height > MaxSourceEdge || cfg.Width*cfg.Height > MaxSourcePixels {
		return "", fmt.Errorf("%w: %dx%d exceeds size limit", ErrUnsupportedImage, cfg.Width, cfg.Height)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	b := img.Bounds()
	if b.Dx() > MaxEdge || b.Dy() > MaxEdge {
		img = imaging.Fit(img, MaxEdge, MaxEdge, imaging.Lanczos)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rel := path.Join("reviews", uuid.NewString()+".jpg")
	full := filepath.Join(s.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}
	if err := imaging.Save(img, full, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	return rel, nil
}

// Remove deletes a previously saved image.  Missing files are ignored.
func (s *LocalImages) Remove(rel string) error {
	if rel == "" || strings.Contains(rel, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(s.Root, filepath.FromSlash(rel)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
