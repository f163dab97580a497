package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	MaxWidth    = 1920
	MaxHeight   = 1080
	JPEGQuality = 85

	// MaxPixels bounds the decoded size of an image. A small, highly
	// compressed file can still declare enormous dimensions.
	MaxPixels = 40_000_000
)

// File is an uploaded image before storage.
type File struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Store persists images. Upload returns a reference to the object, URL
// turns a reference into one a client can fetch.
type Store interface {
	Upload(ctx context.Context, f File, folder string) (string, error)
	URL(ctx context.Context, ref string) (string, error)
	Delete(ctx context.Context, ref string) error
}

// Dimensions reads the image header only. ok is false for formats this
// process cannot decode.
func Dimensions(data []byte) (w, h int, ok bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

// WithinPixelBudget reports whether w x h stays under MaxPixels.
func WithinPixelBudget(w, h int) bool {
	return int64(w)*int64(h) <= MaxPixels
}

// Optimize fits the image inside MaxWidth x MaxHeight without enlarging it
// and re-encodes it as JPEG. ok is false when the bytes are not an image
// this process can decode or when its dimensions exceed MaxPixels.
func Optimize(data []byte) (out []byte, ok bool) {
	if w, h, known := Dimensions(data); !known || !WithinPixelBudget(w, h) {
		return nil, false
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	b := src.Bounds()
	w, h := fit(b.Dx(), b.Dy())

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

func fit(w, h int) (int, int) {
	if w <= MaxWidth && h <= MaxHeight {
		return w, h
	}
	scale := min(float64(MaxWidth)/float64(w), float64(MaxHeight)/float64(h))
	return max(1, int(float64(w)*scale+0.5)), max(1, int(float64(h)*scale+0.5))
}

// prepare returns the body, content type and object key for f.
func prepare(f File, folder string, now time.Time) (body []byte, contentType, key string) {
	prefix := fmt.Sprintf("%s/%d-%s", strings.Trim(folder, "/"), now.UnixMilli(), uuid.NewString()[:8])
	if out, ok := Optimize(f.Data); ok {
		return out, "image/jpeg", prefix + ".jpg"
	}
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	return f.Data, ct, prefix + strings.ToLower(path.Ext(f.Filename))
}

// Memory keeps objects in process. It stands in for S3 when no bucket is
// configured.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{objects: map[string][]byte{}, now: time.Now}
}

func (m *Memory) Upload(_ context.Context, f File, folder string) (string, error) {
	body, _, key := prepare(f, folder, m.now())
	m.mu.Lock()
	m.objects[key] = body
	m.mu.Unlock()
	return "memory://" + key, nil
}

// URL returns ref unchanged; memory objects are never served.
func (m *Memory) URL(_ context.Context, ref string) (string, error) {
	return ref, nil
}

func (m *Memory) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	delete(m.objects, strings.TrimPrefix(ref, "memory://"))
	m.mu.Unlock()
	return nil
}
