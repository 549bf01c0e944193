package qr

import (
	"fmt"
	"os"
	"path/filepath"

	qrcode "github.com/skip2/go-qrcode"
)

const defaultImageSize = 300

// Renderer writes table QR codes as PNG files under Dir.
type Renderer struct {
	Dir         string
	FrontendURL string
	Size        int
}

func NewRenderer(dir, frontendURL string) *Renderer {
	return &Renderer{Dir: dir, FrontendURL: frontendURL, Size: defaultImageSize}
}

// PNG encodes the scan URL for code.
func (r *Renderer) PNG(code string) ([]byte, error) {
	size := r.Size
	if size <= 0 {
		size = defaultImageSize
	}
	png, err := qrcode.Encode(ScanURL(r.FrontendURL, code), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr %s: %w", code, err)
	}
	return png, nil
}

// RenderFile writes table-<n>.png and returns its path.
func (r *Renderer) RenderFile(tableNumber int) (string, error) {
	png, err := r.PNG(Format(tableNumber))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", r.Dir, err)
	}
	path := filepath.Join(r.Dir, fmt.Sprintf("table-%d.png", tableNumber))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
