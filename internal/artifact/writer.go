// Package artifact is the thin, optional collaborator that writes a
// detector's decoded payload to disk for manual inspection (spec.md
// §6, "Decoded artifact output").
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Writer persists decoded payloads under baseDir/<protocol>/<kind>/<txid>.<ext>.
type Writer struct {
	baseDir string
}

func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

// Write stores payload for txid, classified under protocol and the
// MIME-style contentType (mapped to one of the spec's five content
// families and a matching extension).
func (w *Writer) Write(protocol, contentType, txid string, payload []byte) (string, error) {
	kind, ext := kindAndExt(contentType)
	dir := filepath.Join(w.baseDir, sanitize(protocol), kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("artifact: mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, sanitize(txid)+ext)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("artifact: write %s: %w", path, err)
	}
	return path, nil
}

func kindAndExt(contentType string) (kind, ext string) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "images", "." + strings.TrimPrefix(contentType, "image/")
	case contentType == "application/json":
		return "json", ".json"
	case contentType == "text/html":
		return "html", ".html"
	case strings.Contains(contentType, "gzip") || strings.Contains(contentType, "zlib") || strings.Contains(contentType, "bzip2") || strings.Contains(contentType, "zip") || strings.Contains(contentType, "7z") || strings.Contains(contentType, "rar") || strings.Contains(contentType, "tar"):
		return "compressed", ".bin"
	default:
		return "data", ".bin"
	}
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
