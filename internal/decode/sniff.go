// Package decode holds the cryptographic and binary-format decoders
// shared by the classifier cascade: ARC4, the Omni SHA-256 keystream,
// and content-sniffing helpers.
package decode

import (
	"bytes"
	"encoding/json"
)

// Magic byte sequences recognized by DataStorage and Stamps variant
// sniffing (spec.md §4.3.3, §4.3.9).
var (
	magicPNG  = []byte{0x89, 0x50, 0x4e, 0x47}
	magicGIF  = []byte("GIF8")
	magicJPG  = []byte{0xff, 0xd8, 0xff}
	magicBMP  = []byte("BM")
	magicWebP = []byte("RIFF") // followed by "WEBP" at offset 8
	magicSVG  = []byte("<svg")
	magicGZIP = []byte{0x1f, 0x8b}
	magicZLIBLow  byte = 0x78
	magicPDF  = []byte("%PDF")
	magicZIP  = []byte{0x50, 0x4b, 0x03, 0x04}
	magicRAR  = []byte{0x52, 0x61, 0x72, 0x21}
	magic7z   = []byte{0x37, 0x7a, 0xbc, 0xaf, 0x27, 0x1c}
	magicBZIP2 = []byte("BZh")
)

// ContentKind is the coarse content family a sniffer recognizes.
type ContentKind string

const (
	KindGZIP        ContentKind = "gzip"
	KindZLIB        ContentKind = "zlib"
	KindBZIP2       ContentKind = "bzip2"
	KindPNG         ContentKind = "png"
	KindGIF         ContentKind = "gif"
	KindJPEG        ContentKind = "jpeg"
	KindWebP        ContentKind = "webp"
	KindSVG         ContentKind = "svg"
	KindBMP         ContentKind = "bmp"
	KindPDF         ContentKind = "pdf"
	KindZIP         ContentKind = "zip"
	KindRAR         ContentKind = "rar"
	Kind7z          ContentKind = "7z"
	KindTAR         ContentKind = "tar"
	KindHTML        ContentKind = "html"
	KindJSON        ContentKind = "json"
	KindNone        ContentKind = ""
)

// ContentType maps a ContentKind to a MIME-style content type string.
func ContentType(k ContentKind) string {
	switch k {
	case KindGZIP:
		return "application/gzip"
	case KindZLIB:
		return "application/zlib"
	case KindBZIP2:
		return "application/x-bzip2"
	case KindPNG:
		return "image/png"
	case KindGIF:
		return "image/gif"
	case KindJPEG:
		return "image/jpeg"
	case KindWebP:
		return "image/webp"
	case KindSVG:
		return "image/svg+xml"
	case KindBMP:
		return "image/bmp"
	case KindPDF:
		return "application/pdf"
	case KindZIP:
		return "application/zip"
	case KindRAR:
		return "application/x-rar-compressed"
	case Kind7z:
		return "application/x-7z-compressed"
	case KindTAR:
		return "application/x-tar"
	case KindHTML:
		return "text/html"
	case KindJSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// SniffCompression detects GZIP or ZLIB magic at the start of data.
// Used by Stamps priority (1): compression magic.
func SniffCompression(data []byte) ContentKind {
	if bytes.HasPrefix(data, magicGZIP) {
		return KindGZIP
	}
	if len(data) >= 2 && data[0] == magicZLIBLow && isValidZLIBHeader(data[0], data[1]) {
		return KindZLIB
	}
	return KindNone
}

// isValidZLIBHeader validates the CMF/FLG checksum: (CMF*256+FLG) % 31 == 0.
func isValidZLIBHeader(cmf, flg byte) bool {
	return (int(cmf)*256+int(flg))%31 == 0
}

// SniffImage detects PNG/GIF/JPEG/WebP/SVG/BMP magic. Used by Stamps
// priority (2) and DataStorage binary-magic evidence.
func SniffImage(data []byte) ContentKind {
	switch {
	case bytes.HasPrefix(data, magicPNG):
		return KindPNG
	case bytes.HasPrefix(data, magicGIF):
		return KindGIF
	case bytes.HasPrefix(data, magicJPG):
		return KindJPEG
	case len(data) >= 12 && bytes.HasPrefix(data, magicWebP) && bytes.Equal(data[8:12], []byte("WEBP")):
		return KindWebP
	case bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), magicSVG):
		return KindSVG
	case bytes.HasPrefix(data, magicBMP):
		return KindBMP
	default:
		return KindNone
	}
}

// SniffArchive detects PDF/ZIP/RAR/7z/TAR (ustar at offset 257) magic.
// Used by DataStorage evidence (spec.md §4.3.9).
func SniffArchive(data []byte) ContentKind {
	switch {
	case bytes.HasPrefix(data, magicPDF):
		return KindPDF
	case bytes.HasPrefix(data, magicZIP):
		return KindZIP
	case bytes.HasPrefix(data, magicRAR):
		return KindRAR
	case bytes.HasPrefix(data, magic7z):
		return Kind7z
	case len(data) >= 257+5 && bytes.Equal(data[257:257+5], []byte("ustar")):
		return KindTAR
	default:
		return KindNone
	}
}

// SniffBzip2 detects the BZh magic DataStorage treats as evidence of an
// embedded bzip2 stream.
func SniffBzip2(data []byte) bool {
	return bytes.HasPrefix(data, magicBZIP2)
}

// JSONTopLevelKeys unmarshals data as a JSON object and returns its
// top-level keys, or nil if data is not a JSON object. Used by Stamps
// priority (3) SRC-20/SRC-721/SRC-101 detection and PPk's profile TLV.
func JSONTopLevelKeys(data []byte) []string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(data), &obj); err != nil {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	return keys
}

// HTMLMarkers reports whether data contains an HTML content marker.
// Used by Stamps priority (4).
func HTMLMarkers(data []byte) bool {
	lower := bytes.ToLower(data)
	return bytes.Contains(lower, []byte("<html")) ||
		bytes.Contains(lower, []byte("<!doctype")) ||
		bytes.Contains(lower, []byte("<style"))
}

// PrintableASCIIRatio returns the fraction of bytes in data that are
// printable ASCII (0x20-0x7e, plus tab/CR/LF).
func PrintableASCIIRatio(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	printable := 0
	for _, b := range data {
		if isPrintable(b) {
			printable++
		}
	}
	return float64(printable) / float64(len(data))
}

func isPrintable(b byte) bool {
	return (b >= 0x20 && b <= 0x7e) || b == '\t' || b == '\r' || b == '\n'
}

// LongestPrintableRun returns the length of the longest contiguous run
// of printable ASCII bytes in data.
func LongestPrintableRun(data []byte) int {
	best, cur := 0, 0
	for _, b := range data {
		if isPrintable(b) {
			cur++
			if cur > best {
				best = cur
			}
		} else {
			cur = 0
		}
	}
	return best
}

// IsAllFF reports whether data consists entirely of 0xFF bytes of one
// of the proof-of-burn lengths (32, 33, or 65 bytes).
func IsAllFF(data []byte) bool {
	if len(data) != 32 && len(data) != 33 && len(data) != 65 {
		return false
	}
	for _, b := range data {
		if b != 0xff {
			return false
		}
	}
	return true
}

// IsAllZero reports whether every byte in data is zero.
func IsAllZero(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
