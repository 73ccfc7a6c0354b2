// Package audio decides whether an uploaded payload is a supported audio file.
package audio

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// ErrUnsupportedFormat is returned for payloads that are not accepted audio.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Format is the canonical extension and MIME type chosen for a payload.
type Format struct {
	Ext         string
	ContentType string
}

var contentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".dsf":  "audio/dsf",
}

// ContentTypeFor returns the MIME type for a known audio extension.
func ContentTypeFor(ext string) string {
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Detector accepts payloads whose detected extension is in its allow list.
type Detector struct {
	allowed map[string]bool
}

func NewDetector(exts []string) *Detector {
	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(e)] = true
	}
	return &Detector{allowed: allowed}
}

// Detect inspects the payload, then the file name. r is rewound before return.
//
// Order: container signatures via tag.Identify, then net/http sniffing, then
// the extension of filename. A payload sniffed as some non-audio type (text,
// image, archive) is rejected whatever its name says.
func (d *Detector) Detect(r io.ReadSeeker, filename, declared string) (Format, error) {
	ext, identified := identify(r)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Format{}, fmt.Errorf("failed to rewind upload: %w", err)
	}
	if identified {
		return d.accept(ext)
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Format{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Format{}, fmt.Errorf("failed to rewind upload: %w", err)
	}
	if n == 0 {
		return Format{}, fmt.Errorf("%w: empty payload", ErrUnsupportedFormat)
	}

	sniffed := http.DetectContentType(head[:n])
	switch {
	case strings.HasPrefix(sniffed, "audio/wave"):
		return d.accept(".wav")
	case strings.HasPrefix(sniffed, "audio/mpeg"):
		return d.accept(".mp3")
	case strings.HasPrefix(sniffed, "application/ogg"):
		return d.accept(".ogg")
	case sniffed != "application/octet-stream":
		return Format{}, fmt.Errorf("%w: payload looks like %s", ErrUnsupportedFormat, sniffed)
	}

	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared != "" && !strings.HasPrefix(declared, "audio/") && declared != "application/octet-stream" {
		return Format{}, fmt.Errorf("%w: declared %s", ErrUnsupportedFormat, declared)
	}
	return d.accept(strings.ToLower(filepath.Ext(filename)))
}

func (d *Detector) accept(ext string) (Format, error) {
	if ext == "" || !d.allowed[ext] {
		return Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return Format{Ext: ext, ContentType: ContentTypeFor(ext)}, nil
}

// identify recognises tagged MP3, FLAC, OGG, MP4 and DSF containers.
func identify(r io.ReadSeeker) (string, bool) {
	_, fileType, err := tag.Identify(r)
	if err != nil {
		return "", false
	}
	switch fileType {
	case tag.MP3:
		return ".mp3", true
	case tag.FLAC:
		return ".flac", true
	case tag.OGG:
		return ".ogg", true
	case tag.M4A, tag.M4B, tag.M4P, tag.ALAC:
		return ".m4a", true
	case tag.DSF:
		return ".dsf", true
	}
	return "", false
}
