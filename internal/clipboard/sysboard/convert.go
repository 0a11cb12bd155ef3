package sysboard

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"
	"time"

	"github.com/yiblet/cliphist/internal/content"
)

// ErrUnsupported is returned by Write for payloads the system clipboard
// cannot hold.
var ErrUnsupported = errors.New("sysboard: unsupported payload")

func recordFromText(data []byte, now time.Time) (content.Record, bool) {
	if len(data) == 0 {
		return content.Record{}, false
	}
	return content.Record{
		ID:        newID(),
		Format:    content.Text{Content: string(data)},
		Timestamp: now,
	}, true
}

// recordFromImage builds an Image record from PNG bytes as delivered by the
// native clipboard.
func recordFromImage(data []byte, now time.Time) (content.Record, bool) {
	if len(data) == 0 {
		return content.Record{}, false
	}
	img := content.Image{Content: data, MimeType: "image/png"}
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		img.Width = cfg.Width
		img.Height = cfg.Height
		img.MimeType = "image/" + format
	}
	return content.Record{ID: newID(), Format: img, Timestamp: now}, true
}

type payload struct {
	data  []byte
	image bool
}

// payloadFor converts a record into what the system clipboard accepts:
// UTF-8 text or PNG image bytes.
func payloadFor(r content.Record) (payload, error) {
	switch f := r.Format.(type) {
	case content.Text:
		return payload{data: []byte(f.Content)}, nil
	case content.HTML:
		return payload{data: []byte(preferPlain(f.PlainText, f.Content))}, nil
	case content.RTF:
		return payload{data: []byte(preferPlain(f.PlainText, f.Content))}, nil
	case content.Files:
		paths := make([]string, len(f.Files))
		for i, fi := range f.Files {
			paths[i] = fi.Path
		}
		return payload{data: []byte(strings.Join(paths, "\n"))}, nil
	case content.Image:
		data, err := toPNG(f)
		if err != nil {
			return payload{}, err
		}
		return payload{data: data, image: true}, nil
	case content.FileContent:
		data, err := f.Payload()
		if err != nil {
			return payload{}, fmt.Errorf("failed to reassemble %s: %w", f.OriginalPath, err)
		}
		if strings.HasPrefix(f.MimeType, "image/") {
			return payload{data: data, image: true}, nil
		}
		if f.MimeType != "" && !strings.HasPrefix(f.MimeType, "text/") {
			return payload{}, fmt.Errorf("%w: file content of type %s", ErrUnsupported, f.MimeType)
		}
		return payload{data: data}, nil
	case nil:
		return payload{}, fmt.Errorf("%w: record %s has no payload", ErrUnsupported, r.ID)
	default:
		return payload{}, fmt.Errorf("%w: %T", ErrUnsupported, f)
	}
}

func preferPlain(plain, markup string) string {
	if plain != "" {
		return plain
	}
	return markup
}

// toPNG returns the image encoded as PNG, re-encoding other formats.
func toPNG(img content.Image) ([]byte, error) {
	if img.MimeType == "" || img.MimeType == "image/png" {
		return img.Content, nil
	}
	decoded, _, err := image.Decode(bytes.NewReader(img.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot decode %s image: %v", ErrUnsupported, img.MimeType, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, decoded); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
