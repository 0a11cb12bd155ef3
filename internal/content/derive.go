package content

import (
	"fmt"
	"strings"
)

// SizeOf returns the payload size in bytes.
// Text-like payloads count the encoded bytes of their content, Files sums
// the known file sizes and FileContent reports its declared TotalSize.
func SizeOf(r Record) int64 {
	switch v := r.Format.(type) {
	case Text:
		return int64(len(v.Content))
	case HTML:
		return int64(len(v.Content))
	case RTF:
		return int64(len(v.Content))
	case Image:
		return int64(len(v.Content))
	case Files:
		var total int64
		for _, f := range v.Files {
			if f.Size != nil {
				total += *f.Size
			}
		}
		return total
	case FileContent:
		return v.TotalSize
	case nil:
		return 0
	default:
		panic(fmt.Sprintf("content: unhandled variant %T", v))
	}
}

// MimeOf returns the mime type of the payload. The second result is false
// when the payload carries no mime information.
func MimeOf(r Record) (string, bool) {
	switch v := r.Format.(type) {
	case Text:
		return "text/plain", true
	case HTML:
		return "text/html", true
	case RTF:
		return "text/rtf", true
	case Image:
		return v.MimeType, v.MimeType != ""
	case FileContent:
		return v.MimeType, v.MimeType != ""
	case Files:
		if len(v.Files) == 0 || v.Files[0].MimeType == "" {
			return "", false
		}
		return v.Files[0].MimeType, true
	case nil:
		return "", false
	default:
		panic(fmt.Sprintf("content: unhandled variant %T", v))
	}
}

// IsCompressed reports whether the payload is stored compressed.
func IsCompressed(r Record) bool {
	switch v := r.Format.(type) {
	case FileContent:
		return v.Compressed
	case Files:
		for _, f := range v.Files {
			if f.Compressed {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// SearchText returns the textual surface of a record used for free text
// search.
func SearchText(r Record) string {
	switch v := r.Format.(type) {
	case Text:
		return v.Content
	case HTML:
		if v.PlainText != "" {
			return v.PlainText
		}
		return v.Content
	case RTF:
		if v.PlainText != "" {
			return v.PlainText
		}
		return v.Content
	case Image:
		return v.MimeType
	case Files:
		parts := make([]string, 0, 2*len(v.Files))
		for _, f := range v.Files {
			parts = append(parts, f.Name, f.Path)
		}
		return strings.Join(parts, "\n")
	case FileContent:
		return v.OriginalPath
	default:
		return ""
	}
}
