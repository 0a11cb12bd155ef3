package content

import (
	"fmt"
	"strings"
	"unicode"
)

// MaxSummaryLen bounds the length of a record summary.
const MaxSummaryLen = 80

// Summary returns a single line describing the record, suitable for
// listings. Text payloads use their first non-empty line.
func Summary(r Record) string {
	switch v := r.Format.(type) {
	case Text:
		return textSummary(v.Content)
	case HTML:
		if v.PlainText != "" {
			return textSummary(v.PlainText)
		}
		return textSummary(v.Content)
	case RTF:
		if v.PlainText != "" {
			return textSummary(v.PlainText)
		}
		return "[rich text]"
	case Image:
		return fmt.Sprintf("[image %dx%d %s]", v.Width, v.Height, v.MimeType)
	case Files:
		if len(v.Files) == 1 {
			return TruncateTitle("[file] "+v.Files[0].Name, MaxSummaryLen)
		}
		return fmt.Sprintf("[%d files]", len(v.Files))
	case FileContent:
		name := v.OriginalPath
		if name == "" {
			name = "unnamed"
		}
		return TruncateTitle("[file content] "+name, MaxSummaryLen)
	default:
		return "[empty]"
	}
}

func textSummary(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if cleaned := strings.TrimSpace(line); cleaned != "" {
			return TruncateTitle(SanitizeTitle(cleaned), MaxSummaryLen)
		}
	}
	return "[empty]"
}

// TruncateTitle ensures title is at most maxLen runes.
// If truncation is needed, appends "..." to indicate truncation.
func TruncateTitle(title string, maxLen int) string {
	title = strings.TrimSpace(title)

	runes := []rune(title)
	if len(runes) <= maxLen {
		return title
	}

	// Reserve 3 characters for "..."
	if maxLen < 3 {
		return strings.Repeat(".", maxLen)
	}

	return string(runes[:maxLen-3]) + "..."
}

// SanitizeTitle removes control characters and collapses whitespace.
func SanitizeTitle(title string) string {
	title = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, title)

	return strings.Join(strings.Fields(title), " ")
}
