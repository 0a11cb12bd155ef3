package cli

import (
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/yiblet/cliphist/internal/content"
)

var (
	idStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	timeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	kindStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Width(12)
	favoriteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	keyStyle      = lipgloss.NewStyle().Bold(true)
	capturedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const timeLayout = "2006-01-02 15:04:05"

// renderRecord formats one history line:
// favorite marker, id, local time, kind and summary.
func renderRecord(r content.Record) string {
	marker := " "
	if r.Favorite {
		marker = favoriteStyle.Render("*")
	}
	return marker + " " +
		idStyle.Render(r.ID) + "  " +
		timeStyle.Render(r.Timestamp.Local().Format(timeLayout)) + "  " +
		kindStyle.Render(string(r.Kind())) +
		content.Summary(r)
}

// listEntry is the JSON shape of 'cliphist list --json'.
type listEntry struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Favorite  bool      `json:"favorite"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mime_type,omitempty"`
	Summary   string    `json:"summary"`
}

func newListEntry(r content.Record) listEntry {
	mime, _ := content.MimeOf(r)
	return listEntry{
		ID:        r.ID,
		Kind:      string(r.Kind()),
		Timestamp: r.Timestamp,
		Favorite:  r.Favorite,
		Size:      content.SizeOf(r),
		MimeType:  mime,
		Summary:   content.Summary(r),
	}
}
