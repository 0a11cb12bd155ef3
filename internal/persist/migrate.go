package persist

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/yiblet/cliphist/internal/content"
)

// rawDocument accepts every document version. Fields are optional so that
// legacy documents can be told apart from current ones.
type rawDocument struct {
	Version *int              `json:"version"`
	Entries []json.RawMessage `json:"entries"`
	Filter  *filterDoc        `json:"filter"`
}

// rawEntry accepts both current entries (tagged format object) and legacy
// entries (content string plus contentType).
type rawEntry struct {
	ID          string          `json:"id"`
	Format      json.RawMessage `json:"format"`
	Timestamp   json.RawMessage `json:"timestamp"`
	Favorite    bool            `json:"favorite"`
	Content     *string         `json:"content"`
	ContentType string          `json:"contentType"`
}

var errNoPayload = errors.New("entry has no payload")

// Decode parses a document of any known version. Documents older than
// CurrentVersion are migrated: the filter resets to an empty search,
// legacy payloads are converted and missing IDs and timestamps are filled.
// Documents newer than CurrentVersion yield Empty. Entries that cannot be
// decoded are skipped.
func (a *Adapter) Decode(data []byte) (State, error) {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return State{}, fmt.Errorf("failed to parse history document: %w", err)
	}

	version := 0
	if doc.Version != nil {
		version = *doc.Version
	}
	if version > CurrentVersion {
		a.log.Warn("unknown history document version, starting empty", "version", version)
		return Empty(), nil
	}
	legacy := version < CurrentVersion
	if legacy {
		a.log.Info("migrating history document", "from", version, "to", CurrentVersion)
	}

	st := Empty()
	if !legacy && doc.Filter != nil {
		st.Search = doc.Filter.Search
	}
	for i, raw := range doc.Entries {
		r, err := a.decodeEntry(raw, legacy)
		if err != nil {
			a.log.Warn("skipping unreadable history entry", "index", i, "error", err)
			continue
		}
		st.Entries = append(st.Entries, r)
	}
	return st, nil
}

func (a *Adapter) decodeEntry(raw json.RawMessage, legacy bool) (content.Record, error) {
	var e rawEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return content.Record{}, fmt.Errorf("failed to parse entry: %w", err)
	}

	r := content.Record{ID: e.ID, Favorite: e.Favorite}

	switch {
	case present(e.Format):
		v, err := DecodeVariant(e.Format)
		if err != nil {
			return content.Record{}, err
		}
		r.Format = v
	case legacy && e.Content != nil:
		r.Format = legacyVariant(*e.Content, e.ContentType)
	default:
		return content.Record{}, errNoPayload
	}

	if present(e.Timestamp) {
		ts, err := ReviveTimestamp(e.Timestamp)
		if err != nil {
			return content.Record{}, err
		}
		r.Timestamp = ts
	} else if legacy {
		r.Timestamp = a.now().UTC()
	} else {
		return content.Record{}, errors.New("entry has no timestamp")
	}

	if r.ID == "" {
		if !legacy {
			return content.Record{}, errors.New("entry has no id")
		}
		r.ID = a.newID()
	}
	return r, nil
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// legacyVariant converts a version 0/1 payload, which stored a single
// content string and a loose content type name.
func legacyVariant(text, contentType string) content.Variant {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "html":
		return content.HTML{Content: text}
	case "rtf":
		return content.RTF{Content: text}
	case "image":
		if data, err := base64.StdEncoding.DecodeString(text); err == nil {
			return content.Image{Content: data, MimeType: "image/png"}
		}
	}
	return content.Text{Content: text}
}

// ReviveTimestamp parses a stored timestamp. Strings are parsed as RFC 3339
// or one of a few common layouts; numbers (and numeric strings) are Unix
// time in seconds, or milliseconds when too large to be seconds.
func ReviveTimestamp(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseTimestamp(s)
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return fromUnix(n), nil
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", raw)
}

// millisThreshold separates Unix seconds from Unix milliseconds: 1e11
// seconds is in the year 5138, 1e11 milliseconds is in 1973.
const millisThreshold = 1e11

func fromUnix(n float64) time.Time {
	if math.Abs(n) >= millisThreshold {
		return time.UnixMilli(int64(n)).UTC()
	}
	sec, frac := math.Modf(n)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return fromUnix(n), nil
	}

	formats := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.000Z07:00",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05",
		time.RFC1123Z,
		time.RFC1123,
	}
	for _, format := range formats {
		t, err := time.Parse(format, s)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", s)
}
