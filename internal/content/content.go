// Package content defines the clipboard payload model: records, the closed
// set of payload variants and the pure derivations (size, mime type,
// compression, chunk progress) consumed by filtering and presentation.
package content

import (
	"strings"
	"time"
)

// Kind is the discriminant of a Variant.
type Kind string

const (
	KindText        Kind = "Text"
	KindImage       Kind = "Image"
	KindHTML        Kind = "Html"
	KindRTF         Kind = "Rtf"
	KindFiles       Kind = "Files"
	KindFileContent Kind = "FileContent"
)

// Kinds lists every variant kind in declaration order.
var Kinds = []Kind{KindText, KindImage, KindHTML, KindRTF, KindFiles, KindFileContent}

// ParseKind resolves a kind name case-insensitively.
func ParseKind(name string) (Kind, bool) {
	for _, k := range Kinds {
		if strings.EqualFold(string(k), name) {
			return k, true
		}
	}
	return "", false
}

// Variant is a clipboard payload. Exactly one of the concrete types below
// implements it; new payload shapes are added by extending this set and
// every switch over it.
type Variant interface {
	Kind() Kind
	isVariant()
}

// Text is a plain text payload.
type Text struct {
	Content string
}

// Image is a raster image payload.
type Image struct {
	Content  []byte
	MimeType string
	Width    int
	Height   int
}

// HTML is an HTML fragment with an optional plain text rendition.
type HTML struct {
	Content   string
	PlainText string
}

// RTF is a rich text payload with an optional plain text rendition.
type RTF struct {
	Content   string
	PlainText string
}

// Files is a list of file references copied from a file manager.
type Files struct {
	Files      []FileInfo
	HasRawData bool
}

// FileContent is the content of a single file delivered as indexed chunks.
// TotalSize is authoritative for size calculations.
type FileContent struct {
	Chunks       []Chunk
	OriginalPath string
	MimeType     string
	TotalSize    int64
	Compressed   bool
}

func (Text) Kind() Kind        { return KindText }
func (Image) Kind() Kind       { return KindImage }
func (HTML) Kind() Kind        { return KindHTML }
func (RTF) Kind() Kind         { return KindRTF }
func (Files) Kind() Kind       { return KindFiles }
func (FileContent) Kind() Kind { return KindFileContent }

func (Text) isVariant()        {}
func (Image) isVariant()       {}
func (HTML) isVariant()        {}
func (RTF) isVariant()         {}
func (Files) isVariant()       {}
func (FileContent) isVariant() {}

// FileInfo describes one entry of a Files payload. A nil Size means the
// size is unknown.
type FileInfo struct {
	Path       string
	Name       string
	Extension  string
	Exists     bool
	Size       *int64
	MimeType   string
	Compressed bool
}

// Chunk is one indexed fragment of a chunked transfer. Data holds the
// decoded bytes of the fragment.
type Chunk struct {
	Index       int
	TotalChunks int
	Data        []byte
	Complete    bool
	Compressed  bool
}

// Progress reports the state of a long running native operation.
// Fraction is in [0, 1]. ETA and Speed are nil when unknown.
type Progress struct {
	Operation      string
	Fraction       float64
	BytesProcessed int64
	TotalBytes     int64
	ETA            *time.Duration
	Speed          *float64
}

// Record is one stored clipboard capture. ID is a stable surrogate key;
// records are never identified by timestamp or position.
type Record struct {
	ID        string
	Format    Variant
	Timestamp time.Time
	Favorite  bool
}

// Kind returns the kind of the record's payload, or "" when it has none.
func (r Record) Kind() Kind {
	if r.Format == nil {
		return ""
	}
	return r.Format.Kind()
}
