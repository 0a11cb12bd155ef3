package persist

import (
	"encoding/json"
	"fmt"

	"github.com/yiblet/cliphist/internal/content"
)

// The wire shapes below tag every payload with a "format" discriminator
// and use snake_case field names.

type textDoc struct {
	Format  content.Kind `json:"format"`
	Content string       `json:"content"`
}

type imageDoc struct {
	Format   content.Kind `json:"format"`
	Content  []byte       `json:"content"`
	MimeType string       `json:"mime_type"`
	Width    int          `json:"width"`
	Height   int          `json:"height"`
}

type markupDoc struct {
	Format    content.Kind `json:"format"`
	Content   string       `json:"content"`
	PlainText string       `json:"plain_text,omitempty"`
}

type fileInfoDoc struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	Extension  string `json:"extension,omitempty"`
	Exists     bool   `json:"exists"`
	Size       *int64 `json:"size,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`
	Compressed bool   `json:"compressed"`
}

type filesDoc struct {
	Format     content.Kind  `json:"format"`
	Files      []fileInfoDoc `json:"files"`
	HasRawData bool          `json:"has_raw_data"`
}

type chunkDoc struct {
	Index       int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	Data        []byte `json:"data"`
	Complete    bool   `json:"complete"`
	Compressed  bool   `json:"compressed"`
}

type fileContentDoc struct {
	Format       content.Kind `json:"format"`
	Chunks       []chunkDoc   `json:"chunks"`
	OriginalPath string       `json:"original_path,omitempty"`
	MimeType     string       `json:"mime_type,omitempty"`
	TotalSize    int64        `json:"total_size"`
	Compressed   bool         `json:"compressed"`
}

// EncodeVariant serializes a payload into its tagged JSON form.
func EncodeVariant(v content.Variant) (json.RawMessage, error) {
	var doc any
	switch f := v.(type) {
	case content.Text:
		doc = textDoc{Format: f.Kind(), Content: f.Content}
	case content.Image:
		doc = imageDoc{Format: f.Kind(), Content: f.Content, MimeType: f.MimeType, Width: f.Width, Height: f.Height}
	case content.HTML:
		doc = markupDoc{Format: f.Kind(), Content: f.Content, PlainText: f.PlainText}
	case content.RTF:
		doc = markupDoc{Format: f.Kind(), Content: f.Content, PlainText: f.PlainText}
	case content.Files:
		files := make([]fileInfoDoc, len(f.Files))
		for i, fi := range f.Files {
			files[i] = fileInfoDoc(fi)
		}
		doc = filesDoc{Format: f.Kind(), Files: files, HasRawData: f.HasRawData}
	case content.FileContent:
		chunks := make([]chunkDoc, len(f.Chunks))
		for i, c := range f.Chunks {
			chunks[i] = chunkDoc(c)
		}
		doc = fileContentDoc{
			Format:       f.Kind(),
			Chunks:       chunks,
			OriginalPath: f.OriginalPath,
			MimeType:     f.MimeType,
			TotalSize:    f.TotalSize,
			Compressed:   f.Compressed,
		}
	default:
		return nil, fmt.Errorf("unsupported payload type %T", v)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", v.Kind(), err)
	}
	return data, nil
}

// DecodeVariant parses a tagged payload produced by EncodeVariant.
func DecodeVariant(data []byte) (content.Variant, error) {
	var tag struct {
		Format string `json:"format"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("failed to read payload format: %w", err)
	}
	kind, ok := content.ParseKind(tag.Format)
	if !ok {
		return nil, fmt.Errorf("unknown payload format %q", tag.Format)
	}

	switch kind {
	case content.KindText:
		var d textDoc
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", kind, err)
		}
		return content.Text{Content: d.Content}, nil

	case content.KindImage:
		var d imageDoc
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", kind, err)
		}
		return content.Image{Content: d.Content, MimeType: d.MimeType, Width: d.Width, Height: d.Height}, nil

	case content.KindHTML, content.KindRTF:
		var d markupDoc
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", kind, err)
		}
		if kind == content.KindHTML {
			return content.HTML{Content: d.Content, PlainText: d.PlainText}, nil
		}
		return content.RTF{Content: d.Content, PlainText: d.PlainText}, nil

	case content.KindFiles:
		var d filesDoc
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", kind, err)
		}
		files := make([]content.FileInfo, len(d.Files))
		for i, fi := range d.Files {
			files[i] = content.FileInfo(fi)
		}
		return content.Files{Files: files, HasRawData: d.HasRawData}, nil

	case content.KindFileContent:
		var d fileContentDoc
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", kind, err)
		}
		chunks := make([]content.Chunk, len(d.Chunks))
		for i, c := range d.Chunks {
			chunks[i] = content.Chunk(c)
		}
		return content.FileContent{
			Chunks:       chunks,
			OriginalPath: d.OriginalPath,
			MimeType:     d.MimeType,
			TotalSize:    d.TotalSize,
			Compressed:   d.Compressed,
		}, nil
	}

	return nil, fmt.Errorf("unhandled payload format %q", kind)
}
