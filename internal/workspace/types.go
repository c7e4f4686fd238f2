// Package workspace provides a client for the target workspace's page and
// database API.
package workspace

import "time"

// Object kinds returned by the workspace API.
const (
	ObjectPage     = "page"
	ObjectDatabase = "database"
	ObjectBlock    = "block"
)

// Block types that can carry an inline binary asset.
const (
	BlockImage = "image"
	BlockAudio = "audio"
	BlockPDF   = "pdf"
	BlockVideo = "video"
	BlockFile  = "file"
)

// FileRef points at an icon, cover, or inline block asset. Type "file" means
// the asset is hosted by the workspace itself; "external" is a plain URL.
type FileRef struct {
	Type     string   `json:"type,omitempty"`
	File     *FileURL `json:"file,omitempty"`
	External *FileURL `json:"external,omitempty"`
}

// FileURL carries the address of a binary asset.
type FileURL struct {
	URL string `json:"url"`
}

// HostedURL returns the URL of a workspace-hosted asset, or "" when the ref
// is absent or external.
func (f *FileRef) HostedURL() string {
	if f == nil || f.Type != "file" || f.File == nil {
		return ""
	}
	return f.File.URL
}

// ExternalFile builds an external file reference.
func ExternalFile(url string) *FileRef {
	return &FileRef{Type: "external", External: &FileURL{URL: url}}
}

// Link is an inline hyperlink inside rich text.
type Link struct {
	URL string `json:"url"`
}

// TextContent is the editable part of a rich text span.
type TextContent struct {
	Content string `json:"content"`
	Link    *Link  `json:"link,omitempty"`
}

// RichText is one span of formatted text.
type RichText struct {
	Text      TextContent `json:"text"`
	PlainText string      `json:"plain_text,omitempty"`
}

// DateValue is a date-typed property payload.
type DateValue struct {
	Start string `json:"start"`
}

// StatusValue is a status-typed property payload.
type StatusValue struct {
	Name string `json:"name"`
}

// SelectOption is one entry of a multi-select property.
type SelectOption struct {
	Name string `json:"name"`
}

// PropertyValue is the typed value of one record field. Exactly one of the
// typed members is set, mirroring the wire shape.
type PropertyValue struct {
	ID          string         `json:"id,omitempty"`
	Title       []RichText     `json:"title,omitempty"`
	RichText    []RichText     `json:"rich_text,omitempty"`
	URL         string         `json:"url,omitempty"`
	Number      *float64       `json:"number,omitempty"`
	Date        *DateValue     `json:"date,omitempty"`
	Status      *StatusValue   `json:"status,omitempty"`
	MultiSelect []SelectOption `json:"multi_select,omitempty"`
}

// PlainText extracts the textual content of a title or rich text value.
func (p PropertyValue) PlainText() string {
	spans := p.Title
	if len(spans) == 0 {
		spans = p.RichText
	}
	for _, span := range spans {
		if span.Text.Content != "" {
			return span.Text.Content
		}
		if span.PlainText != "" {
			return span.PlainText
		}
	}
	return ""
}

// Properties maps field identifiers to their typed values.
type Properties map[string]PropertyValue

// Find returns the property whose field identifier matches, looking at both
// the map key and the embedded property id.
func (p Properties) Find(fieldID string) (PropertyValue, bool) {
	if v, ok := p[fieldID]; ok {
		return v, true
	}
	for _, v := range p {
		if v.ID == fieldID {
			return v, true
		}
	}
	return PropertyValue{}, false
}

// Item is one addressable record in the workspace: a page, a database, or a
// content block. It is owned by the workspace and never cached beyond one
// pass.
type Item struct {
	ID          string     `json:"id"`
	Object      string     `json:"object"`
	Type        string     `json:"type,omitempty"`
	Properties  Properties `json:"properties,omitempty"`
	Icon        *FileRef   `json:"icon,omitempty"`
	Cover       *FileRef   `json:"cover,omitempty"`
	HasChildren bool       `json:"has_children,omitempty"`

	// Inline block assets, keyed by Type.
	Image *FileRef `json:"image,omitempty"`
	Audio *FileRef `json:"audio,omitempty"`
	PDF   *FileRef `json:"pdf,omitempty"`
	Video *FileRef `json:"video,omitempty"`
	File  *FileRef `json:"file,omitempty"`
}

// BlockAsset returns the inline asset ref matching the block's type, or nil.
func (i *Item) BlockAsset() *FileRef {
	switch i.Type {
	case BlockImage:
		return i.Image
	case BlockAudio:
		return i.Audio
	case BlockPDF:
		return i.PDF
	case BlockVideo:
		return i.Video
	case BlockFile:
		return i.File
	}
	return nil
}

// Page is the writable part of a record: field values plus optional icon
// and cover.
type Page struct {
	Icon       *FileRef   `json:"icon,omitempty"`
	Cover      *FileRef   `json:"cover,omitempty"`
	Properties Properties `json:"properties"`
}

// Property constructors for the payload shapes the API accepts.

// TitleProperty builds a title value.
func TitleProperty(content string) PropertyValue {
	return PropertyValue{Title: []RichText{{Text: TextContent{Content: content}}}}
}

// RichTextProperty builds a rich text value with an optional link.
func RichTextProperty(content, url string) PropertyValue {
	span := RichText{Text: TextContent{Content: content}}
	if url != "" {
		span.Text.Link = &Link{URL: url}
	}
	return PropertyValue{RichText: []RichText{span}}
}

// URLProperty builds a url value.
func URLProperty(url string) PropertyValue {
	return PropertyValue{URL: url}
}

// NumberProperty builds a number value.
func NumberProperty(n float64) PropertyValue {
	return PropertyValue{Number: &n}
}

// DateProperty builds a date value.
func DateProperty(t time.Time) PropertyValue {
	return PropertyValue{Date: &DateValue{Start: t.Format("2006-01-02")}}
}

// TimestampProperty builds a date value carrying the full timestamp.
func TimestampProperty(t time.Time) PropertyValue {
	return PropertyValue{Date: &DateValue{Start: t.Format(time.RFC3339)}}
}

// StatusProperty builds a status value.
func StatusProperty(name string) PropertyValue {
	return PropertyValue{Status: &StatusValue{Name: name}}
}

// MultiSelectProperty builds a multi-select value.
func MultiSelectProperty(names []string) PropertyValue {
	options := make([]SelectOption, 0, len(names))
	for _, name := range names {
		options = append(options, SelectOption{Name: name})
	}
	return PropertyValue{MultiSelect: options}
}
