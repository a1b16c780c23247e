// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package mediatype maps file extensions to the content types the
// server knows how to label.
package mediatype

// ContentType is a MIME type split into its type and subtype.
type ContentType struct {
	Type    string
	Subtype string
}

// String returns the "<type>/<subtype>" form.
func (ct ContentType) String() string {
	return ct.Type + "/" + ct.Subtype
}

var (
	TextPlain = ContentType{Type: "text", Subtype: "plain"}
	TextHTML  = ContentType{Type: "text", Subtype: "html"}
	TextCSS   = ContentType{Type: "text", Subtype: "css"}
	ImagePNG  = ContentType{Type: "image", Subtype: "png"}
	ImageSVG  = ContentType{Type: "image", Subtype: "svg+xml"}
)

// DefaultExtension is used when a request path carries no extension.
const DefaultExtension = "txt"

var byExtension = map[string]ContentType{
	"txt":  TextPlain,
	"html": TextHTML,
	"css":  TextCSS,
	"png":  ImagePNG,
	"svg":  ImageSVG,
}

// Lookup returns the ContentType registered for ext. Matching is exact
// and case-sensitive, so "HTML" is not the same as "html".
func Lookup(ext string) (ContentType, bool) {
	ct, ok := byExtension[ext]
	return ct, ok
}
