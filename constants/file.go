package constants

import "strings"

// DocType is the rendered document format, derived from the template extension.
type DocType string

const (
	DOCX DocType = "DOCX"
	XLSX DocType = "XLSX"
)

const (
	// FilenameSuffix is appended to the sanitized patient name.
	FilenameSuffix = "_document"
	// FilenamePlaceholder replaces an empty patient name.
	FilenamePlaceholder = "patient"
)

var docExtensions = map[string]DocType{
	"docx": DOCX,
	"xlsx": XLSX,
}

var docMIMETypes = map[DocType]string{
	DOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	XLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToDocType returns the document type for an extension, or "" if unsupported.
func MapExtToDocType(ext string) DocType {
	return docExtensions[NormalizeExt(ext)]
}

// Ext returns the file extension (without dot) for the document type.
func (d DocType) Ext() string {
	return strings.ToLower(string(d))
}

// MIMEType returns the download content type for the document type.
func (d DocType) MIMEType() string {
	if mt, ok := docMIMETypes[d]; ok {
		return mt
	}
	return "application/octet-stream"
}
