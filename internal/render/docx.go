package render

import (
	"bytes"
	"fmt"

	"github.com/lukasjarosch/go-docx"

	"github.com/joseph-ayodele/patient-docs/internal/entity"
)

// renderDOCX replaces {{key}} or {key} placeholders in the document body, headers and
// footers. Placeholders split across runs by Word are handled by go-docx.
func renderDOCX(tmpl []byte, rec entity.PatientRecord) ([]byte, error) {
	tmpl, err := normalizeDOCX(tmpl)
	if err != nil {
		return nil, err
	}
	doc, err := docx.OpenBytes(tmpl)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}

	pm := docx.PlaceholderMap{}
	for k, v := range rec.Placeholders() {
		pm[k] = v
	}
	if err := doc.ReplaceAll(pm); err != nil {
		return nil, fmt.Errorf("replace placeholders: %w", err)
	}

	var buf bytes.Buffer
	if err := doc.Write(&buf); err != nil {
		return nil, fmt.Errorf("docx write: %w", err)
	}
	return buf.Bytes(), nil
}
