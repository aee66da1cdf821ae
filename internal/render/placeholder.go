package render

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/patient-docs/internal/entity"
)

// doubleBracePattern matches {{key}} and {{ key }} for the record keys.
var doubleBracePattern = func() *regexp.Regexp {
	keys := make([]string, len(entity.PatientFields))
	for i, k := range entity.PatientFields {
		keys[i] = regexp.QuoteMeta(k)
	}
	return regexp.MustCompile(`\{\{\s*(` + strings.Join(keys, "|") + `)\s*\}\}`)
}()

// wordText matches one <w:t> element; group 2 is its text.
var wordText = regexp.MustCompile(`(<w:t(?:\s[^>]*)?>)([^<]*)(</w:t>)`)

// collapseDoubleBraces rewrites {{ key }} to {key} in a plain string.
func collapseDoubleBraces(s string) string {
	return doubleBracePattern.ReplaceAllString(s, "{${1}}")
}

// collapseWordXML rewrites {{ key }} to {key} across the <w:t> runs of a WordprocessingML
// part. Word often splits a placeholder over several runs, so matching is done on the
// joined run text and only the surplus characters are removed from their runs.
func collapseWordXML(part []byte) ([]byte, bool) {
	locs := wordText.FindAllSubmatchIndex(part, -1)
	if len(locs) == 0 {
		return part, false
	}

	var text []byte
	var owner []int
	for _, l := range locs {
		for i := l[4]; i < l[5]; i++ {
			text = append(text, part[i])
			owner = append(owner, i)
		}
	}

	matches := doubleBracePattern.FindAllSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return part, false
	}

	drop := make(map[int]struct{})
	for _, m := range matches {
		// keep the outer "{" and the last "}", drop the inner brace pair and padding
		for i := m[0] + 1; i < m[2]; i++ {
			drop[owner[i]] = struct{}{}
		}
		for i := m[3]; i < m[1]-1; i++ {
			drop[owner[i]] = struct{}{}
		}
	}

	out := make([]byte, 0, len(part)-len(drop))
	for i, b := range part {
		if _, ok := drop[i]; !ok {
			out = append(out, b)
		}
	}
	return out, true
}

func isWordTextPart(name string) bool {
	if name == "word/document.xml" {
		return true
	}
	if !strings.HasPrefix(name, "word/") || !strings.HasSuffix(name, ".xml") {
		return false
	}
	base := strings.TrimPrefix(name, "word/")
	return strings.HasPrefix(base, "header") || strings.HasPrefix(base, "footer")
}

// normalizeDOCX returns tmpl with double-brace placeholders collapsed in the body,
// headers and footers. The input is returned unchanged when none are present.
func normalizeDOCX(tmpl []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(tmpl), int64(len(tmpl)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}

	parts := make([][]byte, len(zr.File))
	changed := false
	for i, f := range zr.File {
		data, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		if isWordTextPart(f.Name) {
			var ok bool
			data, ok = collapseWordXML(data)
			changed = changed || ok
		}
		parts[i] = data
	}
	if !changed {
		return tmpl, nil
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, f := range zr.File {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: f.Method, Modified: f.Modified})
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
		if _, err := w.Write(parts[i]); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close docx: %w", err)
	}
	return buf.Bytes(), nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
