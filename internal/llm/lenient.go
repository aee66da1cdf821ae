package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/joseph-ayodele/patient-docs/internal/entity"
)

// ErrNotObject is returned when the reply parses as JSON but is not an object.
var ErrNotObject = errors.New("json value is not an object")

// DecodeObject parses text as exactly one JSON object. Numbers are kept as json.Number
// so their original digits survive coercion to text.
func DecodeObject(text []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after the JSON object")
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w (got %s)", ErrNotObject, jsonKind(v))
	}
	return m, nil
}

// NormalizeFields turns a decoded model object into a complete PatientRecord.
// - absent / null -> ""
// - numbers (age included) -> base-10 text, whole numbers without fraction
// - anything else coerced to text
// - unknown keys are ignored (reported in the returned slice)
func NormalizeFields(m map[string]any, logger *slog.Logger) (entity.PatientRecord, []string) {
	if logger == nil {
		logger = slog.Default()
	}

	known := make(map[string]struct{}, len(entity.PatientFields))
	for _, k := range entity.PatientFields {
		known[k] = struct{}{}
	}

	var notes []string
	field := func(k string) string {
		v, ok := m[k]
		switch {
		case !ok:
			notes = append(notes, k+"(absent)")
			return ""
		case v == nil:
			notes = append(notes, k+"(null)")
			return ""
		}
		s, changed := CoerceText(v)
		if changed {
			notes = append(notes, k+"(coerced)")
		}
		return s
	}

	rec := entity.PatientRecord{
		Name:           field(entity.FieldName),
		Age:            field(entity.FieldAge),
		Insurer:        field(entity.FieldInsurer),
		Symptoms:       field(entity.FieldSymptoms),
		Recommendation: field(entity.FieldRecommendation),
	}

	for k := range m {
		if _, ok := known[k]; !ok {
			notes = append(notes, k+"(unknown)")
		}
	}
	if len(notes) > 0 {
		logger.Debug("llm.extract.normalize", "notes", notes)
	}
	return rec, notes
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
