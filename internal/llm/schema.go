package llm

import "github.com/joseph-ayodele/patient-docs/internal/entity"

// BuildPatientJSONSchema returns the JSON-Schema (draft 2020-12 subset) of a normalized
// patient record: exactly the five keys, all strings.
func BuildPatientJSONSchema() map[string]any {
	props := make(map[string]any, len(entity.PatientFields))
	for _, k := range entity.PatientFields {
		props[k] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             entity.PatientFields,
	}
}
