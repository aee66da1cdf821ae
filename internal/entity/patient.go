package entity

// Wire/template keys for the patient record. The misspelled recommendation key is what
// the prompt and existing templates use, so it stays as is.
const (
	FieldName           = "name"
	FieldAge            = "age"
	FieldInsurer        = "kupat_cholim"
	FieldSymptoms       = "symptoms"
	FieldRecommendation = "ai_recommondation"
)

// PatientFields lists the record keys in prompt/template order.
var PatientFields = []string{FieldName, FieldAge, FieldInsurer, FieldSymptoms, FieldRecommendation}

// PatientRecord is the normalized shape handed from extraction to rendering.
// Every field is always a string; absent values are "".
type PatientRecord struct {
	Name           string `json:"name"`
	Age            string `json:"age"`          // numeric text permitted, not required
	Insurer        string `json:"kupat_cholim"` // health fund, e.g. "מכבי"
	Symptoms       string `json:"symptoms"`
	Recommendation string `json:"ai_recommondation"`
}

// Placeholders maps template placeholder names to field values.
func (r PatientRecord) Placeholders() map[string]string {
	return map[string]string{
		FieldName:           r.Name,
		FieldAge:            r.Age,
		FieldInsurer:        r.Insurer,
		FieldSymptoms:       r.Symptoms,
		FieldRecommendation: r.Recommendation,
	}
}
