package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/patient-docs/internal/entity"
)

func TestDecodeObject(t *testing.T) {
	m, err := DecodeObject([]byte(`{"name":"a","age":40}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("40"), m["age"])

	_, err = DecodeObject([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrNotObject)

	_, err = DecodeObject([]byte(`null`))
	assert.ErrorIs(t, err, ErrNotObject)

	_, err = DecodeObject([]byte(`{"name":"a"} {"name":"b"}`))
	assert.Error(t, err)

	_, err = DecodeObject([]byte(`{"name":"a",`))
	assert.Error(t, err)
}

func TestNormalizeFields_SubsetDefaultsToEmpty(t *testing.T) {
	m, err := DecodeObject([]byte(`{"name":"Dana","symptoms":"cough"}`))
	require.NoError(t, err)

	rec, notes := NormalizeFields(m, nil)
	assert.Equal(t, entity.PatientRecord{Name: "Dana", Symptoms: "cough"}, rec)
	assert.Contains(t, notes, "age(absent)")
	assert.Contains(t, notes, "kupat_cholim(absent)")
	assert.Contains(t, notes, "ai_recommondation(absent)")
}

func TestNormalizeFields_Coercion(t *testing.T) {
	m, err := DecodeObject([]byte(`{
		"name": null,
		"age": 40,
		"kupat_cholim": true,
		"symptoms": ["fever", "cough", null],
		"ai_recommondation": {"rest": 2},
		"extra": "ignored"
	}`))
	require.NoError(t, err)

	rec, notes := NormalizeFields(m, nil)
	assert.Equal(t, "", rec.Name)
	assert.Equal(t, "40", rec.Age)
	assert.Equal(t, "true", rec.Insurer)
	assert.Equal(t, "fever, cough", rec.Symptoms)
	assert.Equal(t, `{"rest":2}`, rec.Recommendation)
	assert.Contains(t, notes, "name(null)")
	assert.Contains(t, notes, "age(coerced)")
	assert.Contains(t, notes, "extra(unknown)")
}

func TestFormatNumber(t *testing.T) {
	cases := map[string]string{
		"40":    "40",
		"40.0":  "40",
		"40.5":  "40.5",
		"1e2":   "100",
		"-3":    "-3",
		"0.125": "0.125",
		"+7":    "7",

		"12345678901234567890":  "12345678901234567890",
		"-98765432109876543210": "-98765432109876543210",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatNumber(json.Number(in)), in)
	}
}

func TestCoerceText_FloatFromStructpb(t *testing.T) {
	s, changed := CoerceText(float64(40))
	assert.True(t, changed)
	assert.Equal(t, "40", s)

	s, changed = CoerceText("40")
	assert.False(t, changed)
	assert.Equal(t, "40", s)
}
