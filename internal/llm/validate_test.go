package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/patient-docs/internal/entity"
)

func TestValidatePatientRecord(t *testing.T) {
	assert.NoError(t, ValidatePatientRecord(entity.PatientRecord{}))
	assert.NoError(t, ValidatePatientRecord(entity.PatientRecord{Name: "Yedidya", Age: "40"}))
}

func TestValidateJSONAgainstSchema(t *testing.T) {
	schema := BuildPatientJSONSchema()

	ok := `{"name":"a","age":"1","kupat_cholim":"","symptoms":"","ai_recommondation":""}`
	assert.NoError(t, ValidateJSONAgainstSchema(schema, []byte(ok)))

	missing := `{"name":"a"}`
	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(missing)))

	wrongType := `{"name":"a","age":1,"kupat_cholim":"","symptoms":"","ai_recommondation":""}`
	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(wrongType)))

	extra := `{"name":"a","age":"1","kupat_cholim":"","symptoms":"","ai_recommondation":"","x":""}`
	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(extra)))
}
