package llm

import (
	"strings"

	"github.com/joseph-ayodele/patient-docs/internal/entity"
)

// SystemInstruction is the fixed extraction instruction.
const SystemInstruction = `You are a patient information analyzer.
Analyze the user input and return a JSON object with the fields below.
Always return every field. If a field is empty, return it as an empty string rather than omitting it.

json:
name
age
kupat_cholim: the health fund, like מכבי or כללית etc
symptoms
ai_recommondation

Here is the user input:`

// ExampleInput and ExampleOutput form the one-shot demonstration that anchors the
// output format. They are not user data.
const (
	ExampleInput  = "ידידיה בן 40 חולה"
	ExampleOutput = `{
  "name": "ידידיה",
  "age": "40",
  "kupat_cholim": "",
  "symptoms": "חולה",
  "ai_recommondation": ""
}`
)

// BuildRequest assembles the fixed prompt around userText. Temperature is always zero.
func BuildRequest(userText string, jsonMode bool) CompletionRequest {
	system := SystemInstruction
	if !jsonMode {
		// Without a JSON response mode the reply format rests on the prompt alone.
		system += "\n\nReply with the JSON object only, no prose. Keys: " + strings.Join(entity.PatientFields, ", ") + "."
	}
	return CompletionRequest{
		System: system,
		Messages: []Message{
			{Role: RoleUser, Content: ExampleInput},
			{Role: RoleModel, Content: ExampleOutput},
			{Role: RoleUser, Content: userText},
		},
		Temperature: 0,
		JSONMode:    jsonMode,
	}
}
