package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sanitize(t *testing.T, in string) map[string]any {
	t.Helper()
	out, _, err := NormalizeAndSanitizeJSON([]byte(in), nil)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	return m
}

func TestSanitizeRenamesSynonymKeys(t *testing.T) {
	m := sanitize(t, `{
		"doctor": {"name": "Dr. Tran"},
		"hospital": {"name": "City Hospital"},
		"prescription_type": "PRINTED",
		"medicines": [{"name": "Amoxicillin"}]
	}`)

	assert.Contains(t, m, "prescriber")
	assert.Contains(t, m, "facility")
	assert.NotContains(t, m, "doctor")
	assert.NotContains(t, m, "hospital")
	assert.Equal(t, "printed", m["document_class"])

	meds, ok := m["medications"].([]any)
	require.True(t, ok)
	assert.Len(t, meds, 1)
}

func TestSanitizeRenameDoesNotOverwriteExistingKey(t *testing.T) {
	m := sanitize(t, `{
		"prescriber": {"name": "Dr. Keep"},
		"doctor": {"name": "Dr. Drop"},
		"medications": []
	}`)

	p, ok := m["prescriber"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Dr. Keep", p["name"])
}

func TestSanitizeCoercesPartyAttributesToStrings(t *testing.T) {
	m := sanitize(t, `{
		"patient": {"name": " Nguyen Van A ", "age": 45, "insured": true, "phone": null},
		"medications": []
	}`)

	p, ok := m["patient"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Nguyen Van A", p["name"])
	assert.Equal(t, "45", p["age"])
	assert.Equal(t, "true", p["insured"])
	assert.NotContains(t, p, "phone")
}

func TestSanitizeEnsuresMedicationsArray(t *testing.T) {
	m := sanitize(t, `{"diagnosis": "flu"}`)
	meds, ok := m["medications"].([]any)
	require.True(t, ok)
	assert.Empty(t, meds)
}

func TestSanitizeMedicationFields(t *testing.T) {
	m := sanitize(t, `{
		"medications": [
			{"name": "Amoxicillin", "quantity": 30, "is_handwritten": "yes", "dosage": null},
			"not an object"
		]
	}`)

	meds, ok := m["medications"].([]any)
	require.True(t, ok)
	require.Len(t, meds, 1)

	item, ok := meds[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "30", item["quantity"])
	assert.NotContains(t, item, "is_handwritten", "non-boolean is_handwritten must be dropped, not coerced")
	assert.NotContains(t, item, "dosage")
}

func TestSanitizeKeepsBooleanIsHandwritten(t *testing.T) {
	m := sanitize(t, `{"medications": [{"name": "Insulin", "is_handwritten": true}]}`)
	meds := m["medications"].([]any)
	item := meds[0].(map[string]any)
	assert.Equal(t, true, item["is_handwritten"])
}

func TestSanitizeRemovesUnknownAndNullTopLevelKeys(t *testing.T) {
	m := sanitize(t, `{
		"diagnosis": "",
		"notes": null,
		"chain_of_thought": "hmm",
		"issue_date": "2024-03-15",
		"medications": []
	}`)

	assert.NotContains(t, m, "diagnosis")
	assert.NotContains(t, m, "notes")
	assert.NotContains(t, m, "chain_of_thought")
	assert.Equal(t, "2024-03-15", m["issue_date"])
}

func TestSanitizeRejectsStructurallyBrokenJSON(t *testing.T) {
	_, _, err := NormalizeAndSanitizeJSON([]byte(`{"medications": [`), nil)
	assert.Error(t, err)
}

func TestSanitizedOutputPassesSchemaValidation(t *testing.T) {
	raw := []byte(`{
		"doctor": {"name": "Dr. Tran", "age": 50},
		"prescription_type": "Mixed",
		"confidence_score": 0.8,
		"reasoning": "because",
		"medicines": [{"name": "Amoxicillin", "quantity": 30}]
	}`)
	schema := BuildPrescriptionJSONSchema()

	require.Error(t, ValidateJSONAgainstSchema(schema, raw), "raw synonym-laden output must fail strict validation")

	cleaned, dropped, err := NormalizeAndSanitizeJSON(raw, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, dropped)
	assert.NoError(t, ValidateJSONAgainstSchema(schema, cleaned))
}
