package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairJSONStripsFences(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, RepairJSON("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, RepairJSON("```\n{\"a\": 1}\n```"))
}

func TestRepairJSONExtractsFromProse(t *testing.T) {
	in := `Here is the JSON you asked for:
{"summary": "ok", "sections": []}
Let me know if you need changes.`
	assert.Equal(t, `{"summary": "ok", "sections": []}`, RepairJSON(in))
}

func TestRepairJSONRemovesTrailingCommas(t *testing.T) {
	assert.Equal(t, `{"a": [1, 2]}`, RepairJSON(`{"a": [1, 2,],}`))
}

func TestRepairJSONIgnoresBracesInStrings(t *testing.T) {
	in := `{"text": "curly } inside"} trailing`
	assert.Equal(t, `{"text": "curly } inside"}`, RepairJSON(in))
}

func TestRepairJSONLeavesHopelessInputAlone(t *testing.T) {
	assert.Equal(t, "no json here", RepairJSON("no json here"))
}

func TestCheckSyntaxReportsLineAndColumn(t *testing.T) {
	doc := "{\n  \"a\": 1,\n  \"b\": }\n}"
	err := CheckSyntax(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
	assert.Contains(t, err.Error(), "column")
}

func TestCheckSyntaxAcceptsValidDocument(t *testing.T) {
	assert.NoError(t, CheckSyntax(`{"a": [1, 2, 3]}`))
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, CountWords())
	assert.Equal(t, 0, CountWords(""))
	assert.Equal(t, 5, CountWords("one two three", "four five"))
}
