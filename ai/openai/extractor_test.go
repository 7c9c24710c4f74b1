package openai

import (
	"strings"
	"testing"

	"github.com/poiesic/docindex/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFieldRow_CleanArray(t *testing.T) {
	fields, err := parseFieldRow(
		`["Dr. Rao", "2024-03-01", "CERT-001", "Workshop", "A", "IIT", "R-42", "Chennai", ""]`, 9)
	require.NoError(t, err)
	require.Len(t, fields, 9)
	assert.Equal(t, "Dr. Rao", fields[0])
	assert.Equal(t, "CERT-001", fields[2])
}

func TestParseFieldRow_FencedResponse(t *testing.T) {
	response := "```json\n[\"a\", \"b\", \"c\"]\n```"
	fields, err := parseFieldRow(response, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, fields)
}

func TestParseFieldRow_ProseAroundArray(t *testing.T) {
	response := `Here is the extracted row: ["a", "b", "c"] as requested.`
	fields, err := parseFieldRow(response, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, fields)
}

func TestParseFieldRow_PythonStyleList(t *testing.T) {
	fields, err := parseFieldRow(`['a', 'b', 'c']`, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, fields)
}

func TestParseFieldRow_TrailingComma(t *testing.T) {
	fields, err := parseFieldRow(`["a", "b", "c",]`, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, fields)
}

func TestParseFieldRow_PadsAndTruncates(t *testing.T) {
	fields, err := parseFieldRow(`["a", "b"]`, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "", ""}, fields)

	fields, err = parseFieldRow(`["a", "b", "c"]`, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, fields)
}

func TestParseFieldRow_Malformed(t *testing.T) {
	_, err := parseFieldRow("I could not find any certificate data.", 9)
	assert.ErrorIs(t, err, ai.ErrMalformedResponse)
}

func TestRepairJSON_PreservesApostrophes(t *testing.T) {
	in := `["O'Brien", "b"]`
	assert.Equal(t, in, repairJSON(in))
}

func TestBuildSystemPrompt(t *testing.T) {
	prompt := buildSystemPrompt(9)
	for _, col := range RowColumns {
		assert.Contains(t, prompt, col)
	}
	assert.Contains(t, prompt, "exactly 9")

	custom := buildSystemPrompt(4)
	assert.Contains(t, custom, "Field 4")
	assert.False(t, strings.Contains(custom, "Professor Name"))
}
