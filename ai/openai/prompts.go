package openai

import (
	"fmt"
	"strings"
)

// RowColumns is the column order of the extracted certificate row.
var RowColumns = []string{
	"Professor Name",
	"Certificate Issue Date",
	"Certificate Number",
	"Course/Exam/Purpose",
	"Grade/Marks",
	"Institution/Issuing Authority",
	"Registration/Roll No",
	"Address",
	"Other Details",
}

// buildSystemPrompt assembles the extraction instructions for a row of
// the given arity. The default arity matches RowColumns.
func buildSystemPrompt(fieldCount int) string {
	columns := RowColumns
	if fieldCount != len(columns) {
		columns = make([]string, fieldCount)
		for i := range columns {
			columns[i] = fmt.Sprintf("Field %d", i+1)
		}
	}

	var sb strings.Builder
	sb.WriteString("You are a highly accurate certificate data extractor.\n\n")
	sb.WriteString("Read the certificate text and extract the required details into a single structured row matching this exact column order:\n\n")
	for _, col := range columns {
		sb.WriteString("- ")
		sb.WriteString(col)
		sb.WriteString("\n")
	}
	sb.WriteString("\nOUTPUT FORMAT (strict):\n")
	fmt.Fprintf(&sb, "Return ONLY a JSON array of exactly %d strings, one per column, in order.\n", fieldCount)
	sb.WriteString("- Use an empty string \"\" for any missing field.\n")
	sb.WriteString("- Dates must be in YYYY-MM-DD format.\n")
	sb.WriteString("- The last column collects leftover information: signatures, comments, reference numbers, seals, notes.\n")
	sb.WriteString("- Do NOT add explanations, labels, or text outside the array.\n")
	return sb.String()
}
