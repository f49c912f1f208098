package translator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// buildPrompt renders the instruction block for one chunk. The input is
// embedded as a JSON array so fragment boundaries survive the round trip.
func buildPrompt(texts []string, targetLanguage string) string {
	encoded, _ := json.Marshal(texts)

	var prompt strings.Builder
	prompt.WriteString("You are a professional translator for market-research and business web content.\n")
	prompt.WriteString(fmt.Sprintf("Translate every string in the JSON array below into %s.\n\n", targetLanguage))

	prompt.WriteString("Rules:\n")
	prompt.WriteString("1. Preserve meaning, tone and terminology; these are fragments of a larger document.\n")
	prompt.WriteString("2. Do not translate product names, company names, or units.\n")
	prompt.WriteString("3. Keep numbers, punctuation and inline placeholders exactly as they appear.\n")
	prompt.WriteString("4. Never merge, split, or reorder fragments.\n\n")

	prompt.WriteString("Output format:\n")
	prompt.WriteString("Return ONLY a JSON array of strings, in the same order as the input.\n")
	prompt.WriteString(fmt.Sprintf("The output array must contain exactly %d elements.\n", len(texts)))
	prompt.WriteString("Do not include any explanations, notes, or additional text.\n\n")

	prompt.WriteString("Input:\n")
	prompt.Write(encoded)
	return prompt.String()
}
