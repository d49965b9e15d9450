package scanning

import (
	"strings"
)

// transcribePrompt is the shared prompt used by all LLM providers for reading receipts
const transcribePrompt = `You are reading a photographed or scanned receipt or invoice. Transcribe all of the text you can see, top to bottom, exactly as printed.

Important:
- Include the store/business name, addresses, item lines, totals and dates
- Keep one printed line per output line
- Do not summarize, translate, or correct spelling
- Do not add any commentary before or after the text
- Do not use markdown code blocks`

// cleanTranscript strips the wrapping that chat models add around a transcript
func cleanTranscript(text string) string {
	text = strings.TrimSpace(text)

	// Remove opening markdown code blocks, with or without a language tag
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.Index(text, "\n"); nl >= 0 && !strings.Contains(text[:nl], " ") {
			text = text[nl+1:]
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	return strings.TrimSpace(text)
}
