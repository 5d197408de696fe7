package llm

import (
	"strings"
	"unicode/utf8"
)

const systemPromptTemplate = `You are the virtual assistant on the website of %AGENCY%, a recruitment agency.
Answer the visitor using only the information in the CONTEXT below.
If the answer is not in the context, say politely that you do not have that information and suggest contacting the team.
Keep answers short, friendly and professional. Do not invent jobs, prices, names or contact details.

CONTEXT:
%CONTEXT%`

// SystemPrompt renders the grounding instruction for the given agency name.
func SystemPrompt(agency, grounding string) string {
	r := strings.NewReplacer("%AGENCY%", agency, "%CONTEXT%", grounding)
	return r.Replace(systemPromptTemplate)
}

// Grounding joins the content sections and the knowledge snapshot, keeping
// the result within maxBytes. Sections are kept first.
func Grounding(sections, knowledge string, maxBytes int) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(sections))
	if k := strings.TrimSpace(knowledge); k != "" {
		b.WriteString("\n\n## website\n")
		b.WriteString(k)
	}
	return TruncateUTF8(b.String(), maxBytes)
}

// TruncateUTF8 cuts s to at most maxBytes without splitting a rune.
// maxBytes <= 0 means no limit.
func TruncateUTF8(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
