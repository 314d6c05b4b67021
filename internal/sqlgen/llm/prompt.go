package llm

import (
	"fmt"
	"strings"
)

const systemPromptHeader = `You translate a classified natural-language query into a single read-only
PostgreSQL SELECT statement. Rules:
- Only reference tables and columns listed under "Allowed schema" below.
- Never inline literal values into the SQL text. Every value must be a
  %(name)s named placeholder with a matching entry in "parameters".
- Always include a LIMIT clause, 100 or fewer rows.
- Respond with exactly one JSON object: {"sql": string, "parameters": object,
  "explanation": string, "confidence": number between 0 and 1}. No prose,
  no markdown fences.`

func buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString(systemPromptHeader)
	b.WriteString("\n\nAllowed schema:\n")
	for _, table := range schemaTableOrder {
		b.WriteString(fmt.Sprintf("- %s(%s)\n", table, strings.Join(schemaSummary[table], ", ")))
	}
	b.WriteString("\nExamples:\n")
	for _, ex := range examplePairs {
		b.WriteString(fmt.Sprintf("Q: %s\nA: %s\n\n", ex.question, ex.sql))
	}
	return b.String()
}

func buildUserPrompt(query string, keywords []string) string {
	if len(keywords) == 0 {
		return "Query: " + query
	}
	return fmt.Sprintf("Query: %s\nKeywords: %s", query, strings.Join(keywords, ", "))
}
