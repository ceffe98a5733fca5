// Package querycheck validates and sanitises user prompts before they reach
// the model.
package querycheck

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/i474232898/climategpt-servers/internal/llm"
)

// Rejection explains why a prompt was refused. The message is safe to show
// the user.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return r.Reason }

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i);\s*--`),
	regexp.MustCompile(`(?is);\s*/\*.*?\*/`),
	regexp.MustCompile(`(?i)UNION\s+SELECT`),
	regexp.MustCompile(`(?i)INSERT\s+INTO`),
	regexp.MustCompile(`(?i)UPDATE\s+.*?SET`),
	regexp.MustCompile(`(?i)DELETE\s+FROM`),
	regexp.MustCompile(`(?i)DROP\s+TABLE`),
	regexp.MustCompile(`(?i)ALTER\s+TABLE`),
	regexp.MustCompile(`(?i)EXEC\s*\(`),
	regexp.MustCompile(`(?i)EXECUTE\s*\(`),
}

var (
	lineComment  = regexp.MustCompile(`--.*`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespace   = regexp.MustCompile(`\s+`)
	controlChars = regexp.MustCompile(`[\x00-\x1F\x7F]`)

	lookalikes = strings.NewReplacer(
		"–", "-", "—", "-",
		"‘", "'", "’", "'",
		"“", `"`, "”", `"`,
		"«", `"`, "»", `"`,
	)
)

// Clean strips SQL comments, collapses whitespace, drops control characters
// and maps quote and dash lookalikes to ASCII.
func Clean(prompt string) string {
	p := lineComment.ReplaceAllString(prompt, "")
	p = blockComment.ReplaceAllString(p, "")
	p = strings.TrimSpace(whitespace.ReplaceAllString(p, " "))
	p = controlChars.ReplaceAllString(p, "")
	return lookalikes.Replace(p)
}

// Checker applies length limits and injection patterns.
type Checker struct {
	MinLength int
	MaxLength int
}

// Check returns the cleaned prompt or a *Rejection.
func (c Checker) Check(prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", &Rejection{Reason: "Empty query. Please provide a specific question about climate data."}
	}

	cleaned := Clean(prompt)
	if len(cleaned) < c.MinLength {
		return "", &Rejection{Reason: fmt.Sprintf(
			"Query is too short. Please provide more details about what climate data you're looking for (at least %d characters).", c.MinLength)}
	}

	for _, re := range injectionPatterns {
		if re.MatchString(cleaned) {
			return "", &Rejection{Reason: "Invalid query pattern detected. Please rephrase your question in natural language."}
		}
	}

	if c.MaxLength > 0 && len(cleaned) > c.MaxLength {
		return "", &Rejection{Reason: fmt.Sprintf(
			"Query is too long. Please make your question more concise (under %d characters).", c.MaxLength)}
	}
	return cleaned, nil
}

// CheckRelevance asks the model whether the prompt concerns climate data.
// Any failure to get a verdict lets the prompt through.
func CheckRelevance(ctx context.Context, model llm.Completer, query string) error {
	prompt := fmt.Sprintf(`Evaluate if this query is related to climate data or climate change:

Query: %q

Respond with a JSON object with these fields:
- "is_valid": true/false indicating if the query is relevant to climate data
- "reason": brief explanation of your decision
- "suggestion": an alternative query if the original one is not valid

Only respond with valid JSON.`, query)

	out, err := model.Complete(ctx, []llm.Message{
		llm.System("You validate climate data queries for relevance and appropriateness."),
		llm.User(prompt),
	}, llm.Options{Temperature: 0.3, MaxTokens: 500, JSON: true})
	if err != nil || !gjson.Valid(out) {
		return nil
	}

	verdict := gjson.Get(out, "is_valid")
	if !verdict.Exists() || verdict.Bool() {
		return nil
	}

	msg := "This query doesn't appear to be related to climate data. " + gjson.Get(out, "reason").String()
	if s := gjson.Get(out, "suggestion").String(); s != "" {
		msg += fmt.Sprintf(" Try instead: %q", s)
	}
	return &Rejection{Reason: msg}
}
