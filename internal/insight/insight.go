// Package insight turns a query result into a short narrative, by asking the
// model or, failing that, by summarising the rows directly.
package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/climategpt-servers/internal/dataset"
	"github.com/i474232898/climategpt-servers/internal/llm"
	"github.com/i474232898/climategpt-servers/internal/sqlitedb"
	"github.com/i474232898/climategpt-servers/internal/store"
)

const (
	sampleRows = 10
	// NoResults is returned for an empty result.
	NoResults = "No results available for analysis."
)

// Generator writes insights for one dataset.
type Generator struct {
	model   llm.Completer
	profile *dataset.Profile
	cache   *store.MemoryStore[string]
	log     *zap.Logger

	Attempts   int
	RetryDelay time.Duration
}

// New builds a Generator. Insights are cached under query and SQL using the
// cache's default TTL.
func New(model llm.Completer, profile *dataset.Profile, cache *store.MemoryStore[string], log *zap.Logger) *Generator {
	return &Generator{
		model:      model,
		profile:    profile,
		cache:      cache,
		log:        log,
		Attempts:   2,
		RetryDelay: 2 * time.Second,
	}
}

// CacheKey is the insight cache key for a query and the SQL that answered it.
func CacheKey(query, sql string) string {
	return query + "_" + sql
}

// Generate returns an insight for res. It never fails: when every model
// attempt errors the dataset's fallback summary is used and not cached.
func (g *Generator) Generate(ctx context.Context, query, sql string, res *sqlitedb.Result) string {
	if res.Empty() {
		return NoResults
	}

	key := CacheKey(query, sql)
	if cached, err := g.cache.Get(key); err == nil {
		return cached
	}

	prompt, err := g.prompt(query, sql, res)
	if err != nil {
		g.log.Warn("insight prompt", zap.Error(err))
		return g.fallback(res)
	}
	messages := []llm.Message{
		llm.System(g.profile.SystemPrompt),
		llm.User(prompt),
	}

	for attempt := 1; attempt <= g.Attempts; attempt++ {
		out, err := g.model.Complete(ctx, messages, llm.Options{Temperature: 0.5})
		if err == nil && strings.TrimSpace(out) != "" {
			insight := strings.TrimSpace(out)
			g.cache.Set(key, insight)
			g.log.Info("insight generated", zap.Int("attempt", attempt))
			return insight
		}
		g.log.Warn("insight generation failed",
			zap.Int("attempt", attempt), zap.Int("max", g.Attempts), zap.Error(err))
		if attempt < g.Attempts {
			select {
			case <-ctx.Done():
				return g.fallback(res)
			case <-time.After(g.RetryDelay):
			}
		}
	}
	return g.fallback(res)
}

func (g *Generator) fallback(res *sqlitedb.Result) string {
	if g.profile.Fallback == nil {
		return fmt.Sprintf("The query returned %d rows with %d columns.", len(res.Data), len(res.Columns))
	}
	return g.profile.Fallback(res)
}

type sample struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
	Note    string   `json:"note,omitempty"`
}

func (g *Generator) prompt(query, sql string, res *sqlitedb.Result) (string, error) {
	s := sample{Columns: res.Columns, Data: res.Data}
	if len(s.Data) > sampleRows {
		s.Data = s.Data[:sampleRows]
		s.Note = fmt.Sprintf("Showing %d of %d rows", sampleRows, len(res.Data))
	}
	rows, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze these %s data results for the query: %q\n\n", g.profile.Title, query)
	fmt.Fprintf(&b, "SQL Query:\n%s\n\n", sql)
	fmt.Fprintf(&b, "Results:\n%s\n\n", rows)
	if g.profile.Schema != "" {
		fmt.Fprintf(&b, "The database has the following structure:\n%s\n\n", g.profile.Schema)
	}
	b.WriteString("Provide a clear, factual insight that explains:\n")
	b.WriteString(g.profile.InsightFocus)
	b.WriteString("\n\nFocus on being concise, informative, and accurate. Limit your response to 3 paragraphs maximum.\n")
	return b.String(), nil
}

// WithChart appends a sentence pointing the reader at the attached chart.
// Blank insights are returned unchanged.
func WithChart(insight, chart, title string) string {
	if strings.TrimSpace(insight) == "" {
		return insight
	}
	return fmt.Sprintf("%s\n\nThe %s titled '%s' provides a visual representation of these findings.", insight, chart, title)
}
