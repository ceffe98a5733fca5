// Package classify asks the model whether a question needs the database and,
// if so, for a plan of SQL steps.
package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/i474232898/climategpt-servers/internal/dataset"
	"github.com/i474232898/climategpt-servers/internal/llm"
	"github.com/i474232898/climategpt-servers/internal/store"
)

const (
	GeneralKnowledge = "general_knowledge"
	Database         = "database"
)

var (
	// ErrMalformed is returned when the reply is not JSON even after cleanup.
	ErrMalformed = errors.New("invalid response format from ClimateGPT")
	// ErrIncomplete is returned for well-formed replies missing required fields.
	ErrIncomplete = errors.New("failed to generate SQL for this query")
)

// Step is one SQL statement of an execution plan.
type Step struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	SQL         string `json:"sql"`
}

// Plan is an ordered list of steps; the last step's result answers the query.
type Plan struct {
	Steps []Step `json:"steps"`
}

// Classification is the parsed model decision.
type Classification struct {
	QueryType string `json:"query_type"`
	Answer    string `json:"answer,omitempty"`
	Plan      *Plan  `json:"execution_plan,omitempty"`
}

// Parse cleans and decodes a model reply. Arrays use their first object.
func Parse(content string) (*Classification, error) {
	cleaned := CleanJSON(content)
	if !gjson.Valid(cleaned) {
		return nil, ErrMalformed
	}

	root := gjson.Parse(cleaned)
	if root.IsArray() {
		first := root.Get("0")
		if !first.IsObject() {
			return &Classification{
				QueryType: GeneralKnowledge,
				Answer:    "I'm sorry, but I received an unexpected response format. Could you try rephrasing your question?",
			}, nil
		}
		root = first
	}
	if !root.IsObject() {
		return nil, ErrMalformed
	}

	if err := validate(root); err != nil {
		return nil, fmt.Errorf("%w: the model returned an incomplete response: %s", err, truncate(root.Raw, 200))
	}

	c := &Classification{QueryType: root.Get("query_type").String()}
	if c.QueryType == GeneralKnowledge {
		c.Answer = root.Get("answer").String()
		return c, nil
	}

	c.Plan = &Plan{}
	for i, s := range root.Get("execution_plan.steps").Array() {
		id := s.Get("id").String()
		if id == "" {
			id = fmt.Sprintf("step%d", i+1)
		}
		c.Plan.Steps = append(c.Plan.Steps, Step{
			ID:          id,
			Description: s.Get("description").String(),
			SQL:         s.Get("sql").String(),
		})
	}
	return c, nil
}

func validate(obj gjson.Result) error {
	switch obj.Get("query_type").String() {
	case GeneralKnowledge:
		if !obj.Get("answer").Exists() {
			return ErrIncomplete
		}
	case Database:
		steps := obj.Get("execution_plan.steps")
		if !steps.IsArray() || len(steps.Array()) == 0 {
			return ErrIncomplete
		}
		for _, s := range steps.Array() {
			if !s.IsObject() || !s.Get("sql").Exists() {
				return ErrIncomplete
			}
		}
	default:
		return ErrIncomplete
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Classifier turns a user question into a Classification using the model.
type Classifier struct {
	model   llm.Completer
	profile *dataset.Profile
	cache   *store.MemoryStore[*Classification]
	ttl     time.Duration
	log     *zap.Logger

	// Attempts bounds how often a malformed reply is re-requested.
	Attempts   int
	RetryDelay time.Duration
}

// New builds a Classifier caching valid results for ttl.
func New(model llm.Completer, profile *dataset.Profile, cache *store.MemoryStore[*Classification], ttl time.Duration, log *zap.Logger) *Classifier {
	return &Classifier{
		model:      model,
		profile:    profile,
		cache:      cache,
		ttl:        ttl,
		log:        log,
		Attempts:   3,
		RetryDelay: 2 * time.Second,
	}
}

// CacheKey is the cache key for query.
func CacheKey(query string) string {
	return "classify_" + strings.ToLower(strings.TrimSpace(query))
}

// Classify returns the model's decision for query. Transport failures become
// a general knowledge answer describing the problem. Incomplete replies
// return an error wrapping ErrIncomplete.
func (c *Classifier) Classify(ctx context.Context, query string) (*Classification, error) {
	key := CacheKey(query)
	if cached, err := c.cache.Get(key); err == nil {
		c.log.Info("using cached classification", zap.String("query", truncate(query, 50)))
		return cached, nil
	}

	start := time.Now()
	messages := []llm.Message{
		llm.System(c.profile.SystemPrompt),
		llm.User(c.profile.ClassificationPrompt(query)),
	}

	for attempt := 1; ; attempt++ {
		content, err := c.model.Complete(ctx, messages, llm.Options{Temperature: 0.3, JSON: true})
		if err != nil {
			c.log.Error("classification request failed", zap.Error(err))
			return unavailable(query, err), nil
		}

		cls, err := Parse(content)
		if errors.Is(err, ErrMalformed) && attempt < c.Attempts {
			c.log.Warn("malformed classification, retrying", zap.Int("attempt", attempt))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.RetryDelay * time.Duration(attempt)):
			}
			continue
		}
		if errors.Is(err, ErrMalformed) {
			return unavailable(query, err), nil
		}
		if err != nil {
			c.log.Warn("invalid classification", zap.Error(err))
			return nil, err
		}

		c.log.Info("query classified",
			zap.String("type", cls.QueryType),
			zap.Duration("elapsed", time.Since(start)))
		c.cache.SetWithTTL(key, cls, c.ttl)
		return cls, nil
	}
}

func unavailable(query string, err error) *Classification {
	if answer, ok := dataset.DefaultResponse(query); ok {
		return &Classification{QueryType: GeneralKnowledge, Answer: answer}
	}
	return &Classification{
		QueryType: GeneralKnowledge,
		Answer:    fmt.Sprintf("Error: %v. Please try again later.", err),
	}
}
