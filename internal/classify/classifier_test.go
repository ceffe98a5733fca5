package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/i474232898/climategpt-servers/internal/dataset"
	"github.com/i474232898/climategpt-servers/internal/llm"
	"github.com/i474232898/climategpt-servers/internal/store"
)

type scriptedModel struct {
	replies []string
	err     error
	calls   int
}

func (m *scriptedModel) Complete(_ context.Context, _ []llm.Message, opts llm.Options) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if !opts.JSON {
		return "", errors.New("expected json mode")
	}
	r := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return r, nil
}

func newClassifier(t *testing.T, model llm.Completer) *Classifier {
	t.Helper()
	profile, err := dataset.Lookup("emissions")
	require.NoError(t, err)
	c := New(model, profile, store.NewMemoryStore[*Classification](100, 0), time.Hour, zap.NewNop())
	c.RetryDelay = time.Millisecond
	return c
}

func TestCleanJSON(t *testing.T) {
	cases := map[string]string{
		"trailing comma":  `{"a": 1, }`,
		"joined objects":  `[{"a": 1} {"b": 2}]`,
		"array trailing":  `{"a": [1, 2, ]}`,
		"doubled commas":  `{"a": 1,, "b": 2}`,
		"fenced":          "```json\n{\"a\": 1}\n```",
		"newlines inside": "{\n\t\"a\" : 1 ,\n \"b\": 2\n}",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			assert.True(t, gjson.Valid(CleanJSON(in)), CleanJSON(in))
		})
	}
}

func TestParse(t *testing.T) {
	t.Run("database plan", func(t *testing.T) {
		c, err := Parse(`{"query_type": "database", "execution_plan": {"steps": [
			{"id": "step1", "description": "totals", "sql": "SELECT 1"},
			{"sql": "SELECT 2"}
		]}}`)
		require.NoError(t, err)
		assert.Equal(t, Database, c.QueryType)
		require.Len(t, c.Plan.Steps, 2)
		assert.Equal(t, "step1", c.Plan.Steps[0].ID)
		assert.Equal(t, "step2", c.Plan.Steps[1].ID)
		assert.Equal(t, "SELECT 2", c.Plan.Steps[1].SQL)
	})

	t.Run("list uses first object", func(t *testing.T) {
		c, err := Parse(`[{"query_type": "general_knowledge", "answer": "CO2 traps heat."}]`)
		require.NoError(t, err)
		assert.Equal(t, "CO2 traps heat.", c.Answer)
	})

	t.Run("list without object", func(t *testing.T) {
		c, err := Parse(`["general_knowledge"]`)
		require.NoError(t, err)
		assert.Equal(t, GeneralKnowledge, c.QueryType)
		assert.Contains(t, c.Answer, "unexpected response format")
	})

	invalid := map[string]string{
		"unknown type":      `{"query_type": "chitchat"}`,
		"missing answer":    `{"query_type": "general_knowledge"}`,
		"missing plan":      `{"query_type": "database"}`,
		"empty steps":       `{"query_type": "database", "execution_plan": {"steps": []}}`,
		"step without sql":  `{"query_type": "database", "execution_plan": {"steps": [{"id": "s"}]}}`,
		"steps not a list":  `{"query_type": "database", "execution_plan": {"steps": "SELECT 1"}}`,
	}
	for name, in := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(in)
			assert.ErrorIs(t, err, ErrIncomplete)
		})
	}

	_, err := Parse("the answer is 42")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestClassifyCachesValidResults(t *testing.T) {
	model := &scriptedModel{replies: []string{`{"query_type": "general_knowledge", "answer": "Methane is a greenhouse gas."}`}}
	c := newClassifier(t, model)

	first, err := c.Classify(context.Background(), "What is methane?")
	require.NoError(t, err)
	assert.Equal(t, "Methane is a greenhouse gas.", first.Answer)

	second, err := c.Classify(context.Background(), "  what is METHANE?  ")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, model.calls)
}

func TestClassifyRetriesMalformed(t *testing.T) {
	model := &scriptedModel{replies: []string{
		"not json at all",
		`{"query_type": "database", "execution_plan": {"steps": [{"id": "step1", "sql": "SELECT 1"}]}}`,
	}}
	c := newClassifier(t, model)

	cls, err := c.Classify(context.Background(), "total emissions by year")
	require.NoError(t, err)
	assert.Equal(t, Database, cls.QueryType)
	assert.Equal(t, 2, model.calls)
}

func TestClassifyIncompleteIsNotCached(t *testing.T) {
	model := &scriptedModel{replies: []string{`{"query_type": "database"}`}}
	c := newClassifier(t, model)

	_, err := c.Classify(context.Background(), "total emissions by year")
	assert.ErrorIs(t, err, ErrIncomplete)
	_, err = c.Classify(context.Background(), "total emissions by year")
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Equal(t, 2, model.calls)
}

func TestClassifyTransportFailure(t *testing.T) {
	c := newClassifier(t, &scriptedModel{err: errors.New("connection refused")})

	cls, err := c.Classify(context.Background(), "emissions of texas in 2020")
	require.NoError(t, err)
	assert.Equal(t, GeneralKnowledge, cls.QueryType)
	assert.Equal(t, "Error: connection refused. Please try again later.", cls.Answer)

	cls, err = c.Classify(context.Background(), "explain climate change")
	require.NoError(t, err)
	assert.Contains(t, cls.Answer, "long-term shifts")
}
