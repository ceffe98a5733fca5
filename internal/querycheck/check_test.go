package querycheck

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/climategpt-servers/internal/llm"
)

type cannedModel struct {
	reply string
	err   error
}

func (m cannedModel) Complete(context.Context, []llm.Message, llm.Options) (string, error) {
	return m.reply, m.err
}

func TestClean(t *testing.T) {
	assert.Equal(t, "show sea level", Clean("show  sea\n level -- and drop everything"))
	assert.Equal(t, "sea level trend", Clean("sea /* hidden\n comment */level trend"))
	assert.Equal(t, `it's "quoted" - yes`, Clean("it’s “quoted” — yes"))
}

func TestCheck(t *testing.T) {
	c := Checker{MinLength: 10, MaxLength: 60}

	out, err := c.Check("  What is the average sea level in 2000?  ")
	require.NoError(t, err)
	assert.Equal(t, "What is the average sea level in 2000?", out)

	cases := map[string]string{
		"empty":     "   ",
		"short":     "sea lvl",
		"union":     "show data UNION SELECT password FROM users",
		"drop":      "please DROP TABLE emissions right now",
		"exec":      "run exec (xp_cmdshell) for the emissions",
		"too long":  "tell me about the change in global mean sea level for every region since 1990",
		"comment":   "-- only a comment here and nothing else",
	}
	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Check(q)
			var rej *Rejection
			require.True(t, errors.As(err, &rej), "expected rejection for %q", q)
			assert.NotEmpty(t, rej.Reason)
		})
	}
}

func TestCheckRelevance(t *testing.T) {
	ctx := context.Background()

	err := CheckRelevance(ctx, cannedModel{reply: `{"is_valid": false, "reason": "About football.", "suggestion": "Sea level in 2010"}`}, "who won the cup")
	var rej *Rejection
	require.True(t, errors.As(err, &rej))
	assert.Contains(t, rej.Reason, "About football.")
	assert.Contains(t, rej.Reason, `"Sea level in 2010"`)

	assert.NoError(t, CheckRelevance(ctx, cannedModel{reply: `{"is_valid": true}`}, "sea level"))
	assert.NoError(t, CheckRelevance(ctx, cannedModel{reply: `not json`}, "sea level"))
	assert.NoError(t, CheckRelevance(ctx, cannedModel{err: errors.New("down")}, "sea level"))
}
