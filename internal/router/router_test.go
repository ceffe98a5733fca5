package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/climategpt-servers/internal/dataset"
	"github.com/i474232898/climategpt-servers/internal/llm"
)

type scriptedModel struct {
	reply   string
	err     error
	prompts []string
	opts    []llm.Options
}

func (m *scriptedModel) Complete(_ context.Context, msgs []llm.Message, opts llm.Options) (string, error) {
	m.prompts = append(m.prompts, msgs[len(msgs)-1].Content)
	m.opts = append(m.opts, opts)
	return m.reply, m.err
}

func registryFor(t *testing.T, urls map[string]string) *Registry {
	t.Helper()
	var b strings.Builder
	for name, url := range urls {
		b.WriteString(name + ":\n  url: " + url + "\n  description: " + name + " data\n  capabilities: [trends]\n")
	}
	b.WriteString("climategpt_api:\n  url: https://example.invalid\n  description: general knowledge\n")
	reg, err := ParseRegistry([]byte(b.String()))
	require.NoError(t, err)
	return reg
}

func TestParseRegistry(t *testing.T) {
	reg, err := ParseRegistry([]byte(`
sea_level_server:
  url: http://127.0.0.1:8001/query
  description: Sea level measurements
  capabilities: [sea level data, visualization]
  schema:
    tables: [Global_Change_In_Mean_Sea_Level]
    time_range: "1993-2023"
  timeout: 30
emissions_server:
  url: http://127.0.0.1:8000
climategpt_api:
  url: https://erasmus.ai
`))
	require.NoError(t, err)

	servers := reg.DataServers()
	require.Len(t, servers, 2)
	assert.Equal(t, "emissions_server", servers[0].Name)
	assert.Len(t, reg.All(), 3)

	sea, ok := reg.Lookup("sea_level_server")
	require.True(t, ok)
	assert.Equal(t, "http://127.0.0.1:8001", sea.BaseURL())
	assert.Equal(t, "http://127.0.0.1:8001/query", sea.QueryURL())
	assert.Equal(t, 30*time.Second, sea.RequestTimeout(time.Minute))
	assert.Equal(t, "1993-2023", sea.Schema.TimeRange)
	assert.Equal(t, time.Minute, servers[0].RequestTimeout(time.Minute))

	fromJSON, err := ParseRegistry([]byte(`{"emissions_server": {"url": "http://x", "capabilities": ["a"]}}`))
	require.NoError(t, err)
	assert.Len(t, fromJSON.DataServers(), 1)

	_, err = ParseRegistry([]byte("climategpt_api:\n  url: http://x\n"))
	assert.ErrorIs(t, err, ErrEmptyRegistry)
}

func TestSelect(t *testing.T) {
	reg := registryFor(t, map[string]string{"emissions_server": "http://a", "wildfires_server": "http://b"})

	cases := map[string]struct {
		reply string
		err   error
		want  string
		ok    bool
	}{
		"named":       {reply: "  Wildfires_Server\n", want: "wildfires_server", ok: true},
		"general":     {reply: "general_knowledge"},
		"unparseable": {reply: "I am not sure"},
		"model down":  {err: errors.New("timeout")},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			m := &scriptedModel{reply: c.reply, err: c.err}
			srv, ok := New(reg, m, nil, Options{}, nil).Select(context.Background(), "wildfire acres burned")
			assert.Equal(t, c.ok, ok)
			assert.Equal(t, c.want, srv.Name)
			assert.Contains(t, m.prompts[0], "emissions_server, wildfires_server\nOR\ngeneral_knowledge")
			assert.Equal(t, 50, m.opts[0].MaxTokens)
		})
	}
}

func TestProcessRoutesToServer(t *testing.T) {
	var gotBody map[string]string
	var gotID string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		gotID = r.Header.Get("X-Request-ID")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sql": "SELECT 1", "result": {"columns": ["a"], "data": [[1]]}, "insight": "one row",
			"visualization": {"type": "bar", "title": "A"}, "execution_time": 0.5}`))
	}))
	defer ts.Close()

	reg := registryFor(t, map[string]string{"emissions_server": ts.URL})
	r := New(reg, &scriptedModel{reply: "emissions_server"}, ts.Client(), Options{}, nil)

	reply := r.Process(context.Background(), "emissions in texas")
	require.Empty(t, reply.Error)
	assert.Equal(t, "database", reply.Type)
	assert.Equal(t, "emissions_server", reply.Server)
	assert.Equal(t, []string{"a"}, reply.Result.Columns)
	assert.Equal(t, "bar", reply.Visualization.Type)
	assert.Equal(t, "emissions in texas", gotBody["query"])
	assert.NotEmpty(t, gotID)
}

func TestProcessServerFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": true, "message": "rate limit exceeded; try again later"}`))
	}))
	defer ts.Close()

	reg := registryFor(t, map[string]string{"emissions_server": ts.URL})
	reply := New(reg, &scriptedModel{reply: "emissions_server"}, ts.Client(), Options{}, nil).
		Process(context.Background(), "emissions in texas")
	assert.Equal(t, "error", reply.Type)
	assert.Equal(t, "Error communicating with emissions_server: status 429: rate limit exceeded; try again later", reply.Error)
}

func TestProcessGeneralKnowledge(t *testing.T) {
	reg := registryFor(t, map[string]string{"emissions_server": "http://unused"})
	m := &scriptedModel{reply: "general_knowledge"}
	r := New(reg, m, nil, Options{Temperature: 0.7, MaxTokens: 2000}, nil)

	reply := r.Process(context.Background(), "what is methane")
	assert.Equal(t, "general_knowledge", reply.Type)
	assert.Equal(t, "general_knowledge", reply.Result.Answer)
	assert.Equal(t, "what is methane", m.prompts[1])
	assert.Equal(t, 0.7, m.opts[1].Temperature)

	m.err = errors.New("boom")
	reply = r.Process(context.Background(), "what is methane")
	assert.Equal(t, "Error communicating with ClimateGPT API: boom", reply.Error)
}

func TestHealthCheck(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "ok", "service": "emissions_server"}`))
	}))
	defer up.Close()
	odd := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "degraded"}`))
	}))
	defer odd.Close()
	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()

	reg := registryFor(t, map[string]string{
		"emissions_server": up.URL,
		"sea_level_server": odd.URL,
		"wildfires_server": down.URL,
	})
	health := New(reg, nil, nil, Options{}, nil).HealthCheck(context.Background(), time.Second)
	require.Len(t, health, 3)
	assert.Equal(t, Online, health[0].Status)
	assert.Equal(t, Failing, health[1].Status)
	assert.Equal(t, Offline, health[2].Status)
	assert.NotEmpty(t, health[2].Error)
}

func TestStatsAndPurge(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stats/tools":
			_, _ = w.Write([]byte(`{"tool_usage": {"forecast": 2}, "routing_decisions": {"fallback": 1}, "server_selection_requests": 4}`))
		case "/cache/purge":
			assert.Equal(t, http.MethodPost, r.Method)
			_, _ = w.Write([]byte(`{"status": "success", "message": "Cache purged successfully. Cleared 3 queries and 1 insights."}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	reg := registryFor(t, map[string]string{"emissions_server": ts.URL + "/query"})
	r := New(reg, nil, ts.Client(), Options{}, nil)
	srv, _ := reg.Lookup("emissions_server")

	st, err := r.Stats(context.Background(), srv)
	require.NoError(t, err)
	assert.Equal(t, 2, st.ToolUsage["forecast"])
	assert.Equal(t, 4, st.ServerSelectionRequests)

	msg, err := r.Purge(context.Background(), srv)
	require.NoError(t, err)
	assert.Contains(t, msg, "Cleared 3 queries")
}

func TestBundledRegistryMatchesDatasets(t *testing.T) {
	reg, err := LoadRegistry("../../server_registry.yaml")
	require.NoError(t, err)

	for _, name := range []string{"emissions", "sealevel", "wildfires"} {
		profile, err := dataset.Lookup(name)
		require.NoError(t, err)
		srv, ok := reg.Lookup(profile.Server)
		require.True(t, ok, profile.Server)
		assert.Equal(t, profile.Tables, srv.Schema.Tables)
		assert.Equal(t, profile.TimeRange, srv.Schema.TimeRange)
	}
	_, ok := reg.Lookup(ClimateGPT)
	assert.True(t, ok)
}
