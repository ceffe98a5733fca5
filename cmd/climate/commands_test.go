package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeServers(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/chat/completions":
			_, _ = w.Write([]byte(`{"id": "1", "object": "chat.completion", "choices": [{"index": 0, "message": {"role": "assistant", "content": "emissions_server"}}]}`))
		case "/query":
			_, _ = w.Write([]byte(`{"sql": "SELECT year, emissions FROM Emissions", "result": {"columns": ["year", "emissions"],
				"data": [[2020, 1234.5], [2021, 1300]]}, "insight": "Emissions rose.", "execution_time": 0.25}`))
		case "/health":
			_, _ = w.Write([]byte(`{"status": "ok"}`))
		case "/stats/tools":
			_, _ = w.Write([]byte(`{"tool_usage": {"database_access": 1200}, "routing_decisions": {}, "server_selection_requests": 3}`))
		case "/cache/purge":
			_, _ = w.Write([]byte(`{"status": "success", "message": "Cache purged successfully. Cleared 3 queries and 1 insights."}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)

	registry := filepath.Join(t.TempDir(), "server_registry.yaml")
	body := "emissions_server:\n  url: " + ts.URL + "/query\n  description: Greenhouse gas emissions\n  capabilities: [emissions data, forecasting]\n" +
		"climategpt_api:\n  url: " + ts.URL + "/v1/chat/completions\n  description: General climate knowledge\n"
	require.NoError(t, os.WriteFile(registry, []byte(body), 0o644))

	t.Setenv("CLIMATE_CLIENT_REGISTRY", registry)
	t.Setenv("CLIMATE_CLIENT_LOG_LEVEL", "error")
	t.Setenv("CLIMATEGPT_API_URL", ts.URL+"/v1/chat/completions")
	t.Setenv("CLIMATEGPT_MAX_RETRIES", "0")
	return ts
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAsk(t *testing.T) {
	fakeServers(t)

	out, err := run(t, "ask", "emissions", "by", "year")
	require.NoError(t, err)
	assert.Contains(t, out, "Answered by emissions_server in 0.25s")
	assert.Contains(t, out, "2020")
	assert.Contains(t, out, "1,234.5")
	assert.Contains(t, out, "Emissions rose.")

	out, err = run(t, "ask", "--rows", "1", "emissions by year")
	require.NoError(t, err)
	assert.NotContains(t, out, "2021")
	assert.Contains(t, out, "... 1 more rows")
}

func TestServersStatusStatsPurge(t *testing.T) {
	fakeServers(t)

	out, err := run(t, "servers")
	require.NoError(t, err)
	assert.Contains(t, out, "climategpt_api")
	assert.Contains(t, out, "emissions data, forecasting")

	out, err = run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "online")
	assert.Contains(t, out, "1 of 1 servers online")

	out, err = run(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "1,200")

	out, err = run(t, "purge", "emissions_server")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 3 queries")

	_, err = run(t, "purge", "climategpt_api")
	assert.EqualError(t, err, `unknown data server "climategpt_api"`)
}

func TestFormatCell(t *testing.T) {
	cases := []struct {
		column string
		value  any
		want   string
	}{
		{"year", 2024.0, "2024"},
		{"emissions", 1534000.0, "1,534,000"},
		{"emissions", 12.3456, "12.35"},
		{"emissions", 0.5, "0.5"},
		{"region", "Texas", "Texas"},
		{"lower_ci", nil, "-"},
		{"flag", true, "true"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, formatCell(c.column, c.value), "%s=%v", c.column, c.value)
	}
}

func TestForecastSummary(t *testing.T) {
	got := forecastSummary([]byte(`{"is_forecast": true, "forecast_years": 8, "model_info": {"type": "ARIMA"}, "metrics": {"RMSE": 12.3}}`))
	assert.Equal(t, "Forecast: 8 years with ARIMA, RMSE 12.3", got)
	assert.Empty(t, forecastSummary(nil))
}
