package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/climategpt-servers/internal/llm"
)

// Result is either a general knowledge answer or a table.
type Result struct {
	Answer  string   `json:"answer,omitempty"`
	Columns []string `json:"columns,omitempty"`
	Data    [][]any  `json:"data,omitempty"`
}

// Chart is the part of a server's visualization the CLI shows.
type Chart struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	PlotCode string `json:"plot_code,omitempty"`
}

// Reply is a server's answer, or a ClimateGPT answer in the same shape.
type Reply struct {
	Type             string          `json:"type,omitempty"`
	SQL              string          `json:"sql,omitempty"`
	Result           *Result         `json:"result,omitempty"`
	Insight          string          `json:"insight,omitempty"`
	Visualization    *Chart          `json:"visualization,omitempty"`
	ForecastMetadata json.RawMessage `json:"forecast_metadata,omitempty"`
	Error            string          `json:"error,omitempty"`
	Message          string          `json:"message,omitempty"`
	ExecutionTime    float64         `json:"execution_time,omitempty"`

	// Server is the registry entry that answered; empty for ClimateGPT.
	Server string `json:"server,omitempty"`
}

// Options tune the router's model calls and HTTP requests.
type Options struct {
	RequestTimeout time.Duration
	Temperature    float64
	MaxTokens      int
}

// Router dispatches questions across the registry.
type Router struct {
	reg    *Registry
	model  llm.Completer
	client *http.Client
	opts   Options
	log    *zap.Logger
}

// New builds a Router. A nil client uses http.DefaultClient; per-request
// timeouts come from the registry.
func New(reg *Registry, model llm.Completer, client *http.Client, opts Options, log *zap.Logger) *Router {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{reg: reg, model: model, client: client, opts: opts, log: log}
}

// Registry returns the loaded registry.
func (r *Router) Registry() *Registry { return r.reg }

func (r *Router) selectionPrompt(query string) string {
	var b strings.Builder
	b.WriteString("You are assisting a climate data system by selecting the appropriate server to handle a user query.\n")
	b.WriteString("Based on the query, determine which specialized server would be best, or if the query should be answered directly.\n\n")
	fmt.Fprintf(&b, "User query: %q\n\nAvailable servers:\n", query)

	var names []string
	for _, s := range r.reg.DataServers() {
		names = append(names, s.Name)
		fmt.Fprintf(&b, "Server: %s\nDescription: %s\nCapabilities: %s\n", s.Name, s.Description, strings.Join(s.Capabilities, ", "))
		if s.Schema != nil {
			fmt.Fprintf(&b, "Data tables: %s\nTime range: %s\n", strings.Join(s.Schema.Tables, ", "), s.Schema.TimeRange)
		}
		b.WriteString("\n")
	}

	b.WriteString("If the query requires specialized data access, forecasting, or visualization from one of the described servers, select that server. ")
	b.WriteString("If the query is a general climate knowledge question that doesn't need specific data access, respond with \"general_knowledge\".\n\n")
	fmt.Fprintf(&b, "Respond with only one of the following options:\n%s\nOR\ngeneral_knowledge\n", strings.Join(names, ", "))
	return b.String()
}

// Select asks the model which data server should answer query. ok is false
// when the question should go to ClimateGPT directly, including when the
// model cannot be reached or its reply names no server.
func (r *Router) Select(ctx context.Context, query string) (srv Server, ok bool) {
	out, err := r.model.Complete(ctx, []llm.Message{
		llm.System("You are an AI assistant that routes climate queries to the appropriate server."),
		llm.User(r.selectionPrompt(query)),
	}, llm.Options{Temperature: 0.3, MaxTokens: 50})
	if err != nil {
		r.log.Error("server selection failed", zap.Error(err))
		return Server{}, false
	}

	content := strings.ToLower(strings.TrimSpace(out))
	r.log.Info("server selection", zap.String("reply", content))
	for _, s := range r.reg.DataServers() {
		if strings.Contains(content, strings.ToLower(s.Name)) {
			return s, true
		}
	}
	if !strings.Contains(content, "general_knowledge") {
		r.log.Warn("could not parse server selection", zap.String("reply", content))
	}
	return Server{}, false
}

// QueryServer posts query to the server's /query endpoint.
func (r *Router) QueryServer(ctx context.Context, srv Server, query string) (*Reply, error) {
	if srv.URL == "" {
		return nil, fmt.Errorf("No URL found for server %s", srv.Name)
	}
	ctx, cancel := context.WithTimeout(ctx, srv.RequestTimeout(r.opts.RequestTimeout))
	defer cancel()

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, err
	}
	r.log.Info("sending query", zap.String("server", srv.Name), zap.String("url", srv.QueryURL()))

	raw, err := r.do(ctx, http.MethodPost, srv.QueryURL(), body)
	if err != nil {
		return nil, fmt.Errorf("Error communicating with %s: %w", srv.Name, err)
	}

	var reply Reply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("Error communicating with %s: decode reply: %w", srv.Name, err)
	}
	if reply.Type == "" {
		reply.Type = replyType(&reply)
	}
	reply.Server = srv.Name
	return &reply, nil
}

func replyType(r *Reply) string {
	switch {
	case r.Error != "":
		return "error"
	case r.Result != nil && r.Result.Answer != "" && r.Result.Columns == nil:
		return "general_knowledge"
	default:
		return "database"
	}
}

// QueryClimateGPT answers query with the model alone.
func (r *Router) QueryClimateGPT(ctx context.Context, query string) (*Reply, error) {
	r.log.Info("sending query to ClimateGPT API")
	out, err := r.model.Complete(ctx, []llm.Message{
		llm.System("You are an AI assistant specialized in climate data analysis."),
		llm.User(query),
	}, llm.Options{Temperature: r.opts.Temperature, MaxTokens: r.opts.MaxTokens})
	if err != nil {
		return nil, fmt.Errorf("Error communicating with ClimateGPT API: %w", err)
	}
	return &Reply{Type: "general_knowledge", Result: &Result{Answer: out}}, nil
}

// Process routes query and returns the answer. Transport failures are
// reported in Reply.Error.
func (r *Router) Process(ctx context.Context, query string) *Reply {
	var (
		reply *Reply
		err   error
	)
	if srv, ok := r.Select(ctx, query); ok {
		reply, err = r.QueryServer(ctx, srv, query)
	} else {
		reply, err = r.QueryClimateGPT(ctx, query)
	}
	if err != nil {
		r.log.Error("query failed", zap.Error(err))
		return &Reply{Type: "error", Error: err.Error()}
	}
	return reply
}

// Health is one server's health check outcome.
type Health struct {
	Name    string        `json:"name"`
	URL     string        `json:"url"`
	Status  string        `json:"status"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// Health statuses.
const (
	Online  = "online"
	Offline = "offline"
	Failing = "error"
)

// HealthCheck probes every data server concurrently.
func (r *Router) HealthCheck(ctx context.Context, timeout time.Duration) []Health {
	servers := r.reg.DataServers()
	out := make([]Health, len(servers))

	g, ctx := errgroup.WithContext(ctx)
	for i, srv := range servers {
		g.Go(func() error {
			out[i] = r.probe(ctx, srv, timeout)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Router) probe(ctx context.Context, srv Server, timeout time.Duration) Health {
	h := Health{Name: srv.Name, URL: srv.BaseURL()}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	raw, err := r.do(ctx, http.MethodGet, srv.BaseURL()+"/health", nil)
	h.Latency = time.Since(start)
	if err != nil {
		h.Status, h.Error = Offline, err.Error()
		return h
	}
	if status := gjson.GetBytes(raw, "status").String(); status != "ok" {
		h.Status, h.Error = Failing, fmt.Sprintf("unexpected status %q", status)
		return h
	}
	h.Status = Online
	return h
}

// ToolStats is a server's /stats/tools report.
type ToolStats struct {
	ToolUsage               map[string]int `json:"tool_usage"`
	RoutingDecisions        map[string]int `json:"routing_decisions"`
	ServerSelectionRequests int            `json:"server_selection_requests"`
}

// Stats fetches a server's tool usage counters.
func (r *Router) Stats(ctx context.Context, srv Server) (*ToolStats, error) {
	ctx, cancel := context.WithTimeout(ctx, srv.RequestTimeout(r.opts.RequestTimeout))
	defer cancel()

	raw, err := r.do(ctx, http.MethodGet, srv.BaseURL()+"/stats/tools", nil)
	if err != nil {
		return nil, fmt.Errorf("stats from %s: %w", srv.Name, err)
	}
	var st ToolStats
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode stats from %s: %w", srv.Name, err)
	}
	return &st, nil
}

// Purge clears a server's caches and returns its message.
func (r *Router) Purge(ctx context.Context, srv Server) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, srv.RequestTimeout(r.opts.RequestTimeout))
	defer cancel()

	raw, err := r.do(ctx, http.MethodPost, srv.BaseURL()+"/cache/purge", nil)
	if err != nil {
		return "", fmt.Errorf("purge %s: %w", srv.Name, err)
	}
	return gjson.GetBytes(raw, "message").String(), nil
}

// do sends a JSON request tagged with a fresh request id and returns the body
// of a 2xx response.
func (r *Router) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(raw, "message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	return raw, nil
}
