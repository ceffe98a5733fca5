package query

import "sync"

// Counter names.
const (
	TotalRequests           = "total_requests"
	SuccessfulQueries       = "successful_queries"
	FailedQueries           = "failed_queries"
	DBQueries               = "db_queries"
	KnowledgeQueries        = "knowledge_queries"
	VisualizationRequests   = "visualization_requests"
	ServerSelectionRequests = "server_selection_requests"
)

// Tool names.
const (
	ToolQueryProcessing   = "query_processing"
	ToolDatabaseAccess    = "database_access"
	ToolForecast          = "forecast"
	ToolVisualization     = "visualization"
	ToolInsightGeneration = "insight_generation"
)

// Routing targets besides the dataset server itself.
const (
	RouteClimateGPT = "climategpt_api"
	RouteFallback   = "fallback"
)

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	TotalRequests           int            `json:"total_requests"`
	SuccessfulQueries       int            `json:"successful_queries"`
	FailedQueries           int            `json:"failed_queries"`
	DBQueries               int            `json:"db_queries"`
	KnowledgeQueries        int            `json:"knowledge_queries"`
	VisualizationRequests   int            `json:"visualization_requests"`
	ServerSelectionRequests int            `json:"server_selection_requests"`
	ToolUsage               map[string]int `json:"tool_usage"`
	RoutingDecisions        map[string]int `json:"routing_decisions"`
}

// Stats counts requests, tool usage and routing decisions for one server.
type Stats struct {
	mu       sync.Mutex
	counters map[string]int
	tools    map[string]int
	routes   map[string]int
}

// NewStats returns zeroed counters. server is the dataset server's routing
// name; any other routing target is counted as fallback.
func NewStats(server string) *Stats {
	return &Stats{
		counters: map[string]int{
			TotalRequests: 0, SuccessfulQueries: 0, FailedQueries: 0, DBQueries: 0,
			KnowledgeQueries: 0, VisualizationRequests: 0, ServerSelectionRequests: 0,
		},
		tools: map[string]int{
			ToolQueryProcessing: 0, ToolDatabaseAccess: 0, ToolForecast: 0,
			ToolVisualization: 0, ToolInsightGeneration: 0,
		},
		routes: map[string]int{server: 0, RouteClimateGPT: 0, RouteFallback: 0},
	}
}

// Inc bumps a top-level counter. Unknown names are ignored.
func (s *Stats) Inc(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.counters[name]; ok {
		s.counters[name]++
	}
}

// Tool records one use of a tool. Unknown names are ignored.
func (s *Stats) Tool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tools[name]; ok {
		s.tools[name]++
	}
}

// Route records a routing decision.
func (s *Stats) Route(target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.routes[target]; !ok {
		target = RouteFallback
	}
	s.routes[target]++
}

// Snapshot copies the current values.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		TotalRequests:           s.counters[TotalRequests],
		SuccessfulQueries:       s.counters[SuccessfulQueries],
		FailedQueries:           s.counters[FailedQueries],
		DBQueries:               s.counters[DBQueries],
		KnowledgeQueries:        s.counters[KnowledgeQueries],
		VisualizationRequests:   s.counters[VisualizationRequests],
		ServerSelectionRequests: s.counters[ServerSelectionRequests],
		ToolUsage:               make(map[string]int, len(s.tools)),
		RoutingDecisions:        make(map[string]int, len(s.routes)),
	}
	for k, v := range s.tools {
		snap.ToolUsage[k] = v
	}
	for k, v := range s.routes {
		snap.RoutingDecisions[k] = v
	}
	return snap
}
