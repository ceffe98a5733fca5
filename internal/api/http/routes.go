package httpapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"

	"github.com/i474232898/climategpt-servers/internal/classify"
	"github.com/i474232898/climategpt-servers/internal/config"
	"github.com/i474232898/climategpt-servers/internal/forecast"
	"github.com/i474232898/climategpt-servers/internal/llm"
	"github.com/i474232898/climategpt-servers/internal/query"
	"github.com/i474232898/climategpt-servers/internal/querycheck"
	"github.com/i474232898/climategpt-servers/internal/sqlitedb"
	"github.com/i474232898/climategpt-servers/internal/viz"
)

var validate = validator.New()

// Database is the part of the SQLite layer the routes report on.
type Database interface {
	Ping(ctx context.Context) error
	TableStats(ctx context.Context) (map[string]sqlitedb.TableStat, error)
}

// Purger empties a cache and reports how many entries it dropped.
type Purger interface {
	Clear() int
}

// Server holds what the handlers need.
type Server struct {
	Name      string
	Processor *query.Processor
	Checker   querycheck.Checker
	DB        Database
	// Relevance, when set, screens queries for climate relevance first.
	Relevance llm.Completer

	Results         Purger
	Classifications Purger
	Insights        Purger

	// RateLimit caps /query requests per minute per client IP; 0 disables it.
	RateLimit int
	Log       *zap.Logger
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, s *Server) {
	if s.Log == nil {
		s.Log = zap.NewNop()
	}

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(s.status(c.UserContext(), "running", "ClimateGPT API is running"))
	})
	app.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(s.status(c.UserContext(), "running", "Server statistics"))
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		dbStatus := "ok"
		if err := s.DB.Ping(c.UserContext()); err != nil {
			s.Log.Warn("health check: database unreachable", zap.Error(err))
			dbStatus = "unreachable"
		}
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  s.Name,
			"database": dbStatus,
		})
	})

	handlers := []fiber.Handler{s.handleQuery}
	if s.RateLimit > 0 {
		handlers = append([]fiber.Handler{limiter.New(limiter.Config{
			Max:        s.RateLimit,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded; try again later")
			},
		})}, handlers...)
	}
	app.Post("/query", handlers...)

	app.Post("/visualization", s.handleVisualization)

	app.Post("/cache/purge", func(c *fiber.Ctx) error {
		queries := s.Results.Clear()
		if s.Classifications != nil {
			queries += s.Classifications.Clear()
		}
		insights := s.Insights.Clear()
		s.Log.Info("cache purged", zap.Int("queries", queries), zap.Int("insights", insights))
		return c.JSON(statusResponse{
			Status:  "success",
			Message: fmt.Sprintf("Cache purged successfully. Cleared %d queries and %d insights.", queries, insights),
			Version: config.Version,
		})
	})

	app.Get("/stats/tools", func(c *fiber.Ctx) error {
		snap := s.Processor.Stats().Snapshot()
		return c.JSON(fiber.Map{
			"tool_usage":                snap.ToolUsage,
			"routing_decisions":         snap.RoutingDecisions,
			"server_selection_requests": snap.ServerSelectionRequests,
		})
	})
}

type statusResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Version string         `json:"version"`
	Stats   map[string]any `json:"stats,omitempty"`
}

func (s *Server) status(ctx context.Context, status, message string) statusResponse {
	tables, err := s.DB.TableStats(ctx)
	var database any = tables
	if err != nil {
		s.Log.Error("table stats", zap.Error(err))
		database = fiber.Map{"error": err.Error()}
	}
	return statusResponse{
		Status:  status,
		Message: message,
		Version: config.Version,
		Stats: map[string]any{
			"server":   s.Processor.Stats().Snapshot(),
			"database": database,
		},
	}
}

// queryRequest is the body of POST /query.
type queryRequest struct {
	Query string `json:"query" validate:"required"`
}

// queryResponse mirrors the fields clients read. Failures are reported with
// status 200 and the error field set.
type queryResponse struct {
	SQL              string             `json:"sql,omitempty"`
	Result           any                `json:"result,omitempty"`
	Insight          string             `json:"insight,omitempty"`
	Visualization    *viz.Spec          `json:"visualization,omitempty"`
	Plan             *classify.Plan     `json:"plan,omitempty"`
	ForecastMetadata *forecast.Metadata `json:"forecast_metadata,omitempty"`
	Metadata         *query.Metadata    `json:"metadata,omitempty"`
	Error            string             `json:"error,omitempty"`
	Message          string             `json:"message,omitempty"`
	ExecutionTime    float64            `json:"execution_time"`
}

func (s *Server) handleQuery(c *fiber.Ctx) error {
	start := time.Now()
	stats := s.Processor.Stats()
	stats.Inc(query.TotalRequests)

	var req queryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return s.failed(c, "Empty query", "Please provide a non-empty query", start)
	}

	cleaned, err := s.Checker.Check(req.Query)
	if err != nil {
		var rej *querycheck.Rejection
		if errors.As(err, &rej) {
			return s.failed(c, rej.Reason, "Invalid query format", start)
		}
		return s.failed(c, err.Error(), "Invalid query format", start)
	}
	if s.Relevance != nil {
		if err := querycheck.CheckRelevance(c.UserContext(), s.Relevance, cleaned); err != nil {
			return s.failed(c, err.Error(), "Invalid query format", start)
		}
	}

	resp := s.Processor.Process(c.UserContext(), cleaned)
	out := queryResponse{Metadata: &resp.Metadata}
	switch resp.Type {
	case query.TypeGeneralKnowledge:
		stats.Inc(query.KnowledgeQueries)
		stats.Inc(query.SuccessfulQueries)
		out.Result = fiber.Map{"answer": resp.Answer}
	case query.TypeDatabase:
		stats.Inc(query.DBQueries)
		stats.Inc(query.SuccessfulQueries)
		out.SQL = resp.FinalSQL()
		out.Result = resp.Results
		out.Insight = resp.Insights
		out.Plan = resp.Plan
		out.Visualization = resp.Visualization
		out.ForecastMetadata = resp.ForecastMetadata
	default:
		errMsg := resp.Error
		if errMsg == "" {
			errMsg = "Unknown error"
		}
		return s.failed(c, errMsg, "Query processing failed", start)
	}
	out.ExecutionTime = time.Since(start).Seconds()
	return c.JSON(out)
}

func (s *Server) failed(c *fiber.Ctx, errMsg, message string, start time.Time) error {
	s.Processor.Stats().Inc(query.FailedQueries)
	return c.JSON(queryResponse{
		Error:         errMsg,
		Message:       message,
		ExecutionTime: time.Since(start).Seconds(),
	})
}

// visualizationRequest is the body of POST /visualization.
type visualizationRequest struct {
	ResultData struct {
		Columns []string `json:"columns" validate:"required"`
		Data    [][]any  `json:"data"`
	} `json:"result_data"`
	Query string `json:"query"`
}

func (s *Server) handleVisualization(c *fiber.Ctx) error {
	var req visualizationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Data not suitable for visualization")
	}

	spec, err := s.Processor.Visualize(req.ResultData.Columns, req.ResultData.Data, req.Query)
	if errors.Is(err, viz.ErrNotVisualizable) {
		return fiber.NewError(fiber.StatusBadRequest, "Data not suitable for visualization")
	}
	if err != nil {
		s.Log.Error("error generating visualization", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "Error generating visualization: "+err.Error())
	}
	return c.JSON(spec)
}
