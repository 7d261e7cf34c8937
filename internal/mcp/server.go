// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the PRD store to the delegated coding assistant, so it can record step and
// item progress through the store gateway instead of editing prd.json by hand.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/prdflow/prdflow/internal/core"
	"github.com/prdflow/prdflow/internal/observability"
	"github.com/prdflow/prdflow/pkg/models"
)

// Server wraps prdflow services and exposes them as MCP tools.
type Server struct {
	server      *gomcp.Server
	store       core.ItemStore
	detector    *core.CompletionDetector
	metricsCalc observability.MetricsCalculator
}

// NewServer creates an MCP server over the given services. metricsCalc may
// be nil if observability is disabled.
func NewServer(store core.ItemStore, detector *core.CompletionDetector, metricsCalc observability.MetricsCalculator, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		store:       store,
		detector:    detector,
		metricsCalc: metricsCalc,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "prdflow", Version: version},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type getItemInput struct {
	ItemID string `json:"item_id" jsonschema:"required,the work item id (e.g. ui-007)"`
}

type stepOutput struct {
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	Tracked   bool   `json:"tracked"`
}

type itemOutput struct {
	ID          string       `json:"id"`
	Category    string       `json:"category"`
	Description string       `json:"description"`
	Status      string       `json:"status"`
	Passes      bool         `json:"passes"`
	Steps       []stepOutput `json:"steps"`
}

type listItemsInput struct {
	Status   string `json:"status,omitempty" jsonschema:"filter by status (not-started, in-progress, in-review, completed)"`
	Category string `json:"category,omitempty" jsonschema:"filter by category"`
}

type listItemsOutput struct {
	Items []itemOutput `json:"items"`
	Count int          `json:"count"`
}

type updateStatusInput struct {
	ItemID string `json:"item_id" jsonschema:"required,the work item id"`
	Status string `json:"status" jsonschema:"required,the new status (not-started, in-progress, in-review, completed)"`
}

type updateStatusOutput struct {
	Message string `json:"message"`
}

type checkStepInput struct {
	ItemID    string `json:"item_id" jsonschema:"required,the work item id"`
	StepIndex int    `json:"step_index" jsonschema:"required,zero-based index of the step"`
	Completed bool   `json:"completed" jsonschema:"the new completion state"`
}

type checkStepOutput struct {
	Message string     `json:"message"`
	Item    itemOutput `json:"item"`
}

type markCompleteInput struct {
	ItemID string `json:"item_id" jsonschema:"required,the work item id"`
	Passes bool   `json:"passes" jsonschema:"acceptance flag; true when the work passes review"`
}

type markCompleteOutput struct {
	Message string `json:"message"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window (e.g. 7d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	ItemsCreated   int            `json:"items_created"`
	ItemsCompleted int            `json:"items_completed"`
	ItemsByStatus  map[string]int `json:"items_by_status"`
	LoopsStarted   int            `json:"loops_started"`
	LoopsFinished  int            `json:"loops_finished"`
	EventCount     int            `json:"event_count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_item",
		Description: "Get a work item by id. Returns the full item including steps, status, and the passes flag.",
	}, s.handleGetItem)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_items",
		Description: "List work items with optional status and category filters, in stored order.",
	}, s.handleListItems)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "update_status",
		Description: "Update a work item's lifecycle status. Valid statuses: not-started, in-progress, in-review, completed.",
	}, s.handleUpdateStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "check_step",
		Description: "Set the completion state of one step of a work item. Upgrades a plain step to a tracked step.",
	}, s.handleCheckStep)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "mark_complete",
		Description: "Mark a work item completed with the given passes flag.",
	}, s.handleMarkComplete)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get aggregated counters from the event log: items created/completed, loops run.",
	}, s.handleGetMetrics)
}

// --- Tool handlers ---

func (s *Server) handleGetItem(_ context.Context, _ *gomcp.CallToolRequest, input getItemInput) (*gomcp.CallToolResult, itemOutput, error) {
	if input.ItemID == "" {
		return errorResult("item_id is required"), itemOutput{}, nil
	}

	items, err := s.store.Read()
	if err != nil {
		return errorResult(fmt.Sprintf("reading PRD document: %s", err)), itemOutput{}, nil
	}
	for _, item := range items {
		if item.ID == input.ItemID {
			return nil, itemToOutput(item), nil
		}
	}
	return errorResult(fmt.Sprintf("item %s not found", input.ItemID)), itemOutput{}, nil
}

func (s *Server) handleListItems(_ context.Context, _ *gomcp.CallToolRequest, input listItemsInput) (*gomcp.CallToolResult, listItemsOutput, error) {
	items, err := s.store.Read()
	if err != nil {
		return errorResult(fmt.Sprintf("reading PRD document: %s", err)), listItemsOutput{}, nil
	}

	out := listItemsOutput{Items: []itemOutput{}}
	for _, item := range items {
		if input.Status != "" && string(item.Status) != input.Status {
			continue
		}
		if input.Category != "" && item.Category != input.Category {
			continue
		}
		out.Items = append(out.Items, itemToOutput(item))
	}
	out.Count = len(out.Items)
	return nil, out, nil
}

func (s *Server) handleUpdateStatus(_ context.Context, _ *gomcp.CallToolRequest, input updateStatusInput) (*gomcp.CallToolResult, updateStatusOutput, error) {
	if input.ItemID == "" {
		return errorResult("item_id is required"), updateStatusOutput{}, nil
	}
	status := models.Status(input.Status)
	if !models.IsValidStatus(status) {
		return errorResult(fmt.Sprintf("invalid status %q: must be one of not-started, in-progress, in-review, completed", input.Status)), updateStatusOutput{}, nil
	}

	if _, err := s.store.UpdateItem(input.ItemID, func(it models.WorkItem) models.WorkItem {
		it.Status = status
		return it
	}); err != nil {
		return errorResult(fmt.Sprintf("updating item %s: %s", input.ItemID, err)), updateStatusOutput{}, nil
	}

	return nil, updateStatusOutput{
		Message: fmt.Sprintf("item %s status updated to %s", input.ItemID, input.Status),
	}, nil
}

func (s *Server) handleCheckStep(_ context.Context, _ *gomcp.CallToolRequest, input checkStepInput) (*gomcp.CallToolResult, checkStepOutput, error) {
	if input.ItemID == "" {
		return errorResult("item_id is required"), checkStepOutput{}, nil
	}

	updated, err := s.store.UpdateItem(input.ItemID, func(it models.WorkItem) models.WorkItem {
		if input.StepIndex >= 0 && input.StepIndex < len(it.Steps) {
			step := it.Steps[input.StepIndex].Track()
			step.Completed = input.Completed
			it.Steps[input.StepIndex] = step
		}
		return it
	})
	if err != nil {
		return errorResult(fmt.Sprintf("updating item %s: %s", input.ItemID, err)), checkStepOutput{}, nil
	}
	if input.StepIndex < 0 || input.StepIndex >= len(updated.Steps) {
		return errorResult(fmt.Sprintf("step index %d out of range for item %s (%d steps)", input.StepIndex, input.ItemID, len(updated.Steps))), checkStepOutput{}, nil
	}

	return nil, checkStepOutput{
		Message: fmt.Sprintf("item %s step %d completed=%t", input.ItemID, input.StepIndex, input.Completed),
		Item:    itemToOutput(updated),
	}, nil
}

func (s *Server) handleMarkComplete(_ context.Context, _ *gomcp.CallToolRequest, input markCompleteInput) (*gomcp.CallToolResult, markCompleteOutput, error) {
	if input.ItemID == "" {
		return errorResult("item_id is required"), markCompleteOutput{}, nil
	}

	item, err := s.detector.MarkComplete(input.ItemID, input.Passes)
	if err != nil {
		return errorResult(fmt.Sprintf("marking item %s complete: %s", input.ItemID, err)), markCompleteOutput{}, nil
	}

	return nil, markCompleteOutput{
		Message: fmt.Sprintf("item %s marked complete (passes=%t)", item.ID, item.Passes),
	}, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics not available (observability may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}
	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	return nil, metricsOutput{
		ItemsCreated:   metrics.ItemsCreated,
		ItemsCompleted: metrics.ItemsCompleted,
		ItemsByStatus:  metrics.ItemsByStatus,
		LoopsStarted:   metrics.LoopsStarted,
		LoopsFinished:  metrics.LoopsFinished,
		EventCount:     metrics.EventCount,
	}, nil
}

// --- Helpers ---

func itemToOutput(item models.WorkItem) itemOutput {
	out := itemOutput{
		ID:          item.ID,
		Category:    item.Category,
		Description: item.Description,
		Status:      string(item.Status),
		Passes:      item.Passes,
		Steps:       make([]stepOutput, len(item.Steps)),
	}
	for i, s := range item.Steps {
		out.Steps[i] = stepOutput{Text: s.Text, Completed: s.Completed, Tracked: s.Tracked}
	}
	return out
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{ItemsByStatus: make(map[string]int)}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a duration like "7d" or "24h" into a past time.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
