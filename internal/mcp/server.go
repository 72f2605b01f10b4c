// Package mcp exposes read-only introspection of a reduceflow snapshot over
// the Model Context Protocol: one mcpsdk.Server wrapped with OTel tracing
// and RED metrics around every tool call, stdio-transported from a cobra
// subcommand.
package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowcore/differential/pkg/observability"
)

const (
	serverName = "reduceflow"

	toolNameDescribeTrace      = "describe_trace"
	toolNameListInteresting    = "list_interesting"
	toolNameCapabilityFrontier = "capability_frontier"
)

// ServerDeps are the dependencies a Server needs, threaded in rather than
// constructed internally so tests can supply no-op loggers/tracers.
type ServerDeps struct {
	Metrics *observability.REDMetrics
	Tracer  trace.Tracer
}

// Server wraps an mcpsdk.Server exposing reduceflow's introspection tools.
type Server struct {
	inner *mcpsdk.Server

	mu    sync.RWMutex
	tools []string

	metrics *observability.REDMetrics
	tracer  trace.Tracer
}

// NewServer builds a Server and registers its tools.
func NewServer(version string, deps ServerDeps) *Server {
	s := &Server{
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
	}

	s.inner = mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    serverName,
		Version: version,
	}, nil)

	s.registerTools()

	return s
}

// Tools reports the names of every tool registered on the server.
func (s *Server) Tools() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string{}, s.tools...)
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        toolNameDescribeTrace,
		Description: "Summarize a reduceflow snapshot file: key count, row count, and time range of its output trace.",
	}, withMetrics(s.metrics, toolNameDescribeTrace, withTracing(s.tracer, toolNameDescribeTrace, handleDescribeTrace)))
	s.track(toolNameDescribeTrace)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        toolNameListInteresting,
		Description: "List the (key, time) pairs a reduceflow snapshot still carries as interesting between rounds.",
	}, withMetrics(s.metrics, toolNameListInteresting, withTracing(s.tracer, toolNameListInteresting, handleListInteresting)))
	s.track(toolNameListInteresting)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        toolNameCapabilityFrontier,
		Description: "Report the capability frontier (the antichain of times a reduceflow snapshot has advanced to).",
	}, withMetrics(s.metrics, toolNameCapabilityFrontier, withTracing(s.tracer, toolNameCapabilityFrontier, handleCapabilityFrontier)))
	s.track(toolNameCapabilityFrontier)
}

func (s *Server) track(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

const mcpSpanPrefix = "mcp."

// withTracing wraps a tool handler to start an OTel span per invocation and
// append the trace ID to the response content when sampled. A nil tracer
// returns handler unchanged.
func withTracing[Input any](
	tracer trace.Tracer, toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			result.Content = append(result.Content, &mcpsdk.TextContent{Text: "trace_id=" + sc.TraceID().String()})
		}

		return result, output, err
	}
}

// withMetrics wraps a tool handler to record RED metrics per invocation. A
// nil metrics recorder returns handler unchanged.
func withMetrics[Input any](
	metrics *observability.REDMetrics, toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if metrics == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		done := metrics.TrackInflight(ctx, mcpSpanPrefix+toolName)
		defer done()

		result, output, err := handler(ctx, req, input)

		status := "ok"
		if err != nil || (result != nil && result.IsError) {
			status = "error"
		}

		metrics.RecordRequest(ctx, mcpSpanPrefix+toolName, status, time.Since(start))

		return result, output, err
	}
}

// Run serves the registered tools over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.inner.Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp: run server: %w", err)
	}

	return nil
}
