package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/flowcore/differential/internal/diff"
	"github.com/flowcore/differential/internal/lattice"
	"github.com/flowcore/differential/internal/reduce"
	"github.com/flowcore/differential/internal/snapshot"
)

// snapshotState is the CLI's one concrete snapshot instantiation: every
// reduceflow graph built via internal/graphbuild runs over string keys,
// float64 values, lattice.Nat time, diff.Int diffs, and float64 outputs, so
// that is the only shape these tools ever need to decode.
type snapshotState = reduce.State[string, float64, lattice.Nat, diff.Int, float64]

// ErrSnapshotPathRequired indicates a tool call omitted the required
// snapshot path.
var ErrSnapshotPathRequired = errors.New("mcp: snapshot_path is required")

// ToolOutput is the structured result every tool returns alongside its text
// content.
type ToolOutput struct {
	Data any `json:"data,omitempty"`
}

// SnapshotInput is the shared input shape for every tool in this package:
// all three operate on a snapshot file on disk rather than a live engine,
// since an MCP server is a separate process from a running `reduceflow run`.
type SnapshotInput struct {
	SnapshotPath string `json:"snapshot_path" jsonschema:"path to a reduceflow snapshot file"`
}

func readSnapshot(path string) (snapshotState, error) {
	if path == "" {
		return snapshotState{}, ErrSnapshotPathRequired
	}

	r := snapshot.NewReader()

	return snapshot.ReadState[string, float64, lattice.Nat, diff.Int, float64](r, path)
}

// DescribeTraceOutput summarizes a snapshot's output trace.
type DescribeTraceOutput struct {
	Keys          int      `json:"keys"`
	Rows          int      `json:"rows"`
	Times         []string `json:"times"`
	InterestingN  int      `json:"interesting_count"`
	CapabilityLen int      `json:"capability_frontier_size"`
}

func handleDescribeTrace(
	_ context.Context, _ *mcpsdk.CallToolRequest, input SnapshotInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	st, err := readSnapshot(input.SnapshotPath)
	if err != nil {
		return errorResult(err)
	}

	keys := map[string]struct{}{}
	times := map[lattice.Nat]struct{}{}

	for _, u := range st.OutputUpdates {
		keys[u.Key] = struct{}{}
		times[u.Time] = struct{}{}
	}

	sortedTimes := make([]lattice.Nat, 0, len(times))
	for t := range times {
		sortedTimes = append(sortedTimes, t)
	}

	sort.Slice(sortedTimes, func(i, j int) bool { return sortedTimes[i] < sortedTimes[j] })

	timeStrs := make([]string, 0, len(sortedTimes))
	for _, t := range sortedTimes {
		timeStrs = append(timeStrs, t.String())
	}

	return jsonResult(DescribeTraceOutput{
		Keys:          len(keys),
		Rows:          len(st.OutputUpdates),
		Times:         timeStrs,
		InterestingN:  len(st.Interesting),
		CapabilityLen: len(st.LowerElems),
	})
}

// InterestingEntry is one (key, time) pair still carried as interesting.
type InterestingEntry struct {
	Key  string `json:"key"`
	Time string `json:"time"`
}

func handleListInteresting(
	_ context.Context, _ *mcpsdk.CallToolRequest, input SnapshotInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	st, err := readSnapshot(input.SnapshotPath)
	if err != nil {
		return errorResult(err)
	}

	entries := make([]InterestingEntry, 0, len(st.Interesting))
	for _, kt := range st.Interesting {
		entries = append(entries, InterestingEntry{Key: kt.Key, Time: kt.Time.String()})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Key != entries[j].Key {
			return entries[i].Key < entries[j].Key
		}

		return entries[i].Time < entries[j].Time
	})

	return jsonResult(entries)
}

// CapabilityFrontierOutput reports the antichain of times a snapshot has
// advanced to.
type CapabilityFrontierOutput struct {
	Elements []string `json:"elements"`
}

func handleCapabilityFrontier(
	_ context.Context, _ *mcpsdk.CallToolRequest, input SnapshotInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	st, err := readSnapshot(input.SnapshotPath)
	if err != nil {
		return errorResult(err)
	}

	elems := make([]string, 0, len(st.LowerElems))
	for _, t := range st.LowerElems {
		elems = append(elems, t.String())
	}

	sort.Strings(elems)

	return jsonResult(CapabilityFrontierOutput{Elements: elems})
}

func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}, ToolOutput{}, nil
}

func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("mcp: encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, ToolOutput{Data: value}, nil
}
