package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/flowcore/differential/internal/diff"
	"github.com/flowcore/differential/internal/engine"
	"github.com/flowcore/differential/internal/graphbuild"
	"github.com/flowcore/differential/internal/lattice"
	"github.com/flowcore/differential/internal/trace"
	"github.com/flowcore/differential/pkg/config"
	"github.com/flowcore/differential/pkg/observability"
)

// ErrInputRequired indicates `run` was invoked without --input.
var ErrInputRequired = errors.New("run: --input is required")

// ndjsonRow is one line of the NDJSON input format:
// {"key":..., "value":..., "time":..., "diff":...}.
type ndjsonRow struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
	Time  uint64  `json:"time"`
	Diff  int64   `json:"diff"`
}

// RunCommand holds the flags for `reduceflow run`.
type RunCommand struct {
	configFile string
	inputPath  string
	shards     int
}

// NewRunCommand builds the `run` subcommand.
func NewRunCommand() *cobra.Command {
	rc := &RunCommand{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a dataflow graph over an NDJSON input stream",
		RunE:  rc.run,
	}

	cmd.Flags().StringVar(&rc.configFile, "config", "", "Path to the reduceflow YAML config file")
	cmd.Flags().StringVar(&rc.inputPath, "input", "", "Path to an NDJSON input file")
	cmd.Flags().IntVar(&rc.shards, "shards", 1, "Number of independent engines to shard the input across by key")

	return cmd
}

func (rc *RunCommand) run(cmd *cobra.Command, _ []string) error {
	if rc.inputPath == "" {
		return ErrInputRequired
	}

	cfg, err := config.Load(rc.configFile)
	if err != nil {
		return fmt.Errorf("run: load config: %w", err)
	}

	providers, err := observability.Init(observabilityConfigFrom(cfg))
	if err != nil {
		return fmt.Errorf("run: init observability: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer func() {
		if shutdownErr := providers.Shutdown(ctx); shutdownErr != nil && providers.Logger != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	rows, err := readNDJSON(rc.inputPath)
	if err != nil {
		return fmt.Errorf("run: read input: %w", err)
	}

	metrics, err := observability.NewEngineMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("run: build engine metrics: %w", err)
	}

	shardCount := rc.shards
	if shardCount < 1 {
		shardCount = 1
	}

	final := map[string][]diff.Item[float64, diff.Int]{}

	for shard := 0; shard < shardCount; shard++ {
		shardRows := rowsForShard(rows, shard, shardCount)

		shardFinal, runErr := runShard(ctx, cfg.Graph.Path, shardRows, metrics, providers.Logger)
		if runErr != nil {
			return fmt.Errorf("run: shard %d: %w", shard, runErr)
		}

		for k, items := range shardFinal {
			final[k] = append(final[k], items...)
		}
	}

	printFinal(cmd.OutOrStdout(), final)

	return nil
}

// rowsForShard returns the rows assigned to shard out of shardCount,
// partitioned by a simple hash of the key: --shards N spawns N independent
// engines over a disjoint key range, concatenating output with no
// cross-shard ordering.
func rowsForShard(rows []ndjsonRow, shard, shardCount int) []ndjsonRow {
	if shardCount == 1 {
		return rows
	}

	var out []ndjsonRow

	for _, r := range rows {
		if keyShard(r.Key, shardCount) == shard {
			out = append(out, r)
		}
	}

	return out
}

func keyShard(key string, shardCount int) int {
	var h uint32

	for i := 0; i < len(key); i++ {
		h = h*31 + uint32(key[i])
	}

	return int(h % uint32(shardCount))
}

func runShard(
	ctx context.Context, graphPath string, rows []ndjsonRow,
	metrics *observability.EngineMetrics, logger *slog.Logger,
) (map[string][]diff.Item[float64, diff.Int], error) {
	built, err := graphbuild.ParseFile(graphPath)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	nodes, err := built.Graph.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile graph: %w", err)
	}

	wd := engine.NewWatchdog(0, logger)
	eng := engine.New(engine.Config{Nodes: nodes, Metrics: metrics, Watchdog: wd})

	byTime := groupByTime(rows)

	lower := lattice.New(lattice.Nat(0))

	for _, t := range sortedTimes(byTime) {
		upper := lattice.New(lattice.Nat(t + 1))
		group := byTime[t]

		b := trace.NewBuilder[string, float64, lattice.Nat, diff.Int](strLess, floatLess, natLess)
		for _, r := range group {
			b.Push(r.Key, r.Value, lattice.Nat(r.Time), diff.Int(r.Diff))
		}

		batch := b.Done(lower, upper, lower)

		if _, advErr := eng.Advance(ctx, func() error { return built.Source.Push(batch) }); advErr != nil {
			return nil, fmt.Errorf("advance round at time %d: %w", t, advErr)
		}

		lower = upper
	}

	return consolidateFinal(built.Sink.Output().Snapshot()), nil
}

func groupByTime(rows []ndjsonRow) map[uint64][]ndjsonRow {
	byTime := map[uint64][]ndjsonRow{}
	for _, r := range rows {
		byTime[r.Time] = append(byTime[r.Time], r)
	}

	return byTime
}

func sortedTimes(byTime map[uint64][]ndjsonRow) []uint64 {
	times := make([]uint64, 0, len(byTime))
	for t := range byTime {
		times = append(times, t)
	}

	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	return times
}

// consolidateFinal groups a fully-drained output trace's updates by key and
// consolidates each key's (value, diff) pairs, dropping entries that sum to
// zero — the current accumulated row set, the same shape
// internal/diff.Consolidate produces for one key's per-round deltas.
func consolidateFinal(updates []trace.Update[string, float64, lattice.Nat, diff.Int]) map[string][]diff.Item[float64, diff.Int] {
	byKey := map[string][]diff.Item[float64, diff.Int]{}
	for _, u := range updates {
		byKey[u.Key] = append(byKey[u.Key], diff.Item[float64, diff.Int]{Value: u.Value, Diff: u.Diff})
	}

	out := map[string][]diff.Item[float64, diff.Int]{}

	for k, items := range byKey {
		consolidated := diff.Consolidate(items, floatLess)
		if len(consolidated) > 0 {
			out[k] = consolidated
		}
	}

	return out
}

func readNDJSON(path string) ([]ndjsonRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var rows []ndjsonRow

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var row ndjsonRow
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("decode line: %w", err)
		}

		rows = append(rows, row)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}

	return rows, nil
}

func printFinal(w io.Writer, final map[string][]diff.Item[float64, diff.Int]) {
	keys := make([]string, 0, len(final))
	for k := range final {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Key", "Value", "Diff"})

	rowCount := 0

	for _, k := range keys {
		for _, item := range final[k] {
			deltaCell := fmt.Sprintf("%+d", item.Diff)
			if item.Diff > 0 {
				deltaCell = color.GreenString(deltaCell)
			} else if item.Diff < 0 {
				deltaCell = color.RedString(deltaCell)
			}

			tbl.AppendRow(table.Row{k, item.Value, deltaCell})
			rowCount++
		}
	}

	tbl.AppendFooter(table.Row{"Total", humanize.Comma(int64(rowCount)) + " rows", ""})
	tbl.Render()
}

func strLess(a, b string) bool { return a < b }

func floatLess(a, b float64) bool { return a < b }

func natLess(a, b lattice.Nat) bool { return a < b }
