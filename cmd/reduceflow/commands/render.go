package commands

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/spf13/cobra"

	"github.com/flowcore/differential/internal/diff"
	"github.com/flowcore/differential/internal/lattice"
	"github.com/flowcore/differential/internal/snapshot"
)

// RenderCommand holds the flags for `reduceflow render`.
type RenderCommand struct {
	snapshotPath string
	outPath      string
}

// NewRenderCommand builds the `render` subcommand.
func NewRenderCommand() *cobra.Command {
	rc := &RenderCommand{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render an HTML report of a snapshot's interesting-set and frontier size",
		RunE:  rc.run,
	}

	cmd.Flags().StringVar(&rc.snapshotPath, "snapshot", "", "Path to a reduceflow snapshot file")
	cmd.Flags().StringVar(&rc.outPath, "out", "report.html", "Path to write the HTML report to")
	cmd.MarkFlagRequired("snapshot")

	return cmd
}

func (rc *RenderCommand) run(_ *cobra.Command, _ []string) error {
	r := snapshot.NewReader()

	st, err := snapshot.ReadState[string, float64, lattice.Nat, diff.Int, float64](r, rc.snapshotPath)
	if err != nil {
		return fmt.Errorf("render: read %s: %w", rc.snapshotPath, err)
	}

	countsByTime := map[lattice.Nat]int{}
	for _, kt := range st.Interesting {
		countsByTime[kt.Time]++
	}

	times := make([]lattice.Nat, 0, len(countsByTime))
	for t := range countsByTime {
		times = append(times, t)
	}

	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	xAxis := make([]string, 0, len(times))
	interestingSeries := make([]opts.LineData, 0, len(times))

	for _, t := range times {
		xAxis = append(xAxis, t.String())
		interestingSeries = append(interestingSeries, opts.LineData{Value: countsByTime[t]})
	}

	frontierSeries := make([]opts.LineData, len(times))
	for i := range frontierSeries {
		frontierSeries[i] = opts.LineData{Value: len(st.LowerElems)}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "reduceflow snapshot",
			Subtitle: rc.snapshotPath,
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "count"}),
	)

	line.SetXAxis(xAxis).
		AddSeries("interesting set size", interestingSeries, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)})).
		AddSeries("capability frontier size", frontierSeries)

	f, err := os.Create(rc.outPath)
	if err != nil {
		return fmt.Errorf("render: create %s: %w", rc.outPath, err)
	}
	defer f.Close()

	if err := line.Render(f); err != nil {
		return fmt.Errorf("render: write chart: %w", err)
	}

	return nil
}
