package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/flowcore/differential/internal/diff"
	"github.com/flowcore/differential/internal/lattice"
	"github.com/flowcore/differential/internal/snapshot"
	"github.com/flowcore/differential/internal/trace"
)

// ExplainCommand holds the flags for `reduceflow explain`.
type ExplainCommand struct {
	snapshotA string
	snapshotB string
}

// NewExplainCommand builds the `explain` subcommand.
func NewExplainCommand() *cobra.Command {
	ec := &ExplainCommand{}

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Diff the output trace content of two reduceflow snapshots",
		RunE:  ec.run,
	}

	cmd.Flags().StringVar(&ec.snapshotA, "snapshot-a", "", "Path to the first snapshot")
	cmd.Flags().StringVar(&ec.snapshotB, "snapshot-b", "", "Path to the second snapshot")
	cmd.MarkFlagRequired("snapshot-a")
	cmd.MarkFlagRequired("snapshot-b")

	return cmd
}

func (ec *ExplainCommand) run(cmd *cobra.Command, _ []string) error {
	r := snapshot.NewReader()

	stA, err := snapshot.ReadState[string, float64, lattice.Nat, diff.Int, float64](r, ec.snapshotA)
	if err != nil {
		return fmt.Errorf("explain: read %s: %w", ec.snapshotA, err)
	}

	stB, err := snapshot.ReadState[string, float64, lattice.Nat, diff.Int, float64](r, ec.snapshotB)
	if err != nil {
		return fmt.Errorf("explain: read %s: %w", ec.snapshotB, err)
	}

	textA := dumpUpdates(stA.OutputUpdates)
	textB := dumpUpdates(stB.OutputUpdates)

	printDiff(cmd.OutOrStdout(), textA, textB)

	return nil
}

type dumpableUpdate struct {
	Key   string
	Value float64
	Time  lattice.Nat
	Diff  diff.Int
}

// dumpUpdates renders a snapshot's output trace as sorted "key value time
// diff" lines, the textual form explain diffs between two snapshots.
func dumpUpdates(updates []trace.Update[string, float64, lattice.Nat, diff.Int]) string {
	rows := make([]dumpableUpdate, 0, len(updates))
	for _, u := range updates {
		rows = append(rows, dumpableUpdate{Key: u.Key, Value: u.Value, Time: u.Time, Diff: u.Diff})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Key != rows[j].Key {
			return rows[i].Key < rows[j].Key
		}

		if rows[i].Value != rows[j].Value {
			return rows[i].Value < rows[j].Value
		}

		return rows[i].Time < rows[j].Time
	})

	var sb strings.Builder

	for _, r := range rows {
		fmt.Fprintf(&sb, "%s %g %s %d\n", r.Key, r.Value, r.Time.String(), r.Diff)
	}

	return sb.String()
}

func printDiff(w io.Writer, textA, textB string) {
	dmp := diffmatchpatch.New()

	diffs := dmp.DiffMain(textA, textB, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	fmt.Fprintln(w, dmp.DiffPrettyText(diffs))
}
