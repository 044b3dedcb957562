package commands

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ivtree/pkg/interval"
	"github.com/Sumatoshi-tech/ivtree/pkg/safeconv"
)

// ErrInvalidBenchSize is returned for non-positive counts.
var ErrInvalidBenchSize = errors.New("count and queries must be positive")

const (
	defaultBenchCount   = 100000
	defaultBenchQueries = 10000
	defaultBenchSeed    = 1
	defaultBenchSpan    = 1 << 24
	defaultBenchWidth   = 1 << 10
)

type benchOptions struct {
	count   int
	queries int
	seed    uint64
	span    uint32
	width   uint32
	check   bool
	chart   string
}

type benchPhase struct {
	name    string
	ops     int
	elapsed time.Duration
}

type benchResult struct {
	phases []benchPhase
	hits   uint64
	height int
}

// NewBenchCommand creates the bench subcommand.
func NewBenchCommand() *cobra.Command {
	opts := benchOptions{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time insert, query, find, hibernate and remove on random intervals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := runBench(opts)
			if err != nil {
				return err
			}

			renderBench(cmd.OutOrStdout(), result)

			if opts.chart != "" {
				return writeBenchChart(opts.chart, result)
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.count, "count", "n", defaultBenchCount, "number of intervals")
	cmd.Flags().IntVarP(&opts.queries, "queries", "q", defaultBenchQueries, "number of overlap queries")
	cmd.Flags().Uint64Var(&opts.seed, "seed", defaultBenchSeed, "random seed")
	cmd.Flags().Uint32Var(&opts.span, "span", defaultBenchSpan, "largest low bound")
	cmd.Flags().Uint32Var(&opts.width, "width", defaultBenchWidth, "largest interval width")
	cmd.Flags().BoolVar(&opts.check, "check", false, "verify tree invariants after inserting")
	cmd.Flags().StringVar(&opts.chart, "chart", "", "write an HTML latency chart to this file")

	return cmd
}

func runBench(opts benchOptions) (benchResult, error) {
	if opts.count <= 0 || opts.queries <= 0 {
		return benchResult{}, fmt.Errorf("%w: count=%d queries=%d", ErrInvalidBenchSize, opts.count, opts.queries)
	}

	rng := rand.New(rand.NewPCG(opts.seed, opts.seed))
	random := func() (interval.Bound, interval.Bound) {
		low := rng.Uint32N(max(opts.span, 1))

		high := low + rng.Uint32N(max(opts.width, 1))
		if high < low {
			high = safeconv.MaxUint32
		}

		return low, high
	}

	arena := interval.NewArena()
	tree := interval.NewTree(arena)
	handles := make([]interval.Handle, opts.count)

	var result benchResult

	timed := func(name string, ops int, fn func() error) error {
		start := time.Now()
		err := fn()
		result.phases = append(result.phases, benchPhase{name: name, ops: ops, elapsed: time.Since(start)})

		return err
	}

	err := timed("insert", opts.count, func() error {
		for idx := range handles {
			h, allocErr := arena.Alloc(random())
			if allocErr != nil {
				return allocErr
			}

			tree.Insert(h)
			handles[idx] = h
		}

		return nil
	})
	if err != nil {
		return benchResult{}, err
	}

	result.height = tree.Height()

	if opts.check {
		err = tree.Check()
		if err != nil {
			return benchResult{}, err
		}
	}

	_ = timed("query", opts.queries, func() error {
		var it interval.Iterator

		for range opts.queries {
			low, high := random()
			for _, ok := tree.IterFirst(&it, low, high); ok; _, ok = it.Next() {
				result.hits++
			}
		}

		return nil
	})

	_ = timed("find", opts.queries, func() error {
		for range opts.queries {
			tree.Find(random())
		}

		return nil
	})

	err = timed("hibernate", 1, arena.Hibernate)
	if err != nil {
		return benchResult{}, err
	}

	err = timed("boot", 1, arena.Boot)
	if err != nil {
		return benchResult{}, err
	}

	_ = timed("remove", opts.count, func() error {
		for _, h := range handles {
			tree.Remove(h)
		}

		return nil
	})

	return result, nil
}

func renderBench(w io.Writer, result benchResult) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Phase", "Ops", "Total", "Per op", "Rate"})

	for _, phase := range result.phases {
		perOp := phase.elapsed / time.Duration(max(phase.ops, 1))
		rate := float64(phase.ops) / max(phase.elapsed.Seconds(), 1e-9)

		tbl.AppendRow(table.Row{
			phase.name,
			humanize.Comma(int64(phase.ops)),
			phase.elapsed.Round(time.Microsecond),
			perOp,
			humanize.SIWithDigits(rate, 1, "ops/s"),
		})
	}

	tbl.AppendFooter(table.Row{
		"hits", humanize.Comma(safeconv.SafeInt64(result.hits)),
		"height", result.height, "",
	})
	tbl.Render()
}
