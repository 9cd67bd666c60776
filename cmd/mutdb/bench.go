package main

import (
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"mutdb/internal/model"
)

type benchResult struct {
	TotalOps      int
	SuccessfulOps int
	FailedOps     int
	Duration      time.Duration
	OpsPerSec     float64
	AvgLatency    time.Duration
	P50Latency    time.Duration
	P99Latency    time.Duration
	MaxLatency    time.Duration
}

func newBenchCmd(opts *rootOptions) *cobra.Command {
	var ops, concurrency int

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure upsert and get latency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ops < 1 || concurrency < 1 {
				return fmt.Errorf("--ops and --concurrency must be positive")
			}

			return opts.withStore(func(rs rowStore) error {
				out := cmd.OutOrStdout()
				ctx := cmd.Context()

				fmt.Fprintf(out, "Upserts (%d operations, %d goroutines)\n", ops, concurrency)
				printBenchResult(out, runBench(ops, concurrency, func(i int) error {
					return rs.Upsert(ctx, benchAccount(i))
				}))

				fmt.Fprintf(out, "\nGets (%d operations, %d goroutines)\n", ops, concurrency)
				printBenchResult(out, runBench(ops, concurrency, func(i int) error {
					_, err := rs.Get(ctx, benchAccount(i).ID)
					return err
				}))

				return nil
			})
		},
	}

	cmd.Flags().IntVar(&ops, "ops", 1000, "operations per phase")
	cmd.Flags().IntVar(&concurrency, "concurrency", 10, "concurrent workers")

	return cmd
}

func benchAccount(i int) model.Account {
	return model.Account{
		ID:       fmt.Sprintf("bench_%d", i),
		Amount:   int64(i),
		Currency: "USD",
	}
}

// runBench calls op(i) for i in [0, totalOps) spread over concurrency workers.
func runBench(totalOps, concurrency int, op func(i int) error) benchResult {
	start := time.Now()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		failed    int
		latencies = make([]time.Duration, 0, totalOps)
	)

	jobs := make(chan int)
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				opStart := time.Now()
				err := op(i)
				latency := time.Since(opStart)

				mu.Lock()
				if err != nil {
					failed++
				}
				latencies = append(latencies, latency)
				mu.Unlock()
			}
		}()
	}
	for i := 0; i < totalOps; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	duration := time.Since(start)
	return summarize(totalOps, failed, duration, latencies)
}

func summarize(totalOps, failed int, duration time.Duration, latencies []time.Duration) benchResult {
	res := benchResult{
		TotalOps:      totalOps,
		SuccessfulOps: totalOps - failed,
		FailedOps:     failed,
		Duration:      duration,
	}
	if duration > 0 {
		res.OpsPerSec = float64(res.SuccessfulOps) / duration.Seconds()
	}
	if len(latencies) == 0 {
		return res
	}

	slices.Sort(latencies)
	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	res.AvgLatency = sum / time.Duration(len(latencies))
	res.P50Latency = latencies[len(latencies)/2]
	res.P99Latency = latencies[(len(latencies)*99)/100]
	res.MaxLatency = latencies[len(latencies)-1]

	return res
}

func printBenchResult(w io.Writer, r benchResult) {
	fmt.Fprintf(w, "  Total Operations: %d\n", r.TotalOps)
	fmt.Fprintf(w, "  Successful: %d\n", r.SuccessfulOps)
	fmt.Fprintf(w, "  Failed: %d\n", r.FailedOps)
	fmt.Fprintf(w, "  Duration: %v\n", r.Duration)
	fmt.Fprintf(w, "  Operations/sec: %.2f\n", r.OpsPerSec)
	fmt.Fprintf(w, "  Avg Latency: %v\n", r.AvgLatency)
	fmt.Fprintf(w, "  P50 Latency: %v\n", r.P50Latency)
	fmt.Fprintf(w, "  P99 Latency: %v\n", r.P99Latency)
	fmt.Fprintf(w, "  Max Latency: %v\n", r.MaxLatency)
}
