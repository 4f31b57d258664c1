package commands

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/client"
	"github.com/nimeshabuddhika/churnshield/pkg/dataset"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type batchOptions struct {
	file    string
	outPath string
	workers int
	rps     int
	burst   int
	limit   int
}

type batchResult struct {
	row     dataset.Row
	res     views.PredictionResult
	err     error
	invalid bool // rejected locally, never sent
}

// batchScorer fans rows out to a fixed worker pool; outbound calls are throttled by a token bucket.
type batchScorer struct {
	api     *client.Client
	logger  *zap.Logger
	workers int
	limiter *rate.Limiter

	sent    int64
	ok      int64
	fail    int64
	invalid int64
}

func (c *cli) batchCmd() *cobra.Command {
	o := batchOptions{}
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Score every customer of a Telco CSV against the API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.file == "" {
				return errors.New("--file is required")
			}
			if o.workers <= 0 || o.rps <= 0 {
				return errors.New("--workers and --rps must be positive")
			}
			rows, err := dataset.LoadFile(o.file)
			if err != nil {
				return err
			}
			if o.limit > 0 && o.limit < len(rows) {
				rows = rows[:o.limit]
			}
			burst := o.burst
			if burst <= 0 {
				burst = o.rps
			}
			s := &batchScorer{
				api:     c.api(),
				logger:  c.logger,
				workers: o.workers,
				limiter: rate.NewLimiter(rate.Limit(o.rps), burst),
			}

			start := time.Now()
			results, runErr := s.Run(ctxOf(cmd), rows)
			c.logger.Debug("batch_completed",
				zap.Duration("duration", time.Since(start)),
				zap.Int64("sent", atomic.LoadInt64(&s.sent)),
				zap.Int64("success", atomic.LoadInt64(&s.ok)),
				zap.Int64("failed", atomic.LoadInt64(&s.fail)),
				zap.Int64("invalid", atomic.LoadInt64(&s.invalid)),
			)
			// the per-row report matters most when nothing scored
			printBatchSummary(cmd, summarizeBatch(results))
			if o.outPath != "" {
				if err := writeBatchCSV(o.outPath, results); err != nil {
					return errors.Join(runErr, err)
				}
			}
			return runErr
		},
	}
	cmd.Flags().StringVarP(&o.file, "file", "f", "", "Telco customer CSV")
	cmd.Flags().StringVarP(&o.outPath, "out", "o", "", "write per-customer results as CSV")
	cmd.Flags().IntVar(&o.workers, "workers", 4, "max in-flight requests")
	cmd.Flags().IntVar(&o.rps, "rps", 10, "requests per second")
	cmd.Flags().IntVar(&o.burst, "burst", 0, "limiter burst (0 => rps)")
	cmd.Flags().IntVar(&o.limit, "limit", 0, "score only the first N customers")
	return cmd
}

// Run scores rows and returns results in input order. Cancelling ctx stops enqueueing;
// rows that were never sent carry the context error.
func (s *batchScorer) Run(ctx context.Context, rows []dataset.Row) ([]batchResult, error) {
	results := make([]batchResult, len(rows))
	jobs := make(chan int, min(len(rows), 1000))

	var wg sync.WaitGroup
	wg.Add(s.workers)
	for i := 0; i < s.workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx].row = rows[idx]
				if err := client.ValidateRecord(rows[idx].Record); err != nil {
					results[idx].err, results[idx].invalid = err, true
					atomic.AddInt64(&s.invalid, 1)
					continue
				}
				if err := s.limiter.Wait(ctx); err != nil {
					results[idx].err = err
					atomic.AddInt64(&s.fail, 1)
					continue
				}
				results[idx].res, results[idx].err = s.score(ctx, rows[idx].Record)
			}
		}()
	}

enqueue:
	for i := range rows {
		select {
		case <-ctx.Done():
			for j := i; j < len(rows); j++ {
				results[j] = batchResult{row: rows[j], err: ctx.Err()}
			}
			break enqueue
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if atomic.LoadInt64(&s.ok) == 0 && len(rows) > 0 {
		return results, fmt.Errorf("no customer could be scored: %w", firstError(results))
	}
	return results, nil
}

func (s *batchScorer) score(ctx context.Context, record views.CustomerRecord) (views.PredictionResult, error) {
	atomic.AddInt64(&s.sent, 1)
	res, err := s.api.Predict(ctx, record)
	if err != nil {
		atomic.AddInt64(&s.fail, 1)
		s.logger.Warn("batch_predict_failed", zap.String("customer_id", record.CustomerID), zap.Error(err))
		return res, err
	}
	atomic.AddInt64(&s.ok, 1)
	return res, nil
}

func firstError(results []batchResult) error {
	for _, r := range results {
		if r.err != nil {
			return r.err
		}
	}
	return errors.New("unknown error")
}

type batchSummary struct {
	Scored   int
	Failed   int
	Invalid  int
	ByRisk   map[pkg.RiskLevel]int
	Correct  int // prediction matches the observed Churn label
	Churners int
}

func summarizeBatch(results []batchResult) batchSummary {
	s := batchSummary{ByRisk: map[pkg.RiskLevel]int{}}
	for _, r := range results {
		if r.invalid {
			s.Invalid++
			continue
		}
		if r.err != nil {
			s.Failed++
			continue
		}
		s.Scored++
		s.ByRisk[r.res.RiskLevel]++
		if r.row.Churned {
			s.Churners++
		}
		if r.res.ChurnPrediction == r.row.Churned {
			s.Correct++
		}
	}
	return s
}

func printBatchSummary(cmd *cobra.Command, s batchSummary) {
	w := out(cmd)
	fmt.Fprintf(w, "Scored: %d  Failed: %d  Invalid: %d\n", s.Scored, s.Failed, s.Invalid)
	fmt.Fprintf(w, "High: %d  Medium: %d  Low: %d\n",
		s.ByRisk[pkg.RiskLevelHigh], s.ByRisk[pkg.RiskLevelMedium], s.ByRisk[pkg.RiskLevelLow])
	if s.Scored > 0 {
		fmt.Fprintf(w, "Agreement with observed churn: %.1f%% (%d churners)\n",
			float64(s.Correct)*100/float64(s.Scored), s.Churners)
	}
}

func writeBatchCSV(path string, results []batchResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	_ = w.Write([]string{"customer_id", "churn_probability", "risk_level", "churn_prediction", "churned", "error"})
	for _, r := range results {
		rec := []string{r.row.Record.CustomerID, "", "", "", strconv.FormatBool(r.row.Churned), ""}
		if r.err != nil {
			rec[5] = r.err.Error()
		} else {
			rec[1] = strconv.FormatFloat(r.res.ChurnProbability, 'f', 4, 64)
			rec[2] = string(r.res.RiskLevel)
			rec[3] = strconv.FormatBool(r.res.ChurnPrediction)
		}
		if err := w.Write(rec); err != nil {
			_ = f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
