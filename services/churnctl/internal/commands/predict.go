package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nimeshabuddhika/churnshield/pkg/client"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *cli) predictCmd() *cobra.Command {
	var file, saveTo string
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score a customer record (JSON file)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				return errors.New("--file is required")
			}
			b, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var record views.CustomerRecord
			if err := json.Unmarshal(b, &record); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			res, err := c.api().Predict(ctxOf(cmd), record)
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Customer %s\n", res.CustomerID)
			fmt.Fprintf(out(cmd), "Churn risk: %d%% (%s)\n", client.DisplayPercent(res.ChurnProbability), res.RiskLevel)
			if len(res.Explanations) > 0 {
				fmt.Fprintln(out(cmd), "Top factors:")
				for _, e := range res.Explanations {
					fmt.Fprintf(out(cmd), "  %-40s %+.4f\n", e.Feature, e.Impact)
				}
			}
			if saveTo != "" {
				if err := writeReportInput(saveTo, b, res); err != nil {
					return err
				}
				c.logger.Debug("prediction_saved", zap.String("path", saveTo))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "customer record JSON")
	cmd.Flags().StringVarP(&saveTo, "save", "s", "", "write the result merged with the record, ready for `report`")
	return cmd
}

// writeReportInput merges the record attributes with the result, the way the dashboard
// passes both to the report endpoint.
func writeReportInput(path string, record []byte, res views.PredictionResult) error {
	merged := map[string]any{}
	if err := json.Unmarshal(record, &merged); err != nil {
		return err
	}
	rb, err := json.Marshal(res)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(rb, &merged); err != nil {
		return err
	}
	b, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o644)
}

func (c *cli) reportCmd() *cobra.Command {
	var file, output string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Download a PDF report for a prediction result (JSON file)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				return errors.New("--file is required")
			}
			b, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var data map[string]any
			if err := json.Unmarshal(b, &data); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			pdf, filename, err := c.api().Report(ctxOf(cmd), data)
			if err != nil {
				return err
			}
			if output == "" {
				output = filename
			}
			if err := os.WriteFile(output, pdf, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Report saved to %s (%d bytes)\n", output, len(pdf))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "prediction result JSON")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default: server-suggested filename)")
	return cmd
}
