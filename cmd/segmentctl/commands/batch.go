package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"segment_server/core/domain"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Segment the whole file in one run",
	Long: `Segment every customer in the file with a single request. Files with
more customers than the cluster threshold are grouped with k-means unless
--depth basic is given.`,
	RunE: runBatch,
}

func runBatch(cmd *cobra.Command, _ []string) error {
	if err := requireInputFile(); err != nil {
		return err
	}
	ds, err := LoadDataset(inputFile)
	if err != nil {
		return err
	}
	svc, err := newService(ds)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	spinner := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(fmt.Sprintf("segmenting %d customers", ds.Len())),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = spinner.Add(1)
			}
		}
	}()

	resp := svc.SegmentCustomers(ctx, &domain.SegmentationRequest{
		AnalysisDepth:      domain.ParseAnalysisDepth(depth),
		ForceRecalculation: true,
	})
	close(done)
	_ = spinner.Finish()

	if !resp.Success {
		return fmt.Errorf("segmentation failed: %s", resp.Error)
	}
	if outputFile != "" {
		return writeJSON(outputFile, resp)
	}

	printStatistics(cmd, resp)
	return nil
}

func printStatistics(cmd *cobra.Command, resp *domain.SegmentationResponse) {
	out := cmd.OutOrStdout()
	stats := resp.Statistics
	fmt.Fprintf(out, "customers: %d  average confidence: %.3f  time: %dms\n",
		stats.TotalCustomers, stats.AverageConfidence, resp.ProcessingTimeMs)
	if c := resp.Clustering; c != nil {
		fmt.Fprintf(out, "clusters: k=%d iterations=%d converged=%v quality=%.3f silhouette=%.3f\n",
			c.K, c.Iterations, c.Converged, c.QualityScore, c.Silhouette)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEGMENT\tCOUNT\tSHARE")
	for _, share := range stats.SegmentDistribution {
		if share.Count == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%.1f%%\n", share.SegmentName, share.Count, share.Percentage)
	}
	_ = w.Flush()

	if len(resp.Failed) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d customers failed: %v\n", len(resp.Failed), resp.Failed)
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}
