package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"segment_server/core/domain"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [customer-id...]",
	Short: "Classify customers one at a time",
	Long: `Classify each customer on its own with the rule or advisory
classifier. Without arguments every customer in the file is classified.`,
	RunE: runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
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

	ids := args
	if len(ids) == 0 {
		ids, _ = ds.ListCustomerIDs(cmd.Context())
	}
	analysis := domain.ParseAnalysisDepth(depth)

	bar := progressbar.NewOptions(len(ids),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("classifying"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		assignments []*domain.SegmentAssignment
		failed      []string
	)
	for _, id := range ids {
		resp := svc.SegmentCustomers(ctx, &domain.SegmentationRequest{
			CustomerID:    id,
			AnalysisDepth: analysis,
		})
		if resp.Success && len(resp.Assignments) == 1 {
			assignments = append(assignments, resp.Assignments[0])
		} else {
			failed = append(failed, id)
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	if outputFile != "" {
		return writeJSON(outputFile, map[string]any{
			"customer_assignments": assignments,
			"failed_customer_ids":  failed,
		})
	}
	printAssignments(cmd, assignments)
	if len(failed) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d customers failed: %v\n", len(failed), failed)
	}
	return nil
}

func printAssignments(cmd *cobra.Command, assignments []*domain.SegmentAssignment) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CUSTOMER\tSEGMENT\tCONFIDENCE\tSOURCE\tCHURN RISK")
	for _, a := range assignments {
		churn := ""
		if a.Features != nil {
			churn = string(a.Features.ChurnRisk)
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n", a.CustomerID, a.SegmentID, a.Confidence, a.Source, churn)
	}
	_ = w.Flush()
}
