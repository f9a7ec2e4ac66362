package worker

import (
	"context"
	"errors"
	"fmt"

	"segment_server/core/domain"
	"segment_server/core/port/in"
	"segment_server/pkg/logger"
)

// ErrInvalidJob marks jobs that can never succeed and are not retried.
var ErrInvalidJob = errors.New("invalid segmentation job")

// Handler runs one segmentation job against the service.
type Handler struct {
	svc in.SegmentationService
}

func NewHandler(svc in.SegmentationService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Process(ctx context.Context, msg *Message) error {
	job := msg.Job
	if job == nil || (!job.All && len(job.CustomerIDs) == 0) {
		return fmt.Errorf("%w: no customers named", ErrInvalidJob)
	}

	req := &domain.SegmentationRequest{
		AnalysisDepth:      domain.ParseAnalysisDepth(string(job.AnalysisDepth)),
		ForceRecalculation: job.ForceRecalculation,
	}
	if !job.All {
		req.CustomerIDs = job.CustomerIDs
	}

	resp := h.svc.SegmentCustomers(ctx, req)
	if !resp.Success {
		return fmt.Errorf("job %s: %s", job.JobID, resp.Error)
	}

	logger.WithFields(map[string]any{
		"job_id":    job.JobID,
		"customers": len(resp.Assignments),
		"failed":    len(resp.Failed),
		"ms":        resp.ProcessingTimeMs,
	}).Info("segmentation job completed")
	return nil
}
