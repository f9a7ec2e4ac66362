package out

import (
	"context"

	"segment_server/core/domain"
)

// NotificationSink delivers segment update events downstream.
type NotificationSink interface {
	Publish(ctx context.Context, event *domain.SegmentUpdateEvent) error
}

// SegmentationJob is an asynchronous batch segmentation request.
type SegmentationJob struct {
	JobID              string               `json:"job_id"`
	CustomerIDs        []string             `json:"customer_ids,omitempty"`
	All                bool                 `json:"all,omitempty"`
	AnalysisDepth      domain.AnalysisDepth `json:"analysis_depth"`
	ForceRecalculation bool                 `json:"force_recalculation"`
	RequestedBy        string               `json:"requested_by,omitempty"`
}

// JobProducer enqueues batch jobs for the worker.
type JobProducer interface {
	PublishSegmentationJob(ctx context.Context, job *SegmentationJob) error
}
