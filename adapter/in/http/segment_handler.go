package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"segment_server/core/domain"
	"segment_server/core/port/in"
	"segment_server/core/port/out"
	"segment_server/infra/middleware"
	"segment_server/pkg/apperr"
	"segment_server/pkg/logger"
	"segment_server/pkg/metrics"
	"segment_server/pkg/response"
)

const maxBatchCustomers = 10000

// SegmentHandler serves the segmentation API.
type SegmentHandler struct {
	svc        in.SegmentationService
	jobs       out.JobProducer
	snapshots  out.SnapshotRepository
	migrations out.MigrationReader
	latency    *metrics.LatencyRegistry
}

// SegmentHandlerDeps lists the optional collaborators of the handler.
type SegmentHandlerDeps struct {
	Jobs       out.JobProducer
	Snapshots  out.SnapshotRepository
	Migrations out.MigrationReader
	Latency    *metrics.LatencyRegistry
}

func NewSegmentHandler(svc in.SegmentationService, deps SegmentHandlerDeps) *SegmentHandler {
	latency := deps.Latency
	if latency == nil {
		latency = metrics.NewLatencyRegistry(1000)
	}
	return &SegmentHandler{
		svc:        svc,
		jobs:       deps.Jobs,
		snapshots:  deps.Snapshots,
		migrations: deps.Migrations,
		latency:    latency,
	}
}

// Register registers segment routes. Rate-limited routes get extra handlers
// in front of them.
func (h *SegmentHandler) Register(router fiber.Router, limited ...fiber.Handler) {
	segments := router.Group("/segments")

	segments.Get("/", h.ListSegments)
	segments.Get("/latency", h.Latency)
	segments.Get("/snapshots/latest", h.LatestSnapshot)
	segments.Get("/customers/:customerId/migrations", h.CustomerMigrations)
	segments.Get("/:id/performance", h.Performance)

	segments.Post("/analyze", withLimits(limited, h.Analyze)...)
	segments.Post("/batch", withLimits(limited, h.EnqueueBatch)...)
	segments.Post("/migrations", h.TrackMigration)
}

func withLimits(limited []fiber.Handler, h fiber.Handler) []fiber.Handler {
	chain := make([]fiber.Handler, 0, len(limited)+1)
	chain = append(chain, limited...)
	return append(chain, h)
}

// =============================================================================
// Request types
// =============================================================================

type analyzeRequest struct {
	CustomerID         string   `json:"customer_id"`
	CustomerIDs        []string `json:"customer_ids"`
	AnalysisDepth      string   `json:"analysis_depth"`
	ForceRecalculation bool     `json:"force_recalculation"`
}

type batchRequest struct {
	CustomerIDs        []string `json:"customer_ids"`
	All                bool     `json:"all"`
	AnalysisDepth      string   `json:"analysis_depth"`
	ForceRecalculation bool     `json:"force_recalculation"`
}

type migrationRequest struct {
	CustomerID  string     `json:"customer_id"`
	FromSegment string     `json:"from_segment"`
	ToSegment   string     `json:"to_segment"`
	Reason      string     `json:"reason"`
	Confidence  float64    `json:"confidence"`
	OccurredAt  *time.Time `json:"occurred_at"`
}

func trimIDs(ids []string) []string {
	outIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			outIDs = append(outIDs, id)
		}
	}
	return outIDs
}

// =============================================================================
// Handlers
// =============================================================================

// ListSegments returns the catalog with its running statistics.
func (h *SegmentHandler) ListSegments(c *fiber.Ctx) error {
	segments := h.svc.Segments()
	return response.OKWithMeta(c, segments, &response.Meta{Total: len(segments)})
}

// Analyze runs segmentation synchronously.
func (h *SegmentHandler) Analyze(c *fiber.Ctx) error {
	var req analyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	ids := trimIDs(req.CustomerIDs)
	if len(ids) > maxBatchCustomers {
		return apperr.InvalidInput("customer_ids", "too many customers for a synchronous request")
	}

	depth := domain.ParseAnalysisDepth(req.AnalysisDepth)
	start := time.Now()
	resp := h.svc.SegmentCustomers(c.UserContext(), &domain.SegmentationRequest{
		CustomerID:         strings.TrimSpace(req.CustomerID),
		CustomerIDs:        ids,
		AnalysisDepth:      depth,
		ForceRecalculation: req.ForceRecalculation,
	})
	h.latency.Record("analyze_"+string(depth), time.Since(start))

	if !resp.Success {
		if resp.Err != nil {
			return toAppError(resp.Err)
		}
		return apperr.SegmentationFailed(resp.Error)
	}
	return response.OKWithMeta(c, resp, &response.Meta{
		Total:            len(resp.Assignments),
		ProcessingTimeMs: resp.ProcessingTimeMs,
	})
}

// EnqueueBatch publishes a segmentation job for the worker.
func (h *SegmentHandler) EnqueueBatch(c *fiber.Ctx) error {
	if h.jobs == nil {
		return apperr.Unavailable("batch queue")
	}

	var req batchRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	ids := trimIDs(req.CustomerIDs)
	if !req.All && len(ids) == 0 {
		return apperr.InvalidInput("customer_ids", "required unless all is set")
	}
	if len(ids) > maxBatchCustomers {
		return apperr.InvalidInput("customer_ids", "too many customers for one job")
	}
	if req.All {
		ids = nil
	}

	job := &out.SegmentationJob{
		JobID:              uuid.NewString(),
		CustomerIDs:        ids,
		All:                req.All,
		AnalysisDepth:      domain.ParseAnalysisDepth(req.AnalysisDepth),
		ForceRecalculation: req.ForceRecalculation,
		RequestedBy:        middleware.Subject(c),
	}
	if err := h.jobs.PublishSegmentationJob(c.UserContext(), job); err != nil {
		return apperr.ExternalError("batch queue", err)
	}

	logger.WithContext(c.UserContext()).
		WithField("job_id", job.JobID).
		WithField("customers", len(ids)).
		Info("segmentation job enqueued")

	return response.Accepted(c, fiber.Map{
		"job_id": job.JobID,
		"status": "queued",
	})
}

// Performance returns derived metrics for one segment.
func (h *SegmentHandler) Performance(c *fiber.Ctx) error {
	perf, err := h.svc.GetSegmentPerformance(c.UserContext(), c.Params("id"))
	if err != nil {
		return toAppError(err)
	}
	return response.OK(c, perf)
}

// TrackMigration records a migration observed by another system.
func (h *SegmentHandler) TrackMigration(c *fiber.Ctx) error {
	var req migrationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	m := domain.SegmentMigration{
		CustomerID:  strings.TrimSpace(req.CustomerID),
		FromSegment: req.FromSegment,
		ToSegment:   req.ToSegment,
		Reason:      req.Reason,
		Confidence:  req.Confidence,
	}
	if req.OccurredAt != nil {
		m.OccurredAt = req.OccurredAt.UTC()
	}
	if err := h.svc.TrackMigration(c.UserContext(), m); err != nil {
		return toAppError(err)
	}
	return response.Accepted(c, fiber.Map{"tracked": true})
}

// LatestSnapshot returns the statistics of the most recent run.
func (h *SegmentHandler) LatestSnapshot(c *fiber.Ctx) error {
	if h.snapshots == nil {
		return apperr.Unavailable("snapshot store")
	}
	snap, err := h.snapshots.LatestSnapshot(c.UserContext())
	if err != nil {
		return apperr.ExternalError("snapshot store", err)
	}
	if snap == nil {
		return apperr.NotFound("snapshot")
	}
	return response.OK(c, snap)
}

// CustomerMigrations returns a customer's migration trail, newest first.
func (h *SegmentHandler) CustomerMigrations(c *fiber.Ctx) error {
	if h.migrations == nil {
		return apperr.Unavailable("migration history")
	}
	customerID := strings.TrimSpace(c.Params("customerId"))
	if customerID == "" {
		return apperr.InvalidInput("customerId", "required")
	}
	limit := clampLimit(c.QueryInt("limit", 20), 20, 200)

	trail, err := h.migrations.CustomerMigrations(c.UserContext(), customerID, limit)
	if err != nil {
		return apperr.ExternalError("migration history", err)
	}
	return response.OKWithMeta(c, trail, &response.Meta{Total: len(trail)})
}

// Latency reports rolling latency percentiles per analysis depth.
func (h *SegmentHandler) Latency(c *fiber.Ctx) error {
	return response.OK(c, h.latency.AllStats())
}
