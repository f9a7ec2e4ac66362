package segmentation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"segment_server/core/domain"
	"segment_server/core/port/in"
	"segment_server/core/port/out"
	"segment_server/pkg/logger"
)

var (
	ErrInvalidRequest = errors.New("invalid segmentation request")
	ErrNoCustomers    = errors.New("no customers to segment")
	ErrAllFailed      = errors.New("segmentation failed for every customer")
)

type Config struct {
	// ClusterThreshold is the batch size above which non-basic requests are clustered.
	ClusterThreshold int
	CacheTTL         time.Duration
	AccessorTimeout  time.Duration
	AdvisoryTimeout  time.Duration
	KMeans           KMeansConfig
}

func DefaultConfig() Config {
	return Config{
		ClusterThreshold: 50,
		CacheTTL:         DefaultCacheTTL,
		AccessorTimeout:  3 * time.Second,
		AdvisoryTimeout:  5 * time.Second,
		KMeans:           DefaultKMeansConfig(),
	}
}

// Deps holds the collaborators of the service. Only Purchases is required.
type Deps struct {
	Purchases out.PurchaseAccessor
	Customers out.CustomerLister
	Cache     out.CacheStore
	Advisory  out.AdvisoryClassifier
	Snapshots out.SnapshotRepository
	Emitter   *Emitter
}

// Service is the segmentation orchestrator.
type Service struct {
	cfg Config

	purchases out.PurchaseAccessor
	customers out.CustomerLister
	snapshots out.SnapshotRepository
	cache     *AssignmentCache
	emitter   *Emitter

	catalog  *Catalog
	rules    Classifier
	advisory Classifier
	kmeans   *KMeans

	now func() time.Time
}

var _ in.SegmentationService = (*Service)(nil)

func NewService(deps *Deps, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.ClusterThreshold <= 0 {
		cfg.ClusterThreshold = def.ClusterThreshold
	}
	if cfg.AccessorTimeout <= 0 {
		cfg.AccessorTimeout = def.AccessorTimeout
	}
	if cfg.AdvisoryTimeout <= 0 {
		cfg.AdvisoryTimeout = def.AdvisoryTimeout
	}

	return &Service{
		cfg:       cfg,
		purchases: deps.Purchases,
		customers: deps.Customers,
		snapshots: deps.Snapshots,
		cache:     NewAssignmentCache(deps.Cache, cfg.CacheTTL),
		emitter:   deps.Emitter,
		catalog:   NewCatalog(time.Now()),
		rules:     NewRuleClassifier(),
		advisory:  NewAdvisoryClassifier(deps.Advisory, cfg.AdvisoryTimeout),
		kmeans:    NewKMeans(cfg.KMeans),
		now:       time.Now,
	}
}

// WithClock replaces the time source used for recency and timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Catalog() *Catalog { return s.catalog }

func (s *Service) Segments() []domain.Segment { return s.catalog.List() }

func (s *Service) classifierFor(depth domain.AnalysisDepth) Classifier {
	if depth == domain.AnalysisBasic {
		return s.rules
	}
	return s.advisory
}

// =============================================================================
// Single customer
// =============================================================================

// SegmentOne classifies one customer and records the result.
func (s *Service) SegmentOne(ctx context.Context, customerID string, depth domain.AnalysisDepth) (*domain.SegmentAssignment, error) {
	purchases, err := s.fetchPurchases(ctx, customerID)
	if err != nil {
		return nil, err
	}

	features := ExtractFeatures(customerID, purchases, s.now())
	op := s.classifierFor(depth).Classify(ctx, &ClassifierInput{
		CustomerID: customerID,
		Features:   features,
		Purchases:  purchases,
	})

	a := &domain.SegmentAssignment{
		CustomerID:  customerID,
		SegmentID:   op.SegmentID,
		SegmentName: s.catalog.Name(op.SegmentID),
		Confidence:  op.Confidence,
		Source:      op.Source,
		AssignedAt:  s.now(),
		Features:    features,
	}
	s.commit(ctx, a)
	return a, nil
}

func (s *Service) fetchPurchases(ctx context.Context, customerID string) ([]domain.Purchase, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.AccessorTimeout)
	defer cancel()

	purchases, err := s.purchases.GetPurchases(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("get purchases for %s: %w", customerID, err)
	}
	return purchases, nil
}

// commit compares against the cached assignment, updates the catalog and
// cache, and enqueues events. It never fails the caller.
func (s *Service) commit(ctx context.Context, a *domain.SegmentAssignment) {
	prior := s.cache.Get(ctx, a.CustomerID)

	var migration *domain.SegmentMigration
	if prior != nil && prior.SegmentID != a.SegmentID {
		prev := prior.SegmentID
		reason := MigrationReason(prev, a.SegmentID, a.Features)
		a.PreviousSegmentID = &prev
		a.MigrationReason = &reason
		migration = &domain.SegmentMigration{
			CustomerID:  a.CustomerID,
			FromSegment: prev,
			ToSegment:   a.SegmentID,
			Reason:      reason,
			Confidence:  a.Confidence,
			OccurredAt:  a.AssignedAt,
		}
		s.catalog.RecordDeparture(prev, a.AssignedAt)
	}

	s.catalog.Record(a.SegmentID, a.Features, a.AssignedAt)
	s.cache.Put(ctx, a)

	if prior == nil || migration != nil {
		s.emitter.EmitUpdate(s.updateEvent(a), migration)
	}
}

func (s *Service) updateEvent(a *domain.SegmentAssignment) *domain.SegmentUpdateEvent {
	return &domain.SegmentUpdateEvent{
		EventID:           uuid.NewString(),
		EventType:         domain.EventTypeSegmentUpdate,
		CustomerID:        a.CustomerID,
		PreviousSegment:   a.PreviousSegmentID,
		NewSegment:        a.SegmentID,
		NewSegmentName:    a.SegmentName,
		SegmentationScore: a.Confidence,
		ReasonCodes:       ReasonCodes(a),
		Confidence:        a.Confidence,
		ModelVersion:      domain.ModelVersion,
		Timestamp:         a.AssignedAt,
	}
}

// =============================================================================
// Batches
// =============================================================================

// prefetch loads every history in one call when the accessor supports it.
// A nil result means the caller loads customers one by one.
func (s *Service) prefetch(ctx context.Context, customerIDs []string) map[string][]domain.Purchase {
	batch, ok := s.purchases.(out.BatchPurchaseAccessor)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.AccessorTimeout)
	defer cancel()

	histories, err := batch.GetPurchasesBatch(ctx, customerIDs)
	if err != nil {
		logger.WithError(err).Warn("batch purchase load failed, loading customers one by one")
		return nil
	}
	return histories
}

// SegmentMany classifies a batch. Large non-basic batches are clustered.
// Customers whose purchases cannot be loaded are skipped and returned as failed.
func (s *Service) SegmentMany(ctx context.Context, customerIDs []string, depth domain.AnalysisDepth) ([]*domain.SegmentAssignment, []string, *domain.ClusteringResult, error) {
	if len(customerIDs) > s.cfg.ClusterThreshold && depth != domain.AnalysisBasic {
		return s.segmentByClusters(ctx, customerIDs)
	}

	assignments := make([]*domain.SegmentAssignment, 0, len(customerIDs))
	var failed []string
	for _, id := range customerIDs {
		if err := ctx.Err(); err != nil {
			return assignments, failed, nil, err
		}
		a, err := s.SegmentOne(ctx, id, depth)
		if err != nil {
			logger.WithField("customer_id", id).WithError(err).Warn("skipping customer")
			failed = append(failed, id)
			continue
		}
		assignments = append(assignments, a)
	}
	if len(assignments) == 0 && len(failed) > 0 {
		return nil, failed, nil, ErrAllFailed
	}
	return assignments, failed, nil, nil
}

func (s *Service) segmentByClusters(ctx context.Context, customerIDs []string) ([]*domain.SegmentAssignment, []string, *domain.ClusteringResult, error) {
	now := s.now()
	features := make(map[string]*domain.CustomerFeatures, len(customerIDs))
	ids := make([]string, 0, len(customerIDs))
	vectors := make([][]float64, 0, len(customerIDs))
	var failed []string

	preloaded := s.prefetch(ctx, customerIDs)
	for _, id := range customerIDs {
		if err := ctx.Err(); err != nil {
			return nil, failed, nil, err
		}
		var purchases []domain.Purchase
		var err error
		if preloaded != nil {
			var ok bool
			if purchases, ok = preloaded[id]; !ok {
				err = fmt.Errorf("get purchases for %s: %w", id, out.ErrCustomerNotFound)
			}
		} else {
			purchases, err = s.fetchPurchases(ctx, id)
		}
		if err != nil {
			logger.WithField("customer_id", id).WithError(err).Warn("skipping customer")
			failed = append(failed, id)
			continue
		}
		f := ExtractFeatures(id, purchases, now)
		features[id] = f
		ids = append(ids, id)
		vectors = append(vectors, FeatureVector(f))
	}
	if len(ids) == 0 {
		return nil, failed, nil, ErrAllFailed
	}

	k := ClusterCount(len(ids))
	if k < 1 {
		// Too few customers survived loading to cluster; use rules instead.
		assignments := make([]*domain.SegmentAssignment, 0, len(ids))
		for _, id := range ids {
			a := s.ruleAssignment(features[id], now)
			s.commit(ctx, a)
			assignments = append(assignments, a)
		}
		return assignments, failed, nil, nil
	}

	result := s.kmeans.Cluster(vectors, ids, k)
	logger.WithFields(map[string]any{
		"customers":  len(ids),
		"k":          result.K,
		"iterations": result.Iterations,
		"converged":  result.Converged,
		"quality":    result.QualityScore,
	}).Info("clustered batch")

	assignments := make([]*domain.SegmentAssignment, 0, len(ids))
	for _, c := range result.Clusters {
		if c.Size == 0 {
			continue
		}
		segmentID := MapClusterToSegment(c, features)
		confidence := ClusterConfidence(c)
		for _, id := range c.Members {
			a := &domain.SegmentAssignment{
				CustomerID:  id,
				SegmentID:   segmentID,
				SegmentName: s.catalog.Name(segmentID),
				Confidence:  confidence,
				Source:      domain.SourceCluster,
				AssignedAt:  now,
				Features:    features[id],
			}
			s.commit(ctx, a)
			assignments = append(assignments, a)
		}
	}
	return assignments, failed, result, nil
}

func (s *Service) ruleAssignment(f *domain.CustomerFeatures, at time.Time) *domain.SegmentAssignment {
	segmentID := ClassifyByRules(f)
	return &domain.SegmentAssignment{
		CustomerID:  f.CustomerID,
		SegmentID:   segmentID,
		SegmentName: s.catalog.Name(segmentID),
		Confidence:  DefaultConfidence,
		Source:      domain.SourceRules,
		AssignedAt:  at,
		Features:    f,
	}
}

// =============================================================================
// Request entry point
// =============================================================================

// SegmentCustomers handles a single customer, an explicit list, or every
// known customer. Failures are reported in the response, never returned.
func (s *Service) SegmentCustomers(ctx context.Context, req *domain.SegmentationRequest) *domain.SegmentationResponse {
	start := time.Now()
	if req == nil {
		return failure(ErrInvalidRequest, start)
	}
	depth := req.AnalysisDepth
	if depth == "" {
		depth = domain.AnalysisDetailed
	}

	if req.CustomerID != "" && !req.ForceRecalculation {
		if cached := s.cache.Get(ctx, req.CustomerID); cached != nil {
			logger.WithField("customer_id", req.CustomerID).Debug("using cached segmentation")
			cached.Source = domain.SourceCache
			return &domain.SegmentationResponse{
				Success:          true,
				Assignments:      []*domain.SegmentAssignment{cached},
				ProcessingTimeMs: time.Since(start).Milliseconds(),
			}
		}
	}

	var (
		assignments []*domain.SegmentAssignment
		failed      []string
		clustering  *domain.ClusteringResult
		err         error
	)
	switch {
	case req.CustomerID != "":
		var a *domain.SegmentAssignment
		if a, err = s.SegmentOne(ctx, req.CustomerID, depth); err == nil {
			assignments = []*domain.SegmentAssignment{a}
		}
	case len(req.CustomerIDs) > 0:
		assignments, failed, clustering, err = s.SegmentMany(ctx, req.CustomerIDs, depth)
	default:
		var ids []string
		if ids, err = s.listCustomers(ctx); err == nil {
			assignments, failed, clustering, err = s.SegmentMany(ctx, ids, depth)
		}
	}
	if err != nil {
		logger.WithContext(ctx).WithError(err).Error("segmentation failed")
		resp := failure(err, start)
		resp.Failed = failed
		return resp
	}

	now := s.now()
	stats := ComputeStatistics(assignments, s.catalog, now)
	elapsed := time.Since(start)

	s.emitter.EmitMetrics(domain.SegmentationMetrics{
		AnalysisDepth:     depth,
		CustomerCount:     len(assignments),
		ProcessingTime:    elapsed,
		AverageConfidence: stats.AverageConfidence,
		SegmentCounts:     segmentCounts(stats),
		Clustered:         clustering != nil,
	})
	s.saveSnapshot(ctx, depth, stats, elapsed, now)

	logger.WithFields(map[string]any{
		"customers": len(assignments),
		"failed":    len(failed),
	}).WithDuration(elapsed).Info("segmentation completed")

	return &domain.SegmentationResponse{
		Success:          true,
		Segments:         s.catalog.List(),
		Assignments:      assignments,
		Statistics:       stats,
		Clustering:       clustering,
		Failed:           failed,
		ProcessingTimeMs: elapsed.Milliseconds(),
	}
}

func (s *Service) listCustomers(ctx context.Context) ([]string, error) {
	if s.customers == nil {
		return nil, ErrNoCustomers
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.AccessorTimeout)
	defer cancel()

	ids, err := s.customers.ListCustomerIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrNoCustomers
	}
	return ids, nil
}

func (s *Service) saveSnapshot(ctx context.Context, depth domain.AnalysisDepth, stats *domain.SegmentationStatistics, elapsed time.Duration, now time.Time) {
	if s.snapshots == nil || stats.TotalCustomers == 0 {
		return
	}
	snap := &domain.SegmentationSnapshot{
		ID:            uuid.NewString(),
		AnalysisDepth: depth,
		Statistics:    stats,
		ProcessingMs:  elapsed.Milliseconds(),
		CreatedAt:     now,
	}
	if err := s.snapshots.SaveSnapshot(ctx, snap); err != nil {
		logger.WithError(err).Warn("failed to save segmentation snapshot")
	}
}

func failure(err error, start time.Time) *domain.SegmentationResponse {
	return &domain.SegmentationResponse{
		Success:          false,
		Error:            err.Error(),
		Err:              err,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
}

func segmentCounts(stats *domain.SegmentationStatistics) map[string]int {
	counts := make(map[string]int, len(stats.SegmentDistribution))
	for _, share := range stats.SegmentDistribution {
		counts[share.SegmentID] = share.Count
	}
	return counts
}

// =============================================================================
// Segment insights
// =============================================================================

func (s *Service) GetSegmentPerformance(_ context.Context, segmentID string) (*domain.SegmentPerformanceMetrics, error) {
	return s.catalog.Performance(segmentID, s.now())
}

// TrackMigration records a migration observed outside the engine.
func (s *Service) TrackMigration(_ context.Context, m domain.SegmentMigration) error {
	if m.CustomerID == "" || !domain.IsSegmentID(m.FromSegment) || !domain.IsSegmentID(m.ToSegment) {
		return fmt.Errorf("%w: migration needs a customer and two catalog segments", ErrInvalidRequest)
	}
	if m.OccurredAt.IsZero() {
		m.OccurredAt = s.now()
	}
	s.catalog.RecordDeparture(m.FromSegment, m.OccurredAt)
	s.emitter.EmitMigration(m)
	return nil
}

// SnapshotRepository exposes the configured snapshot store, or nil.
func (s *Service) SnapshotRepository() out.SnapshotRepository { return s.snapshots }
