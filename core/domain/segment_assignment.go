package domain

import "time"

// SegmentAssignment is the current segment of one customer. Only the latest
// assignment per customer is authoritative.
type SegmentAssignment struct {
	CustomerID        string            `json:"customer_id"`
	SegmentID         string            `json:"segment_id"`
	SegmentName       string            `json:"segment_name"`
	Confidence        float64           `json:"confidence"`
	Source            string            `json:"source"`
	AssignedAt        time.Time         `json:"assigned_at"`
	Features          *CustomerFeatures `json:"features"`
	PreviousSegmentID *string           `json:"previous_segment_id,omitempty"`
	MigrationReason   *string           `json:"migration_reason,omitempty"`
}

// Migrated reports whether this assignment moved the customer between segments.
func (a *SegmentAssignment) Migrated() bool {
	return a.PreviousSegmentID != nil && *a.PreviousSegmentID != a.SegmentID
}

// Assignment sources.
const (
	SourceRules    = "rules"
	SourceAdvisory = "advisory"
	SourceCluster  = "cluster"
	SourceCache    = "cache"
)

type SegmentationRequest struct {
	CustomerID         string        `json:"customer_id,omitempty"`
	CustomerIDs        []string      `json:"customer_ids,omitempty"`
	AnalysisDepth      AnalysisDepth `json:"analysis_depth"`
	ForceRecalculation bool          `json:"force_recalculation"`
}

type SegmentationResponse struct {
	Success          bool                    `json:"success"`
	Segments         []Segment               `json:"segments,omitempty"`
	Assignments      []*SegmentAssignment    `json:"customer_assignments,omitempty"`
	Statistics       *SegmentationStatistics `json:"statistics,omitempty"`
	Clustering       *ClusteringResult       `json:"clustering,omitempty"`
	Failed           []string                `json:"failed_customer_ids,omitempty"`
	ProcessingTimeMs int64                   `json:"processing_time_ms"`
	Error            string                  `json:"error,omitempty"`

	// Err is the cause behind Error for in-process callers.
	Err error `json:"-"`
}

type SegmentShare struct {
	SegmentID   string  `json:"segment_id" bson:"segment_id"`
	SegmentName string  `json:"segment_name" bson:"segment_name"`
	Count       int     `json:"count" bson:"count"`
	Percentage  float64 `json:"percentage" bson:"percentage"`
}

type SegmentationStatistics struct {
	TotalCustomers      int            `json:"total_customers" bson:"total_customers"`
	SegmentDistribution []SegmentShare `json:"segment_distribution" bson:"segment_distribution"`
	AverageConfidence   float64        `json:"average_confidence" bson:"average_confidence"`
	MigrationCount      int            `json:"migration_count" bson:"migration_count"`
	LastUpdated         time.Time      `json:"last_updated" bson:"last_updated"`
}

// SegmentationSnapshot is a persisted copy of one run's statistics.
type SegmentationSnapshot struct {
	ID            string                  `json:"id" bson:"_id"`
	AnalysisDepth AnalysisDepth           `json:"analysis_depth" bson:"analysis_depth"`
	Statistics    *SegmentationStatistics `json:"statistics" bson:"statistics"`
	ProcessingMs  int64                   `json:"processing_time_ms" bson:"processing_time_ms"`
	CreatedAt     time.Time               `json:"created_at" bson:"created_at"`
}

// Cluster is ephemeral and lives only for the duration of one batch run.
type Cluster struct {
	ID       int       `json:"cluster_id"`
	Centroid []float64 `json:"centroid"`
	Members  []string  `json:"members"`
	Size     int       `json:"size"`
	Variance float64   `json:"variance"`
	Cohesion float64   `json:"cohesion"`
}

type ClusteringResult struct {
	Clusters     []*Cluster `json:"clusters"`
	K            int        `json:"k"`
	Iterations   int        `json:"iterations"`
	Converged    bool       `json:"converged"`
	QualityScore float64    `json:"quality_score"`
	Silhouette   float64    `json:"silhouette"`
}

const (
	EventTypeSegmentUpdate = "segment_update"
	ModelVersion           = "v1.0"
)

type SegmentUpdateEvent struct {
	EventID           string    `json:"event_id"`
	EventType         string    `json:"event_type"`
	CustomerID        string    `json:"customer_id"`
	PreviousSegment   *string   `json:"previous_segment"`
	NewSegment        string    `json:"new_segment"`
	NewSegmentName    string    `json:"new_segment_name"`
	SegmentationScore float64   `json:"segmentation_score"`
	ReasonCodes       []string  `json:"reason_codes"`
	Confidence        float64   `json:"confidence"`
	ModelVersion      string    `json:"model_version"`
	Timestamp         time.Time `json:"timestamp"`
}

// SegmentMigration records a customer moving between two segments.
type SegmentMigration struct {
	CustomerID  string    `json:"customer_id"`
	FromSegment string    `json:"from_segment"`
	ToSegment   string    `json:"to_segment"`
	Reason      string    `json:"reason"`
	Confidence  float64   `json:"confidence"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// SegmentationMetrics is reported to the metrics sink after every run.
type SegmentationMetrics struct {
	AnalysisDepth     AnalysisDepth  `json:"analysis_depth"`
	CustomerCount     int            `json:"customer_count"`
	ProcessingTime    time.Duration  `json:"processing_time"`
	AverageConfidence float64        `json:"average_confidence"`
	SegmentCounts     map[string]int `json:"segment_counts"`
	Clustered         bool           `json:"clustered"`
}
