package segmentation

import (
	"context"
	"time"

	"segment_server/core/domain"
	"segment_server/core/port/out"
	"segment_server/pkg/logger"
)

// DefaultConfidence is reported for rule-based decisions.
const DefaultConfidence = 0.8

// =============================================================================
// Classifier Strategy
// =============================================================================

// ClassifierInput carries everything a classifier may look at.
type ClassifierInput struct {
	CustomerID string
	Features   *domain.CustomerFeatures
	Purchases  []domain.Purchase
}

// Opinion is a classifier's decision for one customer.
type Opinion struct {
	SegmentID  string
	Confidence float64
	Source     string
}

// Classifier turns features into a segment decision. Implementations always
// produce an opinion.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, input *ClassifierInput) *Opinion
}

// RuleClassifier wraps ClassifyByRules.
type RuleClassifier struct{}

func NewRuleClassifier() *RuleClassifier { return &RuleClassifier{} }

func (c *RuleClassifier) Name() string { return domain.SourceRules }

func (c *RuleClassifier) Classify(_ context.Context, input *ClassifierInput) *Opinion {
	return &Opinion{
		SegmentID:  ClassifyByRules(input.Features),
		Confidence: DefaultConfidence,
		Source:     domain.SourceRules,
	}
}

// =============================================================================
// Advisory Classifier
// =============================================================================

// AdvisoryClassifier asks an external profiling model first and falls back to
// the rule classifier whenever the model has no usable opinion.
type AdvisoryClassifier struct {
	advisor  out.AdvisoryClassifier
	fallback Classifier
	timeout  time.Duration
}

// NewAdvisoryClassifier returns a classifier that only uses rules when advisor is nil.
func NewAdvisoryClassifier(advisor out.AdvisoryClassifier, timeout time.Duration) *AdvisoryClassifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AdvisoryClassifier{
		advisor:  advisor,
		fallback: NewRuleClassifier(),
		timeout:  timeout,
	}
}

func (c *AdvisoryClassifier) Name() string { return domain.SourceAdvisory }

func (c *AdvisoryClassifier) Classify(ctx context.Context, input *ClassifierInput) *Opinion {
	if op, ok := c.Advise(ctx, input); ok {
		return op
	}
	return c.fallback.Classify(ctx, input)
}

// Advise returns the model's opinion, or false when there is none.
func (c *AdvisoryClassifier) Advise(ctx context.Context, input *ClassifierInput) (*Opinion, bool) {
	if c.advisor == nil {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.advisor.Analyze(ctx, &out.AdvisoryRequest{
		AnalysisType: out.AnalysisCustomerProfiling,
		CustomerID:   input.CustomerID,
		Purchases:    input.Purchases,
		Features:     input.Features,
	})
	if err != nil {
		logger.WithField("customer_id", input.CustomerID).WithError(err).Warn("advisory classification failed, using rules")
		return nil, false
	}
	if result == nil || !result.Success || result.Profile == nil {
		logger.WithField("customer_id", input.CustomerID).Debug("advisory returned no profile, using rules")
		return nil, false
	}
	if result.Confidence <= 0 || result.Confidence > 1 {
		logger.WithFields(map[string]any{
			"customer_id": input.CustomerID,
			"confidence":  result.Confidence,
		}).Warn("advisory confidence out of range, using rules")
		return nil, false
	}

	return &Opinion{
		SegmentID:  segmentFromProfile(result.Profile, input.Features),
		Confidence: result.Confidence,
		Source:     domain.SourceAdvisory,
	}, true
}

func segmentFromProfile(p *out.CustomerProfile, f *domain.CustomerFeatures) string {
	if sp := p.SpendingPatterns; sp != nil {
		switch sp.ShoppingFrequency {
		case "daily", "weekly":
			if sp.AverageOrderValue > 50 {
				return domain.SegmentChampions
			}
			return domain.SegmentLoyal
		}
	}
	if bi := p.BehavioralInsights; bi != nil && bi.PlannedShopper && bi.BrandLoyal {
		return domain.SegmentLoyal
	}
	if f.DaysSinceLastPurchase > 90 {
		return domain.SegmentAtRisk
	}
	return domain.SegmentPotentialLoyalists
}
