package segmentation

import (
	"errors"
	"sync"
	"testing"

	"segment_server/core/domain"
)

func TestCatalog_HasAllSegments(t *testing.T) {
	c := NewCatalog(testNow)
	segments := c.List()
	if len(segments) != len(domain.SegmentIDs) {
		t.Fatalf("catalog has %d segments, want %d", len(segments), len(domain.SegmentIDs))
	}
	for i, s := range segments {
		if s.ID != domain.SegmentIDs[i] {
			t.Errorf("segment %d = %s, want %s", i, s.ID, domain.SegmentIDs[i])
		}
		if s.Name == "" || len(s.Recommendations.Channels) == 0 {
			t.Errorf("segment %s is missing its profile", s.ID)
		}
	}

	lost, _ := c.Get(domain.SegmentLost)
	if lost.Recommendations.Priority != "cross-sell" {
		t.Errorf("segments without a profile should use the potential-loyalists strategy, got %q", lost.Recommendations.Priority)
	}
}

func TestCatalog_RunningMeans(t *testing.T) {
	c := NewCatalog(testNow)
	c.Record(domain.SegmentLoyal, &domain.CustomerFeatures{AverageOrderValue: 100, PurchaseFrequency: 2, EngagementLevel: 40}, testNow)
	c.Record(domain.SegmentLoyal, &domain.CustomerFeatures{AverageOrderValue: 50, PurchaseFrequency: 4, EngagementLevel: 80}, testNow)

	seg, _ := c.Get(domain.SegmentLoyal)
	if seg.CustomerCount != 2 {
		t.Errorf("CustomerCount = %d", seg.CustomerCount)
	}
	if seg.AverageOrderValue != 75 || seg.AveragePurchaseFrequency != 3 || seg.AverageEngagement != 60 {
		t.Errorf("means = %v / %v / %v", seg.AverageOrderValue, seg.AveragePurchaseFrequency, seg.AverageEngagement)
	}
}

func TestCatalog_ConcurrentRecord(t *testing.T) {
	c := NewCatalog(testNow)
	f := &domain.CustomerFeatures{AverageOrderValue: 10, PurchaseFrequency: 1}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := domain.SegmentIDs[i%len(domain.SegmentIDs)]
			for j := 0; j < 20; j++ {
				c.Record(id, f, testNow)
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for _, s := range c.List() {
		total += s.CustomerCount
		if s.CustomerCount > 0 && s.AverageOrderValue != 10 {
			t.Errorf("%s mean drifted to %v", s.ID, s.AverageOrderValue)
		}
	}
	if total != 1000 {
		t.Errorf("recorded %d assignments, want 1000", total)
	}
}

func TestCatalog_Performance(t *testing.T) {
	c := NewCatalog(testNow)

	base, err := c.Performance(domain.SegmentChampions, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if base.ChurnRate < 0.0799 || base.ChurnRate > 0.0801 {
		t.Errorf("baseline churn = %v, want 0.08", base.ChurnRate)
	}

	c.Record(domain.SegmentChampions, &domain.CustomerFeatures{AverageOrderValue: 100, PurchaseFrequency: 4, EngagementLevel: 90}, testNow)
	c.Record(domain.SegmentChampions, &domain.CustomerFeatures{AverageOrderValue: 100, PurchaseFrequency: 4, EngagementLevel: 90}, testNow)
	c.Record(domain.SegmentChampions, &domain.CustomerFeatures{AverageOrderValue: 100, PurchaseFrequency: 4, EngagementLevel: 90}, testNow)
	c.RecordDeparture(domain.SegmentChampions, testNow)

	p, err := c.Performance(domain.SegmentChampions, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if p.AverageRevenue != 400 {
		t.Errorf("AverageRevenue = %v, want 400", p.AverageRevenue)
	}
	if p.ConversionRate != 0.5 {
		t.Errorf("ConversionRate = %v, want 0.5", p.ConversionRate)
	}
	if p.ChurnRate != 0.25 || p.CustomerRetention != 0.75 || p.GrowthRate != 0.5 {
		t.Errorf("churn/retention/growth = %v/%v/%v", p.ChurnRate, p.CustomerRetention, p.GrowthRate)
	}
	if p.EngagementScore != 90 {
		t.Errorf("EngagementScore = %v", p.EngagementScore)
	}

	if _, err := c.Performance("vip", testNow); !errors.Is(err, ErrUnknownSegment) {
		t.Errorf("unknown segment error = %v", err)
	}
}
