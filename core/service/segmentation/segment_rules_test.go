package segmentation

import (
	"testing"

	"segment_server/core/domain"
)

func TestClassifyByRules(t *testing.T) {
	tests := []struct {
		name string
		f    domain.CustomerFeatures
		want string
	}{
		{"lost beats everything", domain.CustomerFeatures{DaysSinceLastPurchase: 400, LifetimeValue: 5000, PurchaseFrequency: 10}, domain.SegmentLost},
		{"hibernating", domain.CustomerFeatures{DaysSinceLastPurchase: 200, LifetimeValue: 5000}, domain.SegmentHibernating},
		{"cant lose", domain.CustomerFeatures{DaysSinceLastPurchase: 150, LifetimeValue: 800}, domain.SegmentCantLose},
		{"at risk", domain.CustomerFeatures{DaysSinceLastPurchase: 100, LifetimeValue: 300}, domain.SegmentAtRisk},
		{"at risk before cant lose window", domain.CustomerFeatures{DaysSinceLastPurchase: 110, LifetimeValue: 900}, domain.SegmentAtRisk},
		{"champions", domain.CustomerFeatures{DaysSinceLastPurchase: 30, LifetimeValue: 1000, PurchaseFrequency: 4, TotalPurchases: 12}, domain.SegmentChampions},
		{"champion too stale is loyal", domain.CustomerFeatures{DaysSinceLastPurchase: 31, LifetimeValue: 1000, PurchaseFrequency: 4, TotalPurchases: 12}, domain.SegmentLoyal},
		{"loyal", domain.CustomerFeatures{DaysSinceLastPurchase: 5, LifetimeValue: 500, PurchaseFrequency: 2, TotalPurchases: 6}, domain.SegmentLoyal},
		{"new", domain.CustomerFeatures{DaysSinceLastPurchase: 2, LifetimeValue: 40, TotalPurchases: 2}, domain.SegmentNew},
		{"potential loyalist by frequency", domain.CustomerFeatures{DaysSinceLastPurchase: 45, LifetimeValue: 100, PurchaseFrequency: 1, TotalPurchases: 4}, domain.SegmentPotentialLoyalists},
		{"default", domain.CustomerFeatures{DaysSinceLastPurchase: 80, LifetimeValue: 50, PurchaseFrequency: 0.5, TotalPurchases: 3}, domain.SegmentPotentialLoyalists},
		{"no purchases", domain.CustomerFeatures{}, domain.SegmentNew},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyByRules(&tt.f)
			if got != tt.want {
				t.Errorf("ClassifyByRules = %s, want %s", got, tt.want)
			}
			if !domain.IsSegmentID(got) {
				t.Errorf("%s is not a catalog segment", got)
			}
		})
	}
}
