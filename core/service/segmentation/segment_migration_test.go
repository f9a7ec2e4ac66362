package segmentation

import (
	"reflect"
	"strings"
	"testing"

	"segment_server/core/domain"
)

func TestMigrationReason(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		f        domain.CustomerFeatures
		want     string
	}{
		{
			name: "champion churning",
			from: domain.SegmentChampions, to: domain.SegmentAtRisk,
			f:    domain.CustomerFeatures{DaysSinceLastPurchase: 95, PurchaseFrequency: 2, ChurnRisk: domain.ChurnRiskMedium},
			want: "Extended period without purchase; Champion customer showing signs of churn",
		},
		{
			name: "new converted",
			from: domain.SegmentNew, to: domain.SegmentLoyal,
			f:    domain.CustomerFeatures{DaysSinceLastPurchase: 3, PurchaseFrequency: 3},
			want: "New customer successfully converted to loyal",
		},
		{
			name: "slowing down with high risk",
			from: domain.SegmentLoyal, to: domain.SegmentHibernating,
			f:    domain.CustomerFeatures{DaysSinceLastPurchase: 200, PurchaseFrequency: 0.5, ChurnRisk: domain.ChurnRiskHigh},
			want: "Extended period without purchase; Decreased purchase frequency; High churn risk detected",
		},
		{
			name: "default",
			from: domain.SegmentLoyal, to: domain.SegmentChampions,
			f:    domain.CustomerFeatures{DaysSinceLastPurchase: 5, PurchaseFrequency: 5},
			want: defaultMigrationReason,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MigrationReason(tt.from, tt.to, &tt.f); got != tt.want {
				t.Errorf("MigrationReason = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReasonCodes(t *testing.T) {
	prev := domain.SegmentChampions
	reason := "Champion customer showing signs of churn"

	tests := []struct {
		name string
		a    *domain.SegmentAssignment
		want []string
	}{
		{
			name: "high value recent",
			a: &domain.SegmentAssignment{Features: &domain.CustomerFeatures{
				TotalSpent: 2500, AverageOrderValue: 125, TotalPurchases: 21, PurchaseFrequency: 11, DaysSinceLastPurchase: 2,
			}},
			want: []string{"high_value_customer", "frequent_purchaser", "high_order_value", "recent_activity", "loyal_customer"},
		},
		{
			name: "inactive migration",
			a: &domain.SegmentAssignment{
				Features:          &domain.CustomerFeatures{DaysSinceLastPurchase: 120},
				PreviousSegmentID: &prev,
				MigrationReason:   &reason,
			},
			want: []string{"inactive_period", "migration_champion_customer_showing_signs_of_churn"},
		},
		{
			name: "standard",
			a:    &domain.SegmentAssignment{Features: &domain.CustomerFeatures{DaysSinceLastPurchase: 30}},
			want: []string{"standard_classification"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReasonCodes(tt.a); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ReasonCodes = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReasonCodes_MigrationTagHasNoSpaces(t *testing.T) {
	prev := domain.SegmentLoyal
	reason := MigrationReason(prev, domain.SegmentHibernating, &domain.CustomerFeatures{DaysSinceLastPurchase: 200, ChurnRisk: domain.ChurnRiskHigh})
	codes := ReasonCodes(&domain.SegmentAssignment{
		Features:          &domain.CustomerFeatures{DaysSinceLastPurchase: 200},
		PreviousSegmentID: &prev,
		MigrationReason:   &reason,
	})
	last := codes[len(codes)-1]
	if !strings.HasPrefix(last, "migration_") || strings.ContainsAny(last, " \t") {
		t.Errorf("bad migration code %q", last)
	}
}
