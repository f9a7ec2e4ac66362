package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"segment_server/core/domain"
	"segment_server/core/port/out"
)

type fakeCompleter struct {
	answer string
	err    error
	system string
	user   string
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	f.system, f.user = systemPrompt, userPrompt
	return f.answer, f.err
}

const premiumAnswer = "```json\n" + `{
  "success": true,
  "confidence": 0.9,
  "customerProfile": {
    "spendingPatterns": {"averageOrderValue": 120, "preferredCategories": ["Wine"], "shoppingFrequency": "weekly", "pricePreference": "premium"},
    "behavioralInsights": {"plannedShopper": true, "brandLoyal": true, "seasonalShopper": false, "bulkBuyer": false}
  }
}` + "\n```"

func TestParseProfile(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantErr     bool
		wantSuccess bool
	}{
		{name: "fenced json", raw: premiumAnswer, wantSuccess: true},
		{name: "declined", raw: `{"success": false, "confidence": 0, "error": "too few purchases"}`},
		{name: "success without profile", raw: `{"success": true, "confidence": 0.7}`},
		{name: "garbage", raw: "not json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProfile(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Success != tt.wantSuccess {
				t.Errorf("success = %v, want %v", got.Success, tt.wantSuccess)
			}
		})
	}
}

func TestProfileClientAnalyze(t *testing.T) {
	fc := &fakeCompleter{answer: premiumAnswer}
	client := NewProfileClient(fc, nil)

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	req := &out.AdvisoryRequest{
		AnalysisType: out.AnalysisCustomerProfiling,
		CustomerID:   "c-1",
		Purchases: []domain.Purchase{
			{ProductID: "p-1", Category: "Wine", Quantity: 1, Price: 120, PurchaseDate: now.AddDate(0, 0, -20)},
			{ProductID: "p-2", ProductName: "Cheese", Category: "Dairy", Quantity: 2, Price: 15, PurchaseDate: now.AddDate(0, 0, -3)},
		},
	}

	got, err := client.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Confidence != 0.9 || got.Profile.SpendingPatterns.PricePreference != "premium" {
		t.Errorf("unexpected result %+v", got)
	}

	if !strings.Contains(fc.user, "Customer: c-1") {
		t.Errorf("prompt missing customer id:\n%s", fc.user)
	}
	if strings.Index(fc.user, "Cheese") > strings.Index(fc.user, "p-1") {
		t.Errorf("history should be newest first:\n%s", fc.user)
	}
}

func TestProfileClientErrors(t *testing.T) {
	boom := errors.New("rate limited")
	client := NewProfileClient(&fakeCompleter{err: boom}, nil)

	if _, err := client.Analyze(context.Background(), &out.AdvisoryRequest{CustomerID: "c-1"}); !errors.Is(err, boom) {
		t.Errorf("got %v, want wrapped completer error", err)
	}
	if _, err := client.Analyze(context.Background(), &out.AdvisoryRequest{}); err == nil {
		t.Error("expected error for missing customer id")
	}
	if _, err := client.Analyze(context.Background(), &out.AdvisoryRequest{CustomerID: "c-1", AnalysisType: "sentiment"}); err == nil {
		t.Error("expected error for unsupported analysis type")
	}
}
