package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"segment_server/core/domain"
	"segment_server/core/port/out"
	"segment_server/pkg/resilience"
)

// maxPromptPurchases bounds how much history goes into one prompt.
const maxPromptPurchases = 50

// JSONCompleter is the part of Client the profiler needs.
type JSONCompleter interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ProfileClient profiles a customer's shopping behavior with a chat model.
type ProfileClient struct {
	llm     JSONCompleter
	breaker *resilience.Breaker
}

var _ out.AdvisoryClassifier = (*ProfileClient)(nil)

// NewProfileClient wraps llm. breaker may be nil.
func NewProfileClient(llm JSONCompleter, breaker *resilience.Breaker) *ProfileClient {
	return &ProfileClient{llm: llm, breaker: breaker}
}

const profileSystemPrompt = `You are a retail customer analyst. Profile the customer from their purchase history and respond with JSON only.

Respond with this exact JSON format:
{
  "success": true,
  "confidence": 0.0-1.0,
  "customerProfile": {
    "spendingPatterns": {
      "averageOrderValue": number,
      "preferredCategories": ["category"],
      "shoppingFrequency": "daily|weekly|biweekly|monthly|occasional",
      "pricePreference": "budget|mid-range|premium"
    },
    "behavioralInsights": {
      "plannedShopper": true|false,
      "brandLoyal": true|false,
      "seasonalShopper": true|false,
      "bulkBuyer": true|false
    }
  }
}

If the history is too thin to judge, respond with {"success": false, "confidence": 0, "error": "reason"}.`

// Analyze implements out.AdvisoryClassifier.
func (p *ProfileClient) Analyze(ctx context.Context, req *out.AdvisoryRequest) (*out.AdvisoryResult, error) {
	if req == nil || req.CustomerID == "" {
		return nil, fmt.Errorf("profile request: customer id is required")
	}
	if req.AnalysisType != "" && req.AnalysisType != out.AnalysisCustomerProfiling {
		return nil, fmt.Errorf("profile request: unsupported analysis type %q", req.AnalysisType)
	}

	userPrompt := buildProfilePrompt(req)

	var raw string
	call := func() error {
		var err error
		raw, err = p.llm.CompleteJSON(ctx, profileSystemPrompt, userPrompt)
		return err
	}

	var err error
	if p.breaker != nil {
		err = p.breaker.Do(call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, fmt.Errorf("profile customer %s: %w", req.CustomerID, err)
	}

	return parseProfile(raw)
}

func buildProfilePrompt(req *out.AdvisoryRequest) string {
	purchases := make([]domain.Purchase, len(req.Purchases))
	copy(purchases, req.Purchases)
	sort.SliceStable(purchases, func(i, j int) bool {
		return purchases[i].PurchaseDate.After(purchases[j].PurchaseDate)
	})
	if len(purchases) > maxPromptPurchases {
		purchases = purchases[:maxPromptPurchases]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Customer: %s\n", req.CustomerID)
	if f := req.Features; f != nil {
		fmt.Fprintf(&sb, "Total purchases: %d\nTotal spent: %.2f\nAverage order value: %.2f\n",
			f.TotalPurchases, f.TotalSpent, f.AverageOrderValue)
		fmt.Fprintf(&sb, "Purchases per month: %.2f\nDays since last purchase: %d\n",
			f.PurchaseFrequency, f.DaysSinceLastPurchase)
		if len(f.FavoriteCategories) > 0 {
			fmt.Fprintf(&sb, "Favorite categories: %s\n", strings.Join(f.FavoriteCategories, ", "))
		}
	}

	sb.WriteString("\nPurchase history (newest first):\n")
	for _, pu := range purchases {
		fmt.Fprintf(&sb, "- %s | %s | %s | qty %d | %.2f\n",
			pu.PurchaseDate.UTC().Format(time.DateOnly), pu.Category, productLabel(pu), pu.Quantity, pu.Price)
	}
	return sb.String()
}

func productLabel(p domain.Purchase) string {
	if p.ProductName != "" {
		return p.ProductName
	}
	return p.ProductID
}

func parseProfile(raw string) (*out.AdvisoryResult, error) {
	var result out.AdvisoryResult
	if err := json.Unmarshal([]byte(stripFences(raw)), &result); err != nil {
		return nil, fmt.Errorf("failed to parse profile response: %w", err)
	}
	if result.Success && result.Profile == nil {
		result.Success = false
		result.Error = "response has no customer profile"
	}
	return &result, nil
}
