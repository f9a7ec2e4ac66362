package segmentation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"segment_server/core/domain"
	"segment_server/core/port/out"
)

func TestSegmentOne_ChampionScenario(t *testing.T) {
	env := newTestEnv(nil)
	env.purchases.set("c-1", championPurchases())

	a, err := env.svc.SegmentOne(context.Background(), "c-1", domain.AnalysisBasic)
	if err != nil {
		t.Fatal(err)
	}
	if a.SegmentID != domain.SegmentChampions {
		t.Errorf("SegmentID = %s, want champions", a.SegmentID)
	}
	if a.Confidence != 0.8 {
		t.Errorf("Confidence = %v, want 0.8", a.Confidence)
	}
	if a.SegmentName != "Champions" {
		t.Errorf("SegmentName = %q", a.SegmentName)
	}
	if a.PreviousSegmentID != nil {
		t.Errorf("first assignment should not carry a previous segment")
	}
}

func TestSegmentOne_HibernatingScenario(t *testing.T) {
	env := newTestEnv(nil)
	env.purchases.set("c-2", dormantPurchases(200))

	a, err := env.svc.SegmentOne(context.Background(), "c-2", domain.AnalysisDetailed)
	if err != nil {
		t.Fatal(err)
	}
	if a.SegmentID != domain.SegmentHibernating {
		t.Errorf("SegmentID = %s, want hibernating", a.SegmentID)
	}
	if a.Features.ChurnRisk != domain.ChurnRiskHigh {
		t.Errorf("ChurnRisk = %s, want high", a.Features.ChurnRisk)
	}
}

func TestSegmentOne_Idempotent(t *testing.T) {
	env := newTestEnv(nil)
	env.purchases.set("c-1", championPurchases())
	ctx := context.Background()

	first, err := env.svc.SegmentOne(ctx, "c-1", domain.AnalysisBasic)
	if err != nil {
		t.Fatal(err)
	}
	second, err := env.svc.SegmentOne(ctx, "c-1", domain.AnalysisBasic)
	if err != nil {
		t.Fatal(err)
	}
	env.drain()

	if first.SegmentID != second.SegmentID {
		t.Errorf("segment changed between identical calls: %s -> %s", first.SegmentID, second.SegmentID)
	}
	if second.PreviousSegmentID != nil || second.MigrationReason != nil {
		t.Errorf("second call recorded a spurious migration")
	}
	if n := env.sink.eventCount(); n != 1 {
		t.Errorf("published %d events, want 1", n)
	}
	if len(env.sink.migrations) != 0 {
		t.Errorf("recorded %d migrations, want 0", len(env.sink.migrations))
	}
}

func TestSegmentOne_DetectsMigration(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	env.purchases.set("c-1", championPurchases())
	if _, err := env.svc.SegmentOne(ctx, "c-1", domain.AnalysisBasic); err != nil {
		t.Fatal(err)
	}

	// Same spend, but nothing bought for 100 days.
	lapsed := championPurchases()
	for i := range lapsed {
		lapsed[i].PurchaseDate = lapsed[i].PurchaseDate.Add(-90 * 24 * time.Hour)
	}
	env.purchases.set("c-1", lapsed)

	a, err := env.svc.SegmentOne(ctx, "c-1", domain.AnalysisBasic)
	if err != nil {
		t.Fatal(err)
	}
	env.drain()

	if a.SegmentID != domain.SegmentAtRisk {
		t.Fatalf("SegmentID = %s, want at-risk", a.SegmentID)
	}
	if a.PreviousSegmentID == nil || *a.PreviousSegmentID != domain.SegmentChampions {
		t.Fatalf("PreviousSegmentID = %v, want champions", a.PreviousSegmentID)
	}
	if a.MigrationReason == nil || !strings.Contains(*a.MigrationReason, "Champion customer showing signs of churn") {
		t.Errorf("MigrationReason = %v", a.MigrationReason)
	}

	if n := env.sink.eventCount(); n != 2 {
		t.Fatalf("published %d events, want 2", n)
	}
	ev := env.sink.events[1]
	if ev.PreviousSegment == nil || *ev.PreviousSegment != domain.SegmentChampions || ev.NewSegment != domain.SegmentAtRisk {
		t.Errorf("event = %+v", ev)
	}
	if ev.EventType != domain.EventTypeSegmentUpdate || ev.ModelVersion != domain.ModelVersion {
		t.Errorf("event metadata = %s / %s", ev.EventType, ev.ModelVersion)
	}
	if len(env.sink.migrations) != 1 || env.sink.migrations[0].FromSegment != domain.SegmentChampions {
		t.Errorf("migrations = %+v", env.sink.migrations)
	}

	champions, _ := env.svc.Catalog().Get(domain.SegmentChampions)
	if champions.Departures != 1 {
		t.Errorf("champions departures = %d, want 1", champions.Departures)
	}
}

func TestSegmentOne_UnknownCustomer(t *testing.T) {
	env := newTestEnv(nil)
	_, err := env.svc.SegmentOne(context.Background(), "ghost", domain.AnalysisBasic)
	if !errors.Is(err, out.ErrCustomerNotFound) {
		t.Errorf("err = %v, want ErrCustomerNotFound", err)
	}
}

func TestSegmentOne_CacheFailureIsAMiss(t *testing.T) {
	env := newTestEnv(nil)
	env.cache.failGet = true
	env.purchases.set("c-1", championPurchases())

	a, err := env.svc.SegmentOne(context.Background(), "c-1", domain.AnalysisBasic)
	if err != nil {
		t.Fatalf("cache failure must not fail classification: %v", err)
	}
	if a.SegmentID != domain.SegmentChampions {
		t.Errorf("SegmentID = %s", a.SegmentID)
	}
}

func TestSegmentOne_AdvisoryDepth(t *testing.T) {
	advisor := &fakeAdvisor{result: &out.AdvisoryResult{
		Success:    true,
		Confidence: 0.93,
		Profile: &out.CustomerProfile{
			SpendingPatterns: &out.SpendingPatterns{ShoppingFrequency: "daily", AverageOrderValue: 20},
		},
	}}
	env := newTestEnv(advisor)
	env.purchases.set("c-1", championPurchases())
	ctx := context.Background()

	a, err := env.svc.SegmentOne(ctx, "c-1", domain.AnalysisComprehensive)
	if err != nil {
		t.Fatal(err)
	}
	if a.SegmentID != domain.SegmentLoyal || a.Confidence != 0.93 || a.Source != domain.SourceAdvisory {
		t.Errorf("assignment = %s %v %s", a.SegmentID, a.Confidence, a.Source)
	}

	if _, err := env.svc.SegmentOne(ctx, "c-1", domain.AnalysisBasic); err != nil {
		t.Fatal(err)
	}
	if advisor.calls != 1 {
		t.Errorf("basic depth must not consult the advisor, calls = %d", advisor.calls)
	}
}

func TestAssignmentCache_RoundTripAndExpiry(t *testing.T) {
	store := newFakeCache()
	clock := testNow
	store.now = func() time.Time { return clock }
	cache := NewAssignmentCache(store, time.Hour)
	ctx := context.Background()

	a := &domain.SegmentAssignment{
		CustomerID:  "c-1",
		SegmentID:   domain.SegmentLoyal,
		SegmentName: "Loyal Customers",
		Confidence:  0.8,
		AssignedAt:  testNow,
		Features:    ExtractFeatures("c-1", championPurchases(), testNow),
	}
	cache.Put(ctx, a)

	got := cache.Get(ctx, "c-1")
	if got == nil {
		t.Fatal("expected a cache hit")
	}
	if got.SegmentID != a.SegmentID || got.Confidence != a.Confidence || !got.AssignedAt.Equal(a.AssignedAt) {
		t.Errorf("round trip = %+v", got)
	}
	if got.Features.TotalPurchases != 15 {
		t.Errorf("features lost in round trip: %+v", got.Features)
	}

	clock = testNow.Add(time.Hour + time.Second)
	if cache.Get(ctx, "c-1") != nil {
		t.Error("expected a miss after expiry")
	}

	clock = testNow
	cache.Put(ctx, a)
	cache.Invalidate(ctx, "c-1")
	if cache.Get(ctx, "c-1") != nil {
		t.Error("expected a miss after removal")
	}
}

func TestSegmentCustomers_CacheShortCircuit(t *testing.T) {
	env := newTestEnv(nil)
	env.purchases.set("c-1", championPurchases())
	ctx := context.Background()

	first := env.svc.SegmentCustomers(ctx, &domain.SegmentationRequest{CustomerID: "c-1", AnalysisDepth: domain.AnalysisBasic})
	if !first.Success || len(first.Assignments) != 1 {
		t.Fatalf("first response = %+v", first)
	}

	env.purchases.err = errors.New("database down")
	cached := env.svc.SegmentCustomers(ctx, &domain.SegmentationRequest{CustomerID: "c-1"})
	if !cached.Success || cached.Assignments[0].Source != domain.SourceCache {
		t.Fatalf("expected a cached answer, got %+v", cached)
	}
	if cached.Assignments[0].SegmentID != domain.SegmentChampions {
		t.Errorf("cached segment = %s", cached.Assignments[0].SegmentID)
	}

	forced := env.svc.SegmentCustomers(ctx, &domain.SegmentationRequest{CustomerID: "c-1", ForceRecalculation: true})
	if forced.Success || forced.Error == "" {
		t.Errorf("forced recalculation should hit the failing accessor, got %+v", forced)
	}
}

func TestSegmentCustomers_InputErrors(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	if resp := env.svc.SegmentCustomers(ctx, &domain.SegmentationRequest{CustomerID: "ghost"}); resp.Success {
		t.Error("unknown customer should fail")
	}
	if resp := env.svc.SegmentCustomers(ctx, &domain.SegmentationRequest{}); resp.Success || resp.Error == "" {
		t.Error("segment-all without a customer lister should fail")
	}
	if resp := env.svc.SegmentCustomers(ctx, nil); resp.Success {
		t.Error("nil request should fail")
	}
}

func TestSegmentCustomers_ListSkipsFailures(t *testing.T) {
	env := newTestEnv(nil)
	env.purchases.set("c-1", championPurchases())
	env.purchases.set("c-2", dormantPurchases(200))

	resp := env.svc.SegmentCustomers(context.Background(), &domain.SegmentationRequest{
		CustomerIDs:   []string{"c-1", "ghost", "c-2"},
		AnalysisDepth: domain.AnalysisBasic,
	})
	if !resp.Success {
		t.Fatalf("response = %+v", resp)
	}
	if len(resp.Assignments) != 2 || len(resp.Failed) != 1 || resp.Failed[0] != "ghost" {
		t.Errorf("assignments=%d failed=%v", len(resp.Assignments), resp.Failed)
	}
	if resp.Statistics.TotalCustomers != 2 || len(resp.Segments) != len(domain.SegmentIDs) {
		t.Errorf("statistics = %+v", resp.Statistics)
	}

	env.drain()
	if len(env.sink.metrics) != 1 || env.sink.metrics[0].CustomerCount != 2 {
		t.Errorf("metrics = %+v", env.sink.metrics)
	}
}

func TestSegmentCustomers_ClustersLargeBatches(t *testing.T) {
	env := newTestEnv(nil)
	lister := fakeLister{}
	for i := 0; i < 30; i++ {
		hot := fmt.Sprintf("hot-%d", i)
		cold := fmt.Sprintf("cold-%d", i)
		env.purchases.set(hot, championPurchases())
		env.purchases.set(cold, dormantPurchases(200))
		lister.ids = append(lister.ids, hot, cold)
	}
	env.svc.customers = lister

	resp := env.svc.SegmentCustomers(context.Background(), &domain.SegmentationRequest{AnalysisDepth: domain.AnalysisDetailed})
	if !resp.Success {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Clustering == nil || resp.Clustering.K != 5 {
		t.Fatalf("expected a 5-cluster run, got %+v", resp.Clustering)
	}
	if len(resp.Assignments) != 60 {
		t.Fatalf("got %d assignments, want 60", len(resp.Assignments))
	}
	for _, a := range resp.Assignments {
		want := domain.SegmentChampions
		if strings.HasPrefix(a.CustomerID, "cold") {
			want = domain.SegmentHibernating
		}
		if a.SegmentID != want {
			t.Errorf("%s -> %s, want %s", a.CustomerID, a.SegmentID, want)
		}
		if a.Source != domain.SourceCluster || a.Confidence < 0.75 || a.Confidence > 1 {
			t.Errorf("%s source=%s confidence=%v", a.CustomerID, a.Source, a.Confidence)
		}
	}
}

func TestSegmentCustomers_BasicBatchSkipsClustering(t *testing.T) {
	env := newTestEnv(nil)
	ids := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		id := fmt.Sprintf("c-%d", i)
		env.purchases.set(id, championPurchases())
		ids = append(ids, id)
	}

	resp := env.svc.SegmentCustomers(context.Background(), &domain.SegmentationRequest{CustomerIDs: ids, AnalysisDepth: domain.AnalysisBasic})
	if !resp.Success || resp.Clustering != nil {
		t.Fatalf("basic batches should use rules, got clustering=%v", resp.Clustering)
	}
	for _, a := range resp.Assignments {
		if a.Source != domain.SourceRules {
			t.Fatalf("%s classified by %s", a.CustomerID, a.Source)
		}
	}
}

func TestTrackMigration(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	err := env.svc.TrackMigration(ctx, domain.SegmentMigration{CustomerID: "c-1", FromSegment: domain.SegmentLoyal, ToSegment: domain.SegmentChampions})
	if err != nil {
		t.Fatal(err)
	}
	if err := env.svc.TrackMigration(ctx, domain.SegmentMigration{CustomerID: "c-1", FromSegment: "gold", ToSegment: domain.SegmentLoyal}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
	env.drain()
	if len(env.sink.migrations) != 1 || env.sink.migrations[0].OccurredAt.IsZero() {
		t.Errorf("migrations = %+v", env.sink.migrations)
	}
}

func TestEmitter_DropsWhenFull(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	e := NewEmitter(EmitterConfig{QueueSize: 1}, EmitterSinks{Notifier: sink}, zerolog.Nop())

	// The first event occupies the worker, the second fills the queue.
	for i := 0; i < 5; i++ {
		e.EmitUpdate(&domain.SegmentUpdateEvent{CustomerID: fmt.Sprint(i)}, nil)
		time.Sleep(5 * time.Millisecond)
	}
	close(sink.block)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if e.Dropped() == 0 {
		t.Error("expected dropped emissions")
	}
	if got := uint64(sink.eventCount()) + e.Dropped(); got != 5 {
		t.Errorf("delivered+dropped = %d, want 5", got)
	}

	before := e.Dropped()
	e.EmitUpdate(&domain.SegmentUpdateEvent{}, nil)
	if e.Dropped() != before+1 {
		t.Error("emits after close must be dropped, not panic")
	}
}

func TestSegmentCustomers_ClusterPathUsesBatchLoad(t *testing.T) {
	env := newTestEnv(nil)
	batch := &batchPurchases{fakePurchases: env.purchases}
	env.svc.purchases = batch

	ids := make([]string, 0, 61)
	for i := 0; i < 30; i++ {
		hot := fmt.Sprintf("hot-%d", i)
		cold := fmt.Sprintf("cold-%d", i)
		env.purchases.set(hot, championPurchases())
		env.purchases.set(cold, dormantPurchases(200))
		ids = append(ids, hot, cold)
	}
	ids = append(ids, "ghost")

	resp := env.svc.SegmentCustomers(context.Background(), &domain.SegmentationRequest{CustomerIDs: ids, AnalysisDepth: domain.AnalysisDetailed})
	if !resp.Success {
		t.Fatalf("response = %+v", resp)
	}
	if batch.batchCalls != 1 || batch.single != 0 {
		t.Errorf("batch calls = %d, single calls = %d", batch.batchCalls, batch.single)
	}
	if len(resp.Assignments) != 60 {
		t.Errorf("got %d assignments, want 60", len(resp.Assignments))
	}
	if len(resp.Failed) != 1 || resp.Failed[0] != "ghost" {
		t.Errorf("failed = %v, want [ghost]", resp.Failed)
	}
}
