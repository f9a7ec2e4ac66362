package segmentation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"segment_server/core/domain"
	"segment_server/core/port/out"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(d float64) time.Time {
	return testNow.Add(-time.Duration(d * 24 * float64(time.Hour)))
}

// championPurchases is 15 purchases of $80 spread evenly over 90 days,
// the last one 10 days ago.
func championPurchases() []domain.Purchase {
	categories := []string{"Produce", "Dairy", "Bakery", "Meat"}
	out := make([]domain.Purchase, 0, 15)
	for i := 0; i < 15; i++ {
		out = append(out, domain.Purchase{
			ProductID:    "p",
			Category:     categories[i%len(categories)],
			Quantity:     1,
			Price:        80,
			PurchaseDate: daysAgo(100 - float64(i)*90/14),
		})
	}
	return out
}

func dormantPurchases(lastDaysAgo float64) []domain.Purchase {
	return []domain.Purchase{
		{ProductID: "a", Category: "Snacks", Quantity: 1, Price: 20, PurchaseDate: daysAgo(lastDaysAgo + 60)},
		{ProductID: "b", Category: "Snacks", Quantity: 1, Price: 20, PurchaseDate: daysAgo(lastDaysAgo + 30)},
		{ProductID: "c", Category: "Drinks", Quantity: 1, Price: 20, PurchaseDate: daysAgo(lastDaysAgo)},
	}
}

type fakePurchases struct {
	mu   sync.Mutex
	data map[string][]domain.Purchase
	err  error
}

func newFakePurchases() *fakePurchases {
	return &fakePurchases{data: make(map[string][]domain.Purchase)}
}

func (f *fakePurchases) set(id string, p []domain.Purchase) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[id] = p
}

func (f *fakePurchases) GetPurchases(_ context.Context, id string) ([]domain.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.data[id]
	if !ok {
		return nil, out.ErrCustomerNotFound
	}
	return p, nil
}

type fakeLister struct{ ids []string }

func (f fakeLister) ListCustomerIDs(context.Context) ([]string, error) { return f.ids, nil }

type cacheEntry struct {
	value   string
	expires time.Time
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
	failGet bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]cacheEntry), now: time.Now}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return "", false, errors.New("cache down")
	}
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (c *fakeCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expires: c.now().Add(ttl)}
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

type recordingSink struct {
	mu         sync.Mutex
	events     []*domain.SegmentUpdateEvent
	migrations []domain.SegmentMigration
	metrics    []domain.SegmentationMetrics
	block      chan struct{}
}

func (r *recordingSink) Publish(_ context.Context, e *domain.SegmentUpdateEvent) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) Record(_ context.Context, m domain.SegmentationMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, m)
	return nil
}

func (r *recordingSink) RecordMigration(_ context.Context, m domain.SegmentMigration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.migrations = append(r.migrations, m)
	return nil
}

func (r *recordingSink) eventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type fakeAdvisor struct {
	result *out.AdvisoryResult
	err    error
	wait   bool
	calls  int
}

func (f *fakeAdvisor) Analyze(ctx context.Context, _ *out.AdvisoryRequest) (*out.AdvisoryResult, error) {
	f.calls++
	if f.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.result, f.err
}

type testEnv struct {
	svc       *Service
	purchases *fakePurchases
	cache     *fakeCache
	sink      *recordingSink
	emitter   *Emitter
}

func newTestEnv(advisor out.AdvisoryClassifier) *testEnv {
	env := &testEnv{
		purchases: newFakePurchases(),
		cache:     newFakeCache(),
		sink:      &recordingSink{},
	}
	env.cache.now = func() time.Time { return testNow }
	env.emitter = NewEmitter(EmitterConfig{QueueSize: 1024}, EmitterSinks{
		Notifier: env.sink,
		Metrics:  env.sink,
	}, zerolog.Nop())

	deps := &Deps{
		Purchases: env.purchases,
		Cache:     env.cache,
		Emitter:   env.emitter,
	}
	if advisor != nil {
		deps.Advisory = advisor
	}
	env.svc = NewService(deps, DefaultConfig()).WithClock(func() time.Time { return testNow })
	return env
}

// drain waits for every queued emission to reach the sinks.
func (e *testEnv) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = e.emitter.Close(ctx)
}

// batchPurchases also implements out.BatchPurchaseAccessor.
type batchPurchases struct {
	*fakePurchases
	batchCalls int
	single     int
}

func (b *batchPurchases) GetPurchases(ctx context.Context, id string) ([]domain.Purchase, error) {
	b.single++
	return b.fakePurchases.GetPurchases(ctx, id)
}

func (b *batchPurchases) GetPurchasesBatch(_ context.Context, ids []string) (map[string][]domain.Purchase, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batchCalls++
	result := make(map[string][]domain.Purchase, len(ids))
	for _, id := range ids {
		if p, ok := b.data[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}
