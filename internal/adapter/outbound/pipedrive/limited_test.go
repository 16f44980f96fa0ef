package pipedrive

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crmbridge/crmbridge/internal/domain/ratelimit"
	"github.com/crmbridge/crmbridge/internal/domain/record"
	"github.com/crmbridge/crmbridge/internal/port/outbound"
)

// countingProvider records in-flight concurrency across all methods.
type countingProvider struct {
	outbound.RecordProvider

	inFlight atomic.Int32
	peak     atomic.Int32
	err      error
}

func (p *countingProvider) track() func() {
	n := p.inFlight.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	return func() { p.inFlight.Add(-1) }
}

func (p *countingProvider) ListDeals(ctx context.Context, f record.DealFilter) ([]record.Deal, error) {
	defer p.track()()
	return []record.Deal{{ID: 1}}, p.err
}

func (p *countingProvider) ListPipelines(ctx context.Context) ([]record.Pipeline, error) {
	defer p.track()()
	return nil, p.err
}

func TestLimited_EnforcesConcurrencyAcrossMethods(t *testing.T) {
	t.Parallel()

	inner := &countingProvider{}
	gate := ratelimit.NewGate(ratelimit.Config{Interval: time.Millisecond})
	limited := NewLimited(inner, gate)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = limited.ListDeals(context.Background(), record.DealFilter{})
			} else {
				_, err = limited.ListPipelines(context.Background())
			}
			if err != nil {
				t.Errorf("call %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if peak := inner.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", peak)
	}
}

func TestLimited_PassesThroughResultsAndErrors(t *testing.T) {
	t.Parallel()

	inner := &countingProvider{}
	limited := NewLimited(inner, ratelimit.NewGate(ratelimit.Config{Interval: time.Millisecond}))

	deals, err := limited.ListDeals(context.Background(), record.DealFilter{})
	if err != nil {
		t.Fatalf("ListDeals() error: %v", err)
	}
	if len(deals) != 1 || deals[0].ID != 1 {
		t.Errorf("ListDeals() = %+v, want inner result", deals)
	}

	inner.err = errors.New("upstream down")
	if _, err := limited.ListDeals(context.Background(), record.DealFilter{}); !errors.Is(err, inner.err) {
		t.Errorf("ListDeals() = %v, want inner error passed through", err)
	}
}
