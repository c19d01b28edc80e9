package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_RunsOnInterval(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store, nil, 0)

	s := NewScheduler(d, []Schedule{
		{Request: req(OpAnalyzeCosts, ""), Interval: 10 * time.Millisecond},
		{Request: req(OpForecastCosts, ""), Interval: 0},
	})
	s.Start(context.Background())

	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.records) >= 2
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	// second Stop is harmless
	s.Stop()
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	d := newTestDispatcher(newFakeStore(), nil, 0)
	s := NewScheduler(d, []Schedule{{Request: req(OpCheckAlerts, ""), Interval: time.Hour}})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
