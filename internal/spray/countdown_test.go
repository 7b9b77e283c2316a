package spray

import (
	"context"
	"testing"
	"time"

	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/domain"
)

func TestCountdownEmitsEveryStep(t *testing.T) {
	var got []Tick
	for tick := range Countdown(context.Background(), 3, time.Millisecond) {
		got = append(got, tick)
	}
	if len(got) != 3 {
		t.Fatalf("got %d ticks, want 3", len(got))
	}
	for i, tick := range got {
		if tick.Elapsed != i+1 || tick.Total != 3 {
			t.Fatalf("tick %d = %+v", i, tick)
		}
	}
	if !got[2].Done() || got[2].Progress != 1 {
		t.Fatalf("last tick = %+v, want done", got[2])
	}
	if got[0].Done() {
		t.Fatal("first tick reported done")
	}
}

func TestCountdownZeroSeconds(t *testing.T) {
	select {
	case _, ok := <-Countdown(context.Background(), 0, time.Millisecond):
		if ok {
			t.Fatal("zero-length countdown emitted a tick")
		}
	case <-time.After(time.Second):
		t.Fatal("zero-length countdown did not close")
	}
}

func TestCountdownCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ticks := Countdown(ctx, 10, time.Hour)

	first, ok := <-ticks
	if !ok || first.Elapsed != 1 {
		t.Fatalf("first tick = %+v, ok=%v", first, ok)
	}
	cancel()

	select {
	case _, ok := <-ticks:
		if ok {
			t.Fatal("tick delivered after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("countdown did not stop after cancel")
	}
}

func TestShouldSprayFollowsDecision(t *testing.T) {
	tests := []struct {
		d    domain.Decision
		want bool
	}{
		{domain.Decision{Action: domain.ActionNoSpray, DurationSeconds: 0}, false},
		{domain.Decision{Action: domain.ActionDelaySpray, DurationSeconds: 10}, false},
		{domain.Decision{Action: domain.ActionTargetedSpray, DurationSeconds: 6}, true},
	}
	for _, tt := range tests {
		if got := tt.d.ShouldSpray(); got != tt.want {
			t.Errorf("%+v ShouldSpray = %v, want %v", tt.d, got, tt.want)
		}
	}
}

type recordingBus struct {
	got []any
}

func (r *recordingBus) PublishJSON(_ context.Context, v any) error {
	r.got = append(r.got, v)
	return nil
}

func TestBusPublisherForwardsEvent(t *testing.T) {
	bus := &recordingBus{}
	evt := Event{Type: EventStarted, AnalysisID: "a1", DurationSeconds: 6}
	if err := NewBusPublisher(bus).Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(bus.got) != 1 || bus.got[0].(Event) != evt {
		t.Fatalf("bus received %+v", bus.got)
	}
}
