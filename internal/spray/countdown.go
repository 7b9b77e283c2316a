// Package spray runs the simulated spraying countdown and describes the
// events emitted around it.
package spray

import (
	"context"
	"time"

	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/domain"
)

type Tick struct {
	Elapsed  int     `json:"elapsed"`
	Total    int     `json:"total"`
	Progress float64 `json:"progress"`
}

func (t Tick) Done() bool { return t.Total > 0 && t.Elapsed >= t.Total }

// Countdown emits one tick per interval for seconds ticks and then closes the
// channel. Tick i is sent at the start of step i. Cancelling ctx stops the
// sequence early and closes the channel.
func Countdown(ctx context.Context, seconds int, interval time.Duration) <-chan Tick {
	out := make(chan Tick)
	go func() {
		defer close(out)
		if seconds <= 0 {
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for i := 1; i <= seconds; i++ {
			tick := Tick{Elapsed: i, Total: seconds, Progress: float64(i) / float64(seconds)}
			select {
			case out <- tick:
			case <-ctx.Done():
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

type EventType string

const (
	EventStarted   EventType = "started"
	EventCompleted EventType = "completed"
	EventCancelled EventType = "cancelled"
)

// Event is published to the sprayer topic around a countdown.
type Event struct {
	Type            EventType     `json:"type"`
	SessionID       string        `json:"session_id"`
	AnalysisID      string        `json:"analysis_id"`
	Action          domain.Action `json:"action"`
	Severity        float64       `json:"severity"`
	DurationSeconds int           `json:"duration_seconds"`
	Elapsed         int           `json:"elapsed"`
	Timestamp       time.Time     `json:"timestamp"`
}

// Publisher delivers spray events to an actuator bus.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// JSONPublisher is satisfied by broker.Publisher.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, v any) error
}

// BusPublisher forwards spray events to a JSON message bus.
type BusPublisher struct {
	bus JSONPublisher
}

func NewBusPublisher(bus JSONPublisher) *BusPublisher {
	return &BusPublisher{bus: bus}
}

func (b *BusPublisher) Publish(ctx context.Context, evt Event) error {
	return b.bus.PublishJSON(ctx, evt)
}
