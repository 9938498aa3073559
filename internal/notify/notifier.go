// Package notify delivers operator alerts to external channels (Telegram,
// Discord). The bet-change detector uses it to page an operator when scans
// keep failing; it is never used for end-user messaging.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Sender is one delivery channel for operator alerts.
type Sender interface {
	// Send delivers an alert with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Alerter fans an alert out to all configured senders. Each event key is
// throttled: once an alert for a key has been delivered, further alerts for
// the same key are dropped until the cooldown elapses or Clear is called.
// A recovering-and-failing detector therefore produces one page per
// incident, not one per tick.
type Alerter struct {
	senders  []Sender
	events   map[string]bool // allowed event keys; empty means all
	cooldown time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewAlerter creates an Alerter delivering to the given senders. Only events
// whose key appears in events are forwarded; an empty list allows all.
// A cooldown of zero disables throttling.
func NewAlerter(senders []Sender, events []string, cooldown time.Duration, logger *slog.Logger) *Alerter {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		e = strings.TrimSpace(e)
		if e != "" {
			allowed[e] = true
		}
	}
	return &Alerter{
		senders:  senders,
		events:   allowed,
		cooldown: cooldown,
		logger:   logger.With(slog.String("component", "alerter")),
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Alert delivers to all senders if the event key is allowed and not inside
// its cooldown window. Suppressed alerts return nil.
func (a *Alerter) Alert(ctx context.Context, event, title, message string) error {
	if len(a.events) > 0 && !a.events[event] {
		a.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}

	if !a.shouldSend(event) {
		a.logger.DebugContext(ctx, "alert suppressed by cooldown",
			slog.String("event", event),
		)
		return nil
	}

	return a.dispatch(ctx, title, message)
}

// Clear resets the cooldown for an event key, so the next Alert for it is
// delivered immediately. Called when the underlying condition recovers.
func (a *Alerter) Clear(event string) {
	a.mu.Lock()
	delete(a.lastSent, event)
	a.mu.Unlock()
}

func (a *Alerter) shouldSend(event string) bool {
	if a.cooldown <= 0 {
		return true
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if last, ok := a.lastSent[event]; ok && now.Sub(last) < a.cooldown {
		return false
	}
	a.lastSent[event] = now
	return true
}

// dispatch iterates over all senders. Errors from individual senders are
// collected and returned combined; one sender failing does not prevent
// delivery to the rest.
func (a *Alerter) dispatch(ctx context.Context, title, message string) error {
	if len(a.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range a.senders {
		if err := s.Send(ctx, title, message); err != nil {
			a.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			a.logger.DebugContext(ctx, "alert sent",
				slog.String("sender", s.Name()),
				slog.String("title", title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
