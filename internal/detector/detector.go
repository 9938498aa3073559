// Package detector implements the periodic bet-change scan. Instead of
// hooking every write path, it polls the placement table on a fixed interval
// and publishes a stats_changed cue for every bet that received wagers since
// the previous scan. Consumers treat the cue as a refresh trigger and
// refetch; the event itself carries no counts.
package detector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openwager/betfeed/internal/domain"
	"github.com/openwager/betfeed/internal/metrics"
	"github.com/openwager/betfeed/internal/notify"
)

// alertEvent is the throttle key for repeated scan failures.
const alertEvent = "detector_failing"

// Detector runs the scan loop. Each tick covers [cutoff-overlap, now): the
// overlap re-reads a slice of the previous window so a placement committed
// near a tick boundary is never missed. Duplicated cues are harmless because
// consumers refetch rather than apply deltas.
type Detector struct {
	placements domain.PlacementStore
	bus        domain.SignalBus
	alerter    *notify.Alerter
	logger     *slog.Logger

	interval        time.Duration
	overlap         time.Duration
	alertAfterFails int

	cutoff   time.Time
	failures int

	// now is swappable for tests.
	now func() time.Time
}

// Config holds the scan loop parameters.
type Config struct {
	Interval        time.Duration
	Overlap         time.Duration
	AlertAfterFails int
}

// New creates a Detector. The first tick scans from startup time, so
// placements made while the detector was down are not replayed.
func New(
	placements domain.PlacementStore,
	bus domain.SignalBus,
	alerter *notify.Alerter,
	cfg Config,
	logger *slog.Logger,
) *Detector {
	return &Detector{
		placements:      placements,
		bus:             bus,
		alerter:         alerter,
		logger:          logger.With(slog.String("component", "detector")),
		interval:        cfg.Interval,
		overlap:         cfg.Overlap,
		alertAfterFails: cfg.AlertAfterFails,
		now:             time.Now,
	}
}

// Run blocks until ctx is cancelled, executing one scan per interval. Tick
// failures are logged and retried on the next interval; they never stop the
// loop.
func (d *Detector) Run(ctx context.Context) error {
	d.cutoff = d.now()

	d.logger.InfoContext(ctx, "detector started",
		slog.Duration("interval", d.interval),
		slog.Duration("overlap", d.overlap),
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.InfoContext(ctx, "detector stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := d.Tick(ctx); err != nil {
				d.onFailure(ctx, err)
				continue
			}
			d.onSuccess()
		}
	}
}

// Tick executes a single scan. On success the cutoff advances to the scan
// time; on failure it stays put, so the next tick retries the same window
// plus whatever accumulated since.
func (d *Detector) Tick(ctx context.Context) error {
	now := d.now()
	since := d.cutoff.Add(-d.overlap)

	betIDs, err := d.placements.BetIDsWithPlacementsSince(ctx, since, now)
	if err != nil {
		metrics.DetectorTicks.WithLabelValues("error").Inc()
		return fmt.Errorf("detector: scan placements: %w", err)
	}

	for _, id := range betIDs {
		payload := domain.EncodeEvent(domain.EventStatsChanged, id)
		if err := d.bus.Publish(ctx, domain.StatsTopic(id), payload); err != nil {
			metrics.DetectorTicks.WithLabelValues("error").Inc()
			return fmt.Errorf("detector: publish %s: %w", id, err)
		}
		metrics.EventsPublished.WithLabelValues(domain.EventStatsChanged).Inc()
	}

	if len(betIDs) > 0 {
		d.logger.InfoContext(ctx, "changed bets detected",
			slog.Int("count", len(betIDs)),
			slog.Time("since", since),
		)
	} else {
		d.logger.DebugContext(ctx, "no changes", slog.Time("since", since))
	}

	d.cutoff = now
	metrics.DetectorTicks.WithLabelValues("ok").Inc()
	return nil
}

func (d *Detector) onSuccess() {
	if d.failures >= d.alertAfterFails && d.alerter != nil {
		d.alerter.Clear(alertEvent)
	}
	d.failures = 0
}

func (d *Detector) onFailure(ctx context.Context, err error) {
	d.failures++
	d.logger.ErrorContext(ctx, "tick failed",
		slog.Int("consecutive", d.failures),
		slog.String("error", err.Error()),
	)

	if d.alerter == nil || d.alertAfterFails <= 0 || d.failures < d.alertAfterFails {
		return
	}
	alertErr := d.alerter.Alert(ctx, alertEvent,
		"Bet change detector failing",
		fmt.Sprintf("%d consecutive scan failures, latest: %v", d.failures, err),
	)
	if alertErr != nil {
		d.logger.ErrorContext(ctx, "alert delivery failed",
			slog.String("error", alertErr.Error()),
		)
	}
}
