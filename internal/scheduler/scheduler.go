// Package scheduler runs Matchgate's periodic jobs: certificate reclaim,
// pool health checks, status publishing and daily statistics.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/matchgate/internal/certpool"
	"github.com/energizer-project/matchgate/internal/config"
	"github.com/energizer-project/matchgate/internal/db"
	"github.com/energizer-project/matchgate/internal/events"
)

// StatsSource provides the counters reported by the stats jobs.
type StatsSource interface {
	SessionCounts(ctx context.Context) (map[db.SessionState]int, error)
	ReportStats(ctx context.Context) (db.ReportStats, error)
}

// StatusPublisher receives periodic status snapshots.
type StatusPublisher interface {
	PublishStatus(status interface{})
}

// Stats is a point-in-time summary of sessions, reports and the pool.
type Stats struct {
	Sessions     map[db.SessionState]int `json:"sessions"`
	Reports      db.ReportStats          `json:"reports"`
	Certificates db.CertificateStats     `json:"certificates"`
	Time         time.Time               `json:"time"`
}

// Scheduler manages periodic background tasks.
type Scheduler struct {
	cfg       *config.Config
	pool      *certpool.Pool
	stats     StatsSource
	eventBus  *events.EventBus
	publisher StatusPublisher
	logger    zerolog.Logger

	mu      sync.Mutex
	poolLow bool
}

// NewScheduler creates a scheduler. publisher may be nil.
func NewScheduler(cfg *config.Config, pool *certpool.Pool, stats StatsSource, eventBus *events.EventBus, publisher StatusPublisher) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		pool:      pool,
		stats:     stats,
		eventBus:  eventBus,
		publisher: publisher,
		logger:    log.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the jobs and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	if err := s.register(ctx, sched); err != nil {
		_ = sched.Shutdown()
		return err
	}

	sched.Start()
	s.logger.Info().Int("jobs", len(sched.Jobs())).Msg("scheduler started")

	<-ctx.Done()

	if err := sched.Shutdown(); err != nil {
		s.logger.Warn().Err(err).Msg("scheduler shutdown error")
	}
	s.logger.Info().Msg("scheduler stopped")
	return nil
}

func (s *Scheduler) register(ctx context.Context, sched gocron.Scheduler) error {
	certs := s.cfg.GetCertificates()
	timers := s.cfg.GetTimers()

	if certs.ReclaimEnabled {
		if err := s.addJob(sched, "certificate-reclaim",
			gocron.DurationJob(seconds(certs.ReclaimIntervalSec, 60)),
			func() { s.ReclaimCertificates(ctx) }); err != nil {
			return err
		}
	}

	if err := s.addJob(sched, "pool-health",
		gocron.DurationJob(seconds(timers.PoolHealthInterval, 300)),
		func() { s.CheckPoolHealth(ctx) },
		gocron.WithStartAt(gocron.WithStartImmediately())); err != nil {
		return err
	}

	if s.publisher != nil {
		if err := s.addJob(sched, "status",
			gocron.DurationJob(seconds(timers.StatusInterval, 60)),
			func() { s.PublishStatus(ctx) }); err != nil {
			return err
		}
	}

	hour, minute := parseClock(timers.DailyStatsTime)
	return s.addJob(sched, "daily-stats",
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(hour, minute, 0))),
		func() { s.DailyStats(ctx) })
}

func (s *Scheduler) addJob(sched gocron.Scheduler, name string, def gocron.JobDefinition, fn func(), opts ...gocron.JobOption) error {
	opts = append(opts,
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if _, err := sched.NewJob(def, gocron.NewTask(fn), opts...); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	s.logger.Debug().Str("job", name).Msg("job scheduled")
	return nil
}

// ReclaimCertificates returns expired allocations to the pool.
func (s *Scheduler) ReclaimCertificates(ctx context.Context) {
	n, err := s.pool.Reclaim(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("certificate reclaim failed")
		return
	}
	if n > 0 {
		s.logger.Info().Int64("reclaimed", n).Msg("expired certificates returned to pool")
	}
}

// CheckPoolHealth warns when available certificates drop below the low
// water mark. pool_low is emitted once per transition into the low state.
func (s *Scheduler) CheckPoolHealth(ctx context.Context) {
	stats, err := s.pool.Stats(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read certificate pool stats")
		return
	}

	lowWater := s.cfg.GetCertificates().LowWater
	low := stats.Available < lowWater

	s.mu.Lock()
	transition := low && !s.poolLow
	s.poolLow = low
	s.mu.Unlock()

	if !low {
		s.logger.Debug().Int("available", stats.Available).Msg("certificate pool healthy")
		return
	}

	s.logger.Warn().
		Int("available", stats.Available).
		Int("total", stats.Total).
		Int("low_water", lowWater).
		Msg("certificate pool low, clients will receive the placeholder when empty")

	if transition {
		s.eventBus.Emit(ctx, events.Event{
			Type:   events.EventPoolLow,
			Source: "scheduler",
			Payload: events.PoolPayload{
				Total:     stats.Total,
				Available: stats.Available,
				LowWater:  lowWater,
			},
		})
	}
}

// CollectStats gathers the current counters.
func (s *Scheduler) CollectStats(ctx context.Context) (*Stats, error) {
	out := &Stats{Time: time.Now().UTC()}

	sessions, err := s.stats.SessionCounts(ctx)
	if err != nil {
		return nil, err
	}
	out.Sessions = sessions

	if out.Reports, err = s.stats.ReportStats(ctx); err != nil {
		return nil, err
	}
	if out.Certificates, err = s.pool.Stats(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// PublishStatus sends the current counters to the status publisher.
func (s *Scheduler) PublishStatus(ctx context.Context) {
	stats, err := s.CollectStats(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to collect status")
		return
	}
	s.publisher.PublishStatus(stats)
}

// DailyStats logs the counters and posts them to the admin channel.
func (s *Scheduler) DailyStats(ctx context.Context) {
	stats, err := s.CollectStats(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to collect daily stats")
		return
	}

	s.logger.Info().
		Int("sessions_created", stats.Sessions[db.SessionCreated]).
		Int("sessions_intention_set", stats.Sessions[db.SessionIntentionSet]).
		Int("sessions_completed", stats.Sessions[db.SessionCompleted]).
		Int("reports", stats.Reports.Total).
		Int("reports_decode_failed", stats.Reports.DecodeFailed).
		Int("certificates_available", stats.Certificates.Available).
		Msg("daily stats collected")

	s.eventBus.Emit(ctx, events.Event{
		Type:   events.EventNotifyDiscordAdmin,
		Source: "scheduler",
		Payload: events.NotifyDiscordPayload{
			Title: "Daily stats",
			Message: fmt.Sprintf("sessions completed: %d, reports: %d (%d undecodable), certificates available: %d/%d",
				stats.Sessions[db.SessionCompleted], stats.Reports.Total, stats.Reports.DecodeFailed,
				stats.Certificates.Available, stats.Certificates.Total),
			Level: "info",
		},
	})
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

// parseClock parses HH:MM, defaulting to 04:00.
func parseClock(s string) (uint, uint) {
	hour, minute := uint(4), uint(0)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return hour, minute
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return hour, minute
	}
	return uint(h), uint(m)
}
