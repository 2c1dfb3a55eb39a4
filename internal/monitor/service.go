// Package monitor drives the poll/reconcile/alert/dispatch cycle and
// owns every write to camera state and the alert log.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mehdichamani/HikStatus/internal/config"
	"github.com/mehdichamani/HikStatus/internal/data"
	"github.com/mehdichamani/HikStatus/internal/events"
	"github.com/mehdichamani/HikStatus/internal/mailer"
	"github.com/mehdichamani/HikStatus/internal/metrics"
	"github.com/mehdichamani/HikStatus/internal/poller"
)

// Service executes one full monitoring cycle per call. It is driven by
// the Supervisor and is the only writer of camera state.
type Service struct {
	Repo      data.StateRepository
	Poller    poller.StatusPoller
	Mail      mailer.Transport
	Publisher *events.Publisher

	cfg        *config.Config
	log        zerolog.Logger
	checkCount int64
	now        func() time.Time
}

func NewService(repo data.StateRepository, p poller.StatusPoller, mail mailer.Transport, pub *events.Publisher, cfg *config.Config, log zerolog.Logger) *Service {
	return &Service{
		Repo:      repo,
		Poller:    p,
		Mail:      mail,
		Publisher: pub,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Startup resumes the monotonic check counter and records the service
// start. Called once by the Supervisor before the first cycle.
func (s *Service) Startup(ctx context.Context) error {
	last, err := s.Repo.LastCheckNumber(ctx)
	if err != nil {
		return fmt.Errorf("resume check counter: %w", err)
	}
	s.checkCount = last

	s.appendLifecycleEvent(ctx, data.EventServiceStarted, "Background monitor started.")
	s.log.Info().
		Int("config_version", s.cfg.Version).
		Dur("interval", s.cfg.PollInterval()).
		Dur("first_alert_delay", s.cfg.FirstAlertDelay()).
		Dur("alert_frequency", s.cfg.AlertFrequency()).
		Int("mute_after", s.cfg.Monitor.MuteAfterNAlerts).
		Int64("check_count", s.checkCount).
		Msg("monitor started")
	return nil
}

// Shutdown records the service stop.
func (s *Service) Shutdown(ctx context.Context) error {
	s.appendLifecycleEvent(ctx, data.EventServiceStopped, "Background monitor stopped.")
	return nil
}

func (s *Service) appendLifecycleEvent(ctx context.Context, kind data.EventKind, details string) {
	e := &data.AlertLogEntry{
		Timestamp: s.now(),
		Kind:      kind,
		Details:   details,
		Severity:  data.SeverityInfo,
	}
	if err := s.Repo.AppendEvent(ctx, e); err != nil {
		s.log.Error().Err(err).Str("kind", string(kind)).Msg("failed to record lifecycle event")
	}
}

// RunCycle performs poll → reconcile → alert → dispatch once. Any
// error leaves stored state at the previous committed cycle; the next
// cycle retries from there.
func (s *Service) RunCycle(ctx context.Context) error {
	start := s.now()
	s.checkCount++

	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("load state snapshot: %w", err)
	}

	results := s.runPolls(ctx, snap)

	batch := reconcile(s.now(), snap, results, s.cfg.NVRIPs(), s.checkCount)
	if err := s.Repo.CommitCycle(ctx, batch); err != nil {
		metrics.CyclesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("commit cycle %d: %w", s.checkCount, err)
	}
	s.publishEvents(batch.Events)

	if batch.Check != nil {
		metrics.CamerasTotal.Set(float64(batch.Check.TotalCameras))
		metrics.CamerasOnline.Set(float64(batch.Check.OnlineCameras))
	}

	if err := s.evaluateAndDispatch(ctx); err != nil {
		metrics.CyclesTotal.WithLabelValues("error").Inc()
		return err
	}

	s.logSummary(results)
	metrics.CyclesTotal.WithLabelValues("ok").Inc()
	metrics.CycleDuration.Observe(s.now().Sub(start).Seconds())
	return nil
}

func (s *Service) loadSnapshot(ctx context.Context) (poller.Snapshot, error) {
	records, err := s.Repo.ListCameras(ctx)
	if err != nil {
		return nil, err
	}
	snap := make(poller.Snapshot, len(records))
	for _, r := range records {
		snap[r.Key()] = r
	}
	return snap, nil
}

// runPolls queries each configured NVR in turn. Polls only read the
// snapshot, so this loop could be parallelized without changing the
// reconciler.
func (s *Service) runPolls(ctx context.Context, snap poller.Snapshot) []*poller.Result {
	results := make([]*poller.Result, 0, len(s.cfg.NVRs))
	for _, nvr := range s.cfg.NVRs {
		res := s.Poller.Poll(ctx, nvr, snap)
		if res.Summary.Glyph == data.CheckGlyphError {
			metrics.NVRPollErrors.WithLabelValues(nvr.IP).Inc()
		}
		results = append(results, res)
	}
	return results
}

func (s *Service) evaluateAndDispatch(ctx context.Context) error {
	downCameras, err := s.Repo.ListNotOnline(ctx)
	if err != nil {
		return fmt.Errorf("list down cameras: %w", err)
	}
	if len(downCameras) == 0 {
		return nil
	}

	alertBatch, sendDigest := s.evaluateAlerts(s.now(), downCameras)
	if !sendDigest {
		// Nothing newly eligible; reconciler commits (recoveries
		// included) already stand.
		return nil
	}

	return s.dispatchDigest(ctx, downCameras, alertBatch)
}

func (s *Service) publishEvents(entries []data.AlertLogEntry) {
	for i := range entries {
		if err := s.Publisher.Publish(&entries[i]); err != nil {
			s.log.Warn().Err(err).Str("kind", string(entries[i].Kind)).Msg("event publish failed")
		}
	}
}

func (s *Service) logSummary(results []*poller.Result) {
	allOK := true
	for _, res := range results {
		ev := s.log.Info()
		if res.Summary.Glyph != data.CheckGlyphOK {
			ev = s.log.Warn()
			allOK = false
		}
		ev.Str("nvr", res.Summary.NVRIP).
			Int("online", res.Summary.Online).
			Int("total", res.Summary.Total).
			Str("status", res.Summary.Glyph).
			Int64("check", s.checkCount).
			Msg("nvr poll")
	}
	if allOK {
		s.log.Info().Int64("check", s.checkCount).Msg("all systems ok")
	} else {
		s.log.Warn().Int64("check", s.checkCount).Msg("alerts detected")
	}
}
