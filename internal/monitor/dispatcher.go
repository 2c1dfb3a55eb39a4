package monitor

import (
	"context"
	"fmt"
	"strings"

	"github.com/mehdichamani/HikStatus/internal/data"
	"github.com/mehdichamani/HikStatus/internal/mailer"
	"github.com/mehdichamani/HikStatus/internal/metrics"
)

// dispatchDigest sends the one digest email for this cycle and, only
// on delivered mail, commits the staged alert mutations. The email
// covers every currently down camera, muted and already-alerted ones
// included, so the recipient always sees the complete picture.
func (s *Service) dispatchDigest(ctx context.Context, downCameras []data.CameraRecord, batch *data.AlertBatch) error {
	now := s.now()
	recipients := s.cfg.Mail.Recipients

	// The table reflects this cycle's staged decisions (incremented
	// counters, fresh mutes), not the pre-decision rows.
	merged := mergeStaged(downCameras, batch.Updates)

	subject := mailer.DigestSubject(len(merged), s.checkCount)
	body := mailer.BuildDigestHTML(merged, s.checkCount)

	if err := s.Mail.Send(recipients, subject, body); err != nil {
		metrics.DigestEmails.WithLabelValues("failed").Inc()
		s.log.Error().Err(err).Msg("digest email failed, alert state rolled back; will retry next cycle")

		failEvent := &data.AlertLogEntry{
			Timestamp:      now,
			Kind:           data.EventMailFailed,
			Details:        "Failed to send alert digest email.",
			Severity:       data.SeverityError,
			MailRecipients: strings.Join(recipients, ","),
		}
		if appendErr := s.Repo.AppendEvent(ctx, failEvent); appendErr != nil {
			s.log.Error().Err(appendErr).Msg("failed to record mail_failed event")
		}
		s.publishEvents([]data.AlertLogEntry{*failEvent})
		// The staged batch is simply dropped; stored state is
		// untouched and next cycle re-evaluates identically.
		return nil
	}

	metrics.DigestEmails.WithLabelValues("sent").Inc()

	batch.Events = append(batch.Events, data.AlertLogEntry{
		Timestamp:      now,
		Kind:           data.EventMailSent,
		Details:        fmt.Sprintf("Digest email sent with %d alert(s)", len(merged)),
		Severity:       data.SeverityInfo,
		MailRecipients: strings.Join(recipients, ","),
	})

	if err := s.Repo.CommitAlerts(ctx, batch); err != nil {
		// The mail went out but the counters did not advance; the
		// next cycle may re-alert early. Surface it loudly.
		return fmt.Errorf("commit alert state after send: %w", err)
	}

	s.publishEvents(batch.Events)
	s.log.Info().Int("cameras", len(merged)).Msg("alert digest sent")
	return nil
}

// mergeStaged overlays staged updates onto the stored down-camera list
// by key, preserving order.
func mergeStaged(stored []data.CameraRecord, staged []data.CameraRecord) []data.CameraRecord {
	byKey := make(map[data.CameraKey]data.CameraRecord, len(staged))
	for _, u := range staged {
		byKey[u.Key()] = u
	}
	out := make([]data.CameraRecord, 0, len(stored))
	for _, r := range stored {
		if u, ok := byKey[r.Key()]; ok {
			out = append(out, u)
		} else {
			out = append(out, r)
		}
	}
	return out
}
