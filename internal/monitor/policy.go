package monitor

import (
	"fmt"
	"time"

	"github.com/mehdichamani/HikStatus/internal/data"
)

// evaluateAlerts inspects every non-online camera and stages the
// tiered alert/mute decisions for this cycle. Nothing is written here:
// the returned batch is committed by the dispatcher only after the
// digest email goes out, so a failed delivery costs nothing and the
// identical evaluation reruns next cycle.
//
// The digest flag is set as soon as any camera is eligible, whether
// its outcome is an alert or a mute.
func (s *Service) evaluateAlerts(now time.Time, downCameras []data.CameraRecord) (*data.AlertBatch, bool) {
	batch := &data.AlertBatch{}
	sendDigest := false

	firstDelay := s.cfg.FirstAlertDelay()
	frequency := s.cfg.AlertFrequency()
	muteAfter := s.cfg.Monitor.MuteAfterNAlerts

	for _, cam := range downCameras {
		if cam.IsMuted {
			// Stays silent until recovery clears the mute.
			continue
		}

		downtime := now.Sub(cam.LastOnline)
		isInitial := cam.AlertEmailCount == 0 && downtime >= firstDelay

		isRecurring := false
		if cam.AlertEmailCount > 0 && cam.LastAlertTime != nil {
			isRecurring = now.Sub(*cam.LastAlertTime) >= frequency
		}

		if !isInitial && !isRecurring {
			continue
		}

		sendDigest = true

		if cam.AlertEmailCount >= muteAfter {
			cam.IsMuted = true
			s.log.Info().Str("camera", cam.CameraName).Int("threshold", muteAfter).Msg("mute threshold reached, muting alerts")
			batch.Events = append(batch.Events, data.AlertLogEntry{
				Timestamp:  now,
				Kind:       data.EventCameraMuted,
				NVRIP:      cam.NVRIP,
				CameraIP:   cam.CameraIP,
				CameraName: cam.CameraName,
				Status:     cam.Status,
				Details:    fmt.Sprintf("Alerts muted after %d email(s) sent.", cam.AlertEmailCount),
				Severity:   data.SeverityInfo,
			})
		} else {
			t := now
			cam.LastAlertTime = &t
			cam.AlertEmailCount++
			downCount := cam.DownCheckCount
			s.log.Warn().Str("camera", cam.CameraName).Int("count", cam.AlertEmailCount).Msg("alert triggered")
			batch.Events = append(batch.Events, data.AlertLogEntry{
				Timestamp:      now,
				Kind:           data.EventMailAlertTriggered,
				NVRIP:          cam.NVRIP,
				CameraIP:       cam.CameraIP,
				CameraName:     cam.CameraName,
				Status:         cam.Status,
				Details:        fmt.Sprintf("Triggering Alert #%d (Initial: %t)", cam.AlertEmailCount, isInitial),
				Severity:       data.SeverityWarning,
				DownCheckCount: &downCount,
			})
		}

		batch.Updates = append(batch.Updates, cam)
	}

	return batch, sendDigest
}
