package monitor

import (
	"fmt"
	"time"

	"github.com/mehdichamani/HikStatus/internal/data"
	"github.com/mehdichamani/HikStatus/internal/mailer"
	"github.com/mehdichamani/HikStatus/internal/poller"
)

// reconcile merges one cycle's poll results against the stored
// snapshot and produces the batch of writes for that cycle: upserts
// with transition handling, stale-channel deletions, transition
// events and the per-cycle check record.
//
// It is a pure function of its inputs, so replaying it with the same
// poll results yields the same batch.
func reconcile(now time.Time, snap poller.Snapshot, results []*poller.Result, configuredNVRs []string, checkNumber int64) *data.CycleBatch {
	batch := &data.CycleBatch{}
	pollKeys := make(map[data.CameraKey]struct{})
	online, offline := 0, 0

	for _, res := range results {
		batch.Events = append(batch.Events, res.Events...)

		for key, entry := range res.Entries {
			pollKeys[key] = struct{}{}

			rec, existed := snap[key]
			if !existed {
				rec = data.CameraRecord{
					NVRIP:      key.NVRIP,
					ChannelID:  key.ChannelID,
					LastOnline: now,
				}
			}

			wasOnline := existed && rec.Status.IsOnline()
			wasDown := existed && rec.Status != "" && !rec.Status.IsOnline()

			lastOnline := entry.LastOnline
			switch {
			case wasDown && entry.Status.IsOnline():
				// Recovery closes the downtime episode: alert state
				// resets atomically with the status flip.
				duration := now.Sub(rec.LastOnline)
				batch.Events = append(batch.Events, cameraUpEvent(now, &rec, entry, duration))
				rec.AlertEmailCount = 0
				rec.IsMuted = false
				rec.LastAlertTime = nil
			case wasOnline && !entry.Status.IsOnline():
				// First non-online observation: the downtime clock
				// starts here, whatever the poller carried over.
				lastOnline = now
			}

			rec.CameraIP = entry.CameraIP
			rec.CameraName = entry.CameraName
			rec.Status = entry.Status
			rec.LastOnline = lastOnline
			rec.LastCheck = now
			rec.DownCheckCount = entry.DownCheckCount

			if rec.Status.IsOnline() {
				online++
			} else {
				offline++
			}
			batch.Upserts = append(batch.Upserts, rec)
		}
	}

	// Prune channels the NVR no longer reports. Records for NVRs that
	// were not polled this cycle are left alone.
	configured := make(map[string]struct{}, len(configuredNVRs))
	for _, ip := range configuredNVRs {
		configured[ip] = struct{}{}
	}
	for key := range snap {
		if _, polled := pollKeys[key]; polled {
			continue
		}
		if _, ok := configured[key.NVRIP]; ok {
			batch.Deletes = append(batch.Deletes, key)
		}
	}

	glyph := data.CheckGlyphOK
	if offline > 0 {
		glyph = data.CheckGlyphPartial
	}
	batch.Check = &data.CheckRecord{
		CheckNumber:   checkNumber,
		Timestamp:     now,
		NVRIP:         "ALL",
		TotalCameras:  online + offline,
		OnlineCameras: online,
		Status:        glyph,
	}
	return batch
}

func cameraUpEvent(now time.Time, rec *data.CameraRecord, entry poller.Entry, duration time.Duration) data.AlertLogEntry {
	seconds := int(duration.Seconds())
	if seconds < 0 {
		seconds = 0
	}
	downCount := rec.DownCheckCount
	return data.AlertLogEntry{
		Timestamp:       now,
		Kind:            data.EventCameraUp,
		NVRIP:           rec.NVRIP,
		CameraIP:        entry.CameraIP,
		CameraName:      entry.CameraName,
		Status:          data.StatusOnline,
		Details:         fmt.Sprintf("Camera is back online. Downtime: %s", mailer.FormatDowntime(seconds/60)),
		Severity:        data.SeverityInfo,
		DownCheckCount:  &downCount,
		DurationSeconds: &seconds,
	}
}
