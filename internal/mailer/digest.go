package mailer

import (
	"fmt"
	"html"
	"strings"

	"github.com/mehdichamani/HikStatus/internal/data"
)

// FormatDowntime renders downtime minutes as "HH:MM", or "Dd HH:MM"
// past one day.
func FormatDowntime(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	days := minutes / 1440
	hours := (minutes % 1440) / 60
	mins := minutes % 60
	if days > 0 {
		return fmt.Sprintf("%dd %02d:%02d", days, hours, mins)
	}
	return fmt.Sprintf("%02d:%02d", hours, mins)
}

// DigestSubject builds the digest subject line.
func DigestSubject(totalDown int, checkNumber int64) string {
	return fmt.Sprintf("%d Camera/NVR Alert(s) (Check #%d)", totalDown, checkNumber)
}

// BuildDigestHTML renders the full-visibility table of every camera
// currently down or errored, muted ones included. One check equals one
// minute of downtime, so down_check_count doubles as minutes.
func BuildDigestHTML(downCameras []data.CameraRecord, checkNumber int64) string {
	var b strings.Builder

	b.WriteString(`<html lang="en"><head><meta charset="UTF-8"><style>
body { font-family: Arial, sans-serif; font-size: 16px; line-height: 1.6; }
table { border-collapse: collapse; width: 100%; margin-bottom: 20px; }
th, td { border: 1px solid #ddd; padding: 12px; text-align: left; }
th { background-color: #f2f2f2; font-weight: bold; }
tr:nth-child(even) { background-color: #f9f9f9; }
.header { font-size: 24px; font-weight: bold; color: #dc3545; }
.status-offline { font-weight: bold; color: #dc3545; }
.status-error { font-weight: bold; color: #b30000; background-color: #fdd; }
.status-muted { font-weight: bold; color: #666; background-color: #eee; }
</style></head><body>`)

	fmt.Fprintf(&b, `<div class="header">Camera Alert (Check #%d)</div>`, checkNumber)
	fmt.Fprintf(&b, `<p>Total %d Camera/NVR are currently offline.</p>`, len(downCameras))
	b.WriteString(`<h3>Offline List</h3>`)
	b.WriteString(`<table><tr><th>Camera Name / Error</th><th>NVR</th><th>IP</th><th>Status</th><th>Alerts Sent</th></tr>`)

	for i := range downCameras {
		writeDigestRow(&b, &downCameras[i])
	}

	b.WriteString(`</table></body></html>`)
	return b.String()
}

func writeDigestRow(b *strings.Builder, cam *data.CameraRecord) {
	downtime := FormatDowntime(cam.DownCheckCount)
	alertCount := fmt.Sprintf("%d", cam.AlertEmailCount)
	if cam.IsMuted {
		alertCount = fmt.Sprintf("Muted (Sent: %d)", cam.AlertEmailCount)
	}

	var statusText, statusClass, nameCell string
	switch cam.Status {
	case data.StatusOffline:
		nameCell = html.EscapeString(cam.CameraName)
		if cam.IsMuted {
			statusText = fmt.Sprintf("Muted - Offline for %s", downtime)
			statusClass = "status-muted"
		} else {
			statusText = fmt.Sprintf("Offline for %s", downtime)
			statusClass = "status-offline"
		}
	case data.StatusSystemError:
		// For NVR-level failures the camera name carries the error
		// detail.
		nameCell = "<b>NVR ERROR</b>"
		statusText = fmt.Sprintf("System Error: %s", html.EscapeString(cam.CameraName))
		statusClass = "status-error"
	default:
		nameCell = html.EscapeString(cam.CameraName)
		statusText = fmt.Sprintf("%s - Offline for %s", cam.Status, downtime)
		statusClass = "status-error"
	}

	fmt.Fprintf(b, `<tr><td>%s</td><td>%s</td><td>%s</td><td class=%q>%s</td><td>%s</td></tr>`,
		nameCell,
		html.EscapeString(cam.NVRIP),
		html.EscapeString(cam.CameraIP),
		statusClass,
		statusText,
		alertCount,
	)
}
