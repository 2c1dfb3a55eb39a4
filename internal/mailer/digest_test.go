package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mehdichamani/HikStatus/internal/data"
)

func TestFormatDowntime(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{0, "00:00"},
		{-5, "00:00"},
		{1, "00:01"},
		{59, "00:59"},
		{60, "01:00"},
		{95, "01:35"},
		{1439, "23:59"},
		{1440, "1d 00:00"},
		{1501, "1d 01:01"},
		{4321, "3d 00:01"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, FormatDowntime(tc.minutes), "minutes=%d", tc.minutes)
	}
}

func TestDigestSubject(t *testing.T) {
	assert.Equal(t, "3 Camera/NVR Alert(s) (Check #17)", DigestSubject(3, 17))
}

func TestBuildDigestHTMLOfflineRow(t *testing.T) {
	cams := []data.CameraRecord{{
		NVRIP: "10.0.0.1", ChannelID: "2", CameraIP: "192.168.1.11", CameraName: "Lobby",
		Status: data.StatusOffline, DownCheckCount: 95, AlertEmailCount: 1,
	}}

	body := BuildDigestHTML(cams, 42)

	assert.Contains(t, body, "Camera Alert (Check #42)")
	assert.Contains(t, body, "Total 1 Camera/NVR are currently offline.")
	assert.Contains(t, body, "Lobby")
	assert.Contains(t, body, "Offline for 01:35")
	assert.Contains(t, body, `class="status-offline"`)
	assert.NotContains(t, body, "Muted")
}

func TestBuildDigestHTMLMutedRow(t *testing.T) {
	cams := []data.CameraRecord{{
		NVRIP: "10.0.0.1", ChannelID: "3", CameraIP: "192.168.1.12", CameraName: "Yard",
		Status: data.StatusOffline, DownCheckCount: 2000, AlertEmailCount: 3, IsMuted: true,
	}}

	body := BuildDigestHTML(cams, 7)

	assert.Contains(t, body, "Muted - Offline for 1d 09:20")
	assert.Contains(t, body, "Muted (Sent: 3)")
	assert.Contains(t, body, `class="status-muted"`)
}

func TestBuildDigestHTMLSystemErrorRow(t *testing.T) {
	cams := []data.CameraRecord{{
		NVRIP: "10.0.0.9", ChannelID: "0", CameraIP: "N/A",
		CameraName: "NVR Error (Connection Failed)", Status: data.StatusSystemError, DownCheckCount: 3,
	}}

	body := BuildDigestHTML(cams, 8)

	assert.Contains(t, body, "<b>NVR ERROR</b>")
	assert.Contains(t, body, "System Error: NVR Error (Connection Failed)")
	assert.Contains(t, body, `class="status-error"`)
}

func TestBuildDigestHTMLEscapesNames(t *testing.T) {
	cams := []data.CameraRecord{{
		NVRIP: "10.0.0.1", ChannelID: "4", CameraIP: "192.168.1.13",
		CameraName: `Cam <script>"x"</script>`, Status: data.StatusOffline, DownCheckCount: 20,
	}}

	body := BuildDigestHTML(cams, 9)

	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "Cam &lt;script&gt;")
}

func TestBuildDigestHTMLListsEveryCamera(t *testing.T) {
	var cams []data.CameraRecord
	for _, name := range []string{"Gate Cam", "Lobby", "Yard"} {
		cams = append(cams, data.CameraRecord{
			NVRIP: "10.0.0.1", CameraName: name, Status: data.StatusOffline, DownCheckCount: 30,
		})
	}

	body := BuildDigestHTML(cams, 10)

	assert.Contains(t, body, "Total 3 Camera/NVR are currently offline.")
	for _, name := range []string{"Gate Cam", "Lobby", "Yard"} {
		assert.Contains(t, body, name)
	}
}
