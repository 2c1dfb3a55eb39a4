// Package poller performs the per-NVR status request and turns the
// ISAPI channel list (or the failure to get one) into per-channel
// verdicts. It never touches stored state: it reads a snapshot of the
// previous cycle and returns transient entries for the reconciler.
package poller

import (
	"context"
	"encoding/xml"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/icholy/digest"
	"github.com/rs/zerolog"

	"github.com/mehdichamani/HikStatus/internal/config"
	"github.com/mehdichamani/HikStatus/internal/data"
	"github.com/mehdichamani/HikStatus/internal/names"
)

const (
	statusPath     = "/ISAPI/ContentMgmt/InputProxy/channels/status"
	requestTimeout = 10 * time.Second

	// Channel id of the synthesized record that represents the NVR
	// itself when a whole-box failure hits an NVR with no known
	// channels.
	PlaceholderChannelID = "0"
)

// Entry is the transient per-channel poll verdict.
type Entry struct {
	Status         data.CameraStatus
	LastOnline     time.Time
	DownCheckCount int
	CameraIP       string
	CameraName     string
}

// Summary is the NVR-level health line for one poll.
type Summary struct {
	NVRIP  string
	Total  int
	Online int
	Glyph  string
}

// Result carries everything one NVR poll produced.
type Result struct {
	Entries map[data.CameraKey]Entry
	Summary Summary
	Events  []data.AlertLogEntry
}

// Snapshot is the read-only prior state the poller consults to carry
// down-counters and downtime start times across cycles.
type Snapshot map[data.CameraKey]data.CameraRecord

// StatusPoller polls one NVR per call.
type StatusPoller interface {
	Poll(ctx context.Context, nvr config.NVR, snap Snapshot) *Result
}

// ISAPIPoller implements StatusPoller against the Hikvision ISAPI
// channel status endpoint with HTTP digest auth.
type ISAPIPoller struct {
	password string
	names    names.Table
	log      zerolog.Logger
	now      func() time.Time

	// newClient exists so tests can shorten the timeout.
	newClient func(user, pass string) *http.Client
}

func NewISAPIPoller(password string, table names.Table, log zerolog.Logger) *ISAPIPoller {
	return &ISAPIPoller{
		password:  password,
		names:     table,
		log:       log,
		now:       time.Now,
		newClient: newDigestClient,
	}
}

func newDigestClient(user, pass string) *http.Client {
	return &http.Client{
		Timeout: requestTimeout,
		Transport: &digest.Transport{
			Username: user,
			Password: pass,
		},
	}
}

type channelStatusList struct {
	XMLName  xml.Name        `xml:"InputProxyChannelStatusList"`
	Channels []channelStatus `xml:"InputProxyChannelStatus"`
}

type channelStatus struct {
	ID         string `xml:"id"`
	Online     string `xml:"online"`
	Descriptor struct {
		IPAddress string `xml:"ipAddress"`
	} `xml:"sourceInputPortDescriptor"`
}

// Poll issues one authenticated status request and classifies the
// outcome. Every failure mode degrades to SystemError entries; the
// cycle itself never fails because of one NVR.
func (p *ISAPIPoller) Poll(ctx context.Context, nvr config.NVR, snap Snapshot) *Result {
	now := p.now()
	res := &Result{
		Entries: make(map[data.CameraKey]Entry),
		Summary: Summary{NVRIP: nvr.IP, Glyph: data.CheckGlyphPartial},
	}

	url := fmt.Sprintf("http://%s%s", nvr.IP, statusPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		p.failNVR(res, nvr.IP, now, fmt.Sprintf("Bad Request (%v)", err), snap)
		return res
	}

	resp, err := p.newClient(nvr.User, p.password).Do(req)
	if err != nil {
		detail := "Connection Failed"
		if isTimeout(err) {
			detail = "Request Timed Out"
		}
		p.log.Error().Str("nvr", nvr.IP).Err(err).Msg("NVR poll failed")
		p.failNVR(res, nvr.IP, now, detail, snap)
		return res
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail := fmt.Sprintf("HTTP %d (Wrong Password?)", resp.StatusCode)
		p.log.Error().Str("nvr", nvr.IP).Int("status", resp.StatusCode).Msg("NVR returned non-200")
		res.Summary.Glyph = data.CheckGlyphError
		p.failNVR(res, nvr.IP, now, detail, snap)
		return res
	}

	var list channelStatusList
	if err := xml.NewDecoder(resp.Body).Decode(&list); err != nil {
		p.log.Error().Str("nvr", nvr.IP).Err(err).Msg("NVR status payload unparseable")
		p.failNVR(res, nvr.IP, now, fmt.Sprintf("Malformed Payload (%v)", err), snap)
		return res
	}

	for _, ch := range list.Channels {
		res.Summary.Total++
		key := data.CameraKey{NVRIP: nvr.IP, ChannelID: ch.ID}
		camIP := ch.Descriptor.IPAddress
		if camIP == "" {
			camIP = "N/A"
		}
		camName := p.names.Resolve(camIP, ch.ID)

		if ch.Online == "true" {
			res.Summary.Online++
			res.Entries[key] = Entry{
				Status:         data.StatusOnline,
				LastOnline:     now,
				DownCheckCount: 0,
				CameraIP:       camIP,
				CameraName:     camName,
			}
			continue
		}

		prev, known := snap[key]
		downCount := prev.DownCheckCount + 1
		lastOnline := now
		if known && !prev.LastOnline.IsZero() {
			// Preserve the moment the downtime started.
			lastOnline = prev.LastOnline
		}
		res.Entries[key] = Entry{
			Status:         data.StatusOffline,
			LastOnline:     lastOnline,
			DownCheckCount: downCount,
			CameraIP:       camIP,
			CameraName:     camName,
		}

		if downCount == 1 {
			p.log.Warn().Str("camera", camName).Str("ip", camIP).Str("nvr", nvr.IP).Msg("camera offline")
			res.Events = append(res.Events, cameraDownEvent(now, nvr.IP, camIP, camName, downCount))
		}
	}

	if res.Summary.Total == 0 {
		// An NVR answering 200 with no channels is misconfigured, not
		// healthy.
		p.failNVR(res, nvr.IP, now, "NVR OK but 0 channels reported", snap)
		return res
	}

	if res.Summary.Online == res.Summary.Total {
		res.Summary.Glyph = data.CheckGlyphOK
	}
	return res
}

// failNVR marks every previously known channel of the NVR as a system
// error, or synthesizes a single placeholder entry when none are
// known. The downtime clock starts at the first failed poll.
func (p *ISAPIPoller) failNVR(res *Result, nvrIP string, now time.Time, detail string, snap Snapshot) {
	res.Events = append(res.Events, data.AlertLogEntry{
		Timestamp: now,
		Kind:      data.EventNVRError,
		NVRIP:     nvrIP,
		Details:   detail,
		Severity:  data.SeverityError,
	})

	var keys []data.CameraKey
	for key := range snap {
		if key.NVRIP == nvrIP {
			keys = append(keys, key)
		}
	}

	if len(keys) == 0 {
		key := data.CameraKey{NVRIP: nvrIP, ChannelID: PlaceholderChannelID}
		prev, known := snap[key]
		res.Entries[key] = Entry{
			Status:         data.StatusSystemError,
			LastOnline:     errorLastOnline(prev, known, now),
			DownCheckCount: prev.DownCheckCount + 1,
			CameraIP:       "N/A",
			CameraName:     fmt.Sprintf("NVR Error (%s)", detail),
		}
		return
	}

	for _, key := range keys {
		prev := snap[key]
		name := prev.CameraName
		if name == "" {
			name = "Unknown"
		}
		ip := prev.CameraIP
		if ip == "" {
			ip = "N/A"
		}
		res.Entries[key] = Entry{
			Status:         data.StatusSystemError,
			LastOnline:     errorLastOnline(prev, true, now),
			DownCheckCount: prev.DownCheckCount + 1,
			CameraIP:       ip,
			CameraName:     name,
		}
	}
}

func errorLastOnline(prev data.CameraRecord, known bool, now time.Time) time.Time {
	if !known || prev.Status.IsOnline() || prev.LastOnline.IsZero() {
		// It just failed: downtime starts now.
		return now
	}
	return prev.LastOnline
}

func cameraDownEvent(now time.Time, nvrIP, camIP, camName string, downCount int) data.AlertLogEntry {
	dc := downCount
	return data.AlertLogEntry{
		Timestamp:      now,
		Kind:           data.EventCameraDown,
		NVRIP:          nvrIP,
		CameraIP:       camIP,
		CameraName:     camName,
		Status:         data.StatusOffline,
		Details:        "Camera detected as Offline (1st check)",
		Severity:       data.SeverityWarning,
		DownCheckCount: &dc,
	}
}

func isTimeout(err error) bool {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return true
	}
	return false
}
