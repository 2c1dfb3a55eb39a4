package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mehdichamani/HikStatus/internal/data"
	"github.com/mehdichamani/HikStatus/internal/poller"
)

func TestStartupResumesCheckCounter(t *testing.T) {
	repo := new(MockStateRepo)
	s := newTestService(repo, new(MockPoller), new(MockTransport))

	repo.On("LastCheckNumber", mock.Anything).Return(int64(41), nil)
	repo.On("AppendEvent", mock.Anything, mock.MatchedBy(func(e *data.AlertLogEntry) bool {
		return e.Kind == data.EventServiceStarted
	})).Return(nil)

	require.NoError(t, s.Startup(context.Background()))
	assert.Equal(t, int64(41), s.checkCount)
	repo.AssertExpectations(t)
}

func TestStartupFailsWhenCounterUnavailable(t *testing.T) {
	repo := new(MockStateRepo)
	s := newTestService(repo, new(MockPoller), new(MockTransport))

	repo.On("LastCheckNumber", mock.Anything).Return(int64(0), errors.New("db down"))

	err := s.Startup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resume check counter")
}

func TestRunCycleHealthyFleet(t *testing.T) {
	repo := new(MockStateRepo)
	pol := new(MockPoller)
	mail := new(MockTransport)
	s := newTestService(repo, pol, mail)

	key := data.CameraKey{NVRIP: "10.0.0.1", ChannelID: "1"}
	res := resultFor("10.0.0.1", map[data.CameraKey]poller.Entry{
		key: onlineEntry("192.168.1.10", "Gate Cam", baseTime),
	})

	repo.On("ListCameras", mock.Anything).Return([]data.CameraRecord{}, nil)
	pol.On("Poll", mock.Anything, s.cfg.NVRs[0], mock.Anything).Return(res)
	repo.On("CommitCycle", mock.Anything, mock.MatchedBy(func(b *data.CycleBatch) bool {
		return len(b.Upserts) == 1 && b.Check != nil && b.Check.CheckNumber == 1
	})).Return(nil)
	repo.On("ListNotOnline", mock.Anything).Return([]data.CameraRecord{}, nil)

	require.NoError(t, s.RunCycle(context.Background()))

	repo.AssertExpectations(t)
	pol.AssertExpectations(t)
	mail.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunCycleNumbersAreMonotonic(t *testing.T) {
	repo := new(MockStateRepo)
	pol := new(MockPoller)
	s := newTestService(repo, pol, new(MockTransport))
	s.checkCount = 99

	res := resultFor("10.0.0.1", map[data.CameraKey]poller.Entry{})
	res.Summary.Glyph = data.CheckGlyphOK

	repo.On("ListCameras", mock.Anything).Return([]data.CameraRecord{}, nil)
	pol.On("Poll", mock.Anything, mock.Anything, mock.Anything).Return(res)
	repo.On("CommitCycle", mock.Anything, mock.MatchedBy(func(b *data.CycleBatch) bool {
		return b.Check.CheckNumber == 100
	})).Return(nil)
	repo.On("ListNotOnline", mock.Anything).Return([]data.CameraRecord{}, nil)

	require.NoError(t, s.RunCycle(context.Background()))
	repo.AssertExpectations(t)
}

func TestRunCycleDispatchesDigestForDueCamera(t *testing.T) {
	repo := new(MockStateRepo)
	pol := new(MockPoller)
	mail := new(MockTransport)
	s := newTestService(repo, pol, mail)

	key := data.CameraKey{NVRIP: "10.0.0.1", ChannelID: "1"}
	stored := downCamera("1", 20*time.Minute)
	res := resultFor("10.0.0.1", map[data.CameraKey]poller.Entry{
		key: {Status: data.StatusOffline, LastOnline: stored.LastOnline, DownCheckCount: 20, CameraIP: stored.CameraIP, CameraName: stored.CameraName},
	})

	repo.On("ListCameras", mock.Anything).Return([]data.CameraRecord{stored}, nil)
	pol.On("Poll", mock.Anything, mock.Anything, mock.Anything).Return(res)
	repo.On("CommitCycle", mock.Anything, mock.Anything).Return(nil)
	repo.On("ListNotOnline", mock.Anything).Return([]data.CameraRecord{stored}, nil)
	mail.On("Send", []string{"noc@example.com"}, mock.Anything, mock.Anything).Return(nil)
	repo.On("CommitAlerts", mock.Anything, mock.MatchedBy(func(b *data.AlertBatch) bool {
		return len(b.Updates) == 1 && b.Updates[0].AlertEmailCount == 1
	})).Return(nil)

	require.NoError(t, s.RunCycle(context.Background()))

	repo.AssertExpectations(t)
	mail.AssertExpectations(t)
}

func TestRunCycleNoDigestBelowDelay(t *testing.T) {
	repo := new(MockStateRepo)
	pol := new(MockPoller)
	mail := new(MockTransport)
	s := newTestService(repo, pol, mail)

	stored := downCamera("1", 5*time.Minute)
	res := resultFor("10.0.0.1", map[data.CameraKey]poller.Entry{})
	res.Summary.Glyph = data.CheckGlyphOK

	repo.On("ListCameras", mock.Anything).Return([]data.CameraRecord{stored}, nil)
	pol.On("Poll", mock.Anything, mock.Anything, mock.Anything).Return(res)
	repo.On("CommitCycle", mock.Anything, mock.Anything).Return(nil)
	repo.On("ListNotOnline", mock.Anything).Return([]data.CameraRecord{stored}, nil)

	require.NoError(t, s.RunCycle(context.Background()))

	mail.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "CommitAlerts", mock.Anything, mock.Anything)
}

func TestRunCycleSnapshotErrorAborts(t *testing.T) {
	repo := new(MockStateRepo)
	pol := new(MockPoller)
	s := newTestService(repo, pol, new(MockTransport))

	repo.On("ListCameras", mock.Anything).Return(nil, errors.New("db down"))

	err := s.RunCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load state snapshot")
	pol.AssertNotCalled(t, "Poll", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunCycleCommitErrorAborts(t *testing.T) {
	repo := new(MockStateRepo)
	pol := new(MockPoller)
	s := newTestService(repo, pol, new(MockTransport))

	res := resultFor("10.0.0.1", map[data.CameraKey]poller.Entry{})
	res.Summary.Glyph = data.CheckGlyphOK

	repo.On("ListCameras", mock.Anything).Return([]data.CameraRecord{}, nil)
	pol.On("Poll", mock.Anything, mock.Anything, mock.Anything).Return(res)
	repo.On("CommitCycle", mock.Anything, mock.Anything).Return(errors.New("tx aborted"))

	err := s.RunCycle(context.Background())
	require.Error(t, err)
	repo.AssertNotCalled(t, "ListNotOnline", mock.Anything)
}
