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
)

func TestDispatchDigestCommitsOnSuccess(t *testing.T) {
	repo := new(MockStateRepo)
	mail := new(MockTransport)
	s := newTestService(repo, new(MockPoller), mail)
	s.checkCount = 42

	down := []data.CameraRecord{downCamera("1", 20*time.Minute)}
	staged := down[0]
	staged.AlertEmailCount = 1
	batch := &data.AlertBatch{
		Updates: []data.CameraRecord{staged},
		Events:  []data.AlertLogEntry{{Kind: data.EventMailAlertTriggered}},
	}

	mail.On("Send", []string{"noc@example.com"}, mock.Anything, mock.Anything).Return(nil)
	repo.On("CommitAlerts", mock.Anything, batch).Return(nil)

	err := s.dispatchDigest(context.Background(), down, batch)
	require.NoError(t, err)

	mail.AssertExpectations(t)
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "AppendEvent", mock.Anything, mock.Anything)

	// The committed batch carries the delivery receipt.
	require.Len(t, batch.Events, 2)
	assert.Equal(t, data.EventMailSent, batch.Events[1].Kind)
	assert.Equal(t, "noc@example.com", batch.Events[1].MailRecipients)

	subject := mail.Calls[0].Arguments.String(1)
	body := mail.Calls[0].Arguments.String(2)
	assert.Equal(t, "1 Camera/NVR Alert(s) (Check #42)", subject)
	assert.Contains(t, body, "Cam 1")
}

func TestDispatchDigestDropsBatchOnMailFailure(t *testing.T) {
	repo := new(MockStateRepo)
	mail := new(MockTransport)
	s := newTestService(repo, new(MockPoller), mail)

	down := []data.CameraRecord{downCamera("1", 20*time.Minute)}
	batch := &data.AlertBatch{Updates: down}

	mail.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp: connection refused"))
	repo.On("AppendEvent", mock.Anything, mock.MatchedBy(func(e *data.AlertLogEntry) bool {
		return e.Kind == data.EventMailFailed && e.Severity == data.SeverityError
	})).Return(nil)

	err := s.dispatchDigest(context.Background(), down, batch)
	require.NoError(t, err, "mail failure is absorbed, not surfaced")

	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "CommitAlerts", mock.Anything, mock.Anything)
}

func TestDispatchDigestSurfacesCommitFailure(t *testing.T) {
	repo := new(MockStateRepo)
	mail := new(MockTransport)
	s := newTestService(repo, new(MockPoller), mail)

	down := []data.CameraRecord{downCamera("1", 20*time.Minute)}
	batch := &data.AlertBatch{Updates: down}

	mail.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	repo.On("CommitAlerts", mock.Anything, mock.Anything).Return(errors.New("db down"))

	err := s.dispatchDigest(context.Background(), down, batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit alert state after send")
}

func TestDispatchDigestTableShowsStagedState(t *testing.T) {
	repo := new(MockStateRepo)
	mail := new(MockTransport)
	s := newTestService(repo, new(MockPoller), mail)

	down := []data.CameraRecord{downCamera("1", 20*time.Minute), downCamera("2", 3*time.Hour)}
	mutedCam := down[1]
	mutedCam.IsMuted = true
	mutedCam.AlertEmailCount = 3
	batch := &data.AlertBatch{Updates: []data.CameraRecord{mutedCam}}

	mail.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	repo.On("CommitAlerts", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, s.dispatchDigest(context.Background(), down, batch))

	body := mail.Calls[0].Arguments.String(2)
	assert.Contains(t, body, "Muted (Sent: 3)", "table reflects this cycle's mute, not the stored row")
	assert.Contains(t, body, "Cam 1")
}

func TestMergeStagedPreservesOrder(t *testing.T) {
	a := downCamera("1", time.Hour)
	b := downCamera("2", time.Hour)
	staged := b
	staged.AlertEmailCount = 2

	out := mergeStaged([]data.CameraRecord{a, b}, []data.CameraRecord{staged})

	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0].ChannelID)
	assert.Equal(t, 2, out[1].AlertEmailCount)
}
