package monitor

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mehdichamani/HikStatus/internal/config"
	"github.com/mehdichamani/HikStatus/internal/data"
	"github.com/mehdichamani/HikStatus/internal/poller"
)

// MockStateRepo
type MockStateRepo struct {
	mock.Mock
}

func (m *MockStateRepo) ListCameras(ctx context.Context) ([]data.CameraRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]data.CameraRecord), args.Error(1)
}

func (m *MockStateRepo) ListNotOnline(ctx context.Context) ([]data.CameraRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]data.CameraRecord), args.Error(1)
}

func (m *MockStateRepo) LastCheckNumber(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStateRepo) CommitCycle(ctx context.Context, batch *data.CycleBatch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *MockStateRepo) CommitAlerts(ctx context.Context, batch *data.AlertBatch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *MockStateRepo) AppendEvent(ctx context.Context, e *data.AlertLogEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

// MockPoller
type MockPoller struct {
	mock.Mock
}

func (m *MockPoller) Poll(ctx context.Context, nvr config.NVR, snap poller.Snapshot) *poller.Result {
	args := m.Called(ctx, nvr, snap)
	return args.Get(0).(*poller.Result)
}

// MockTransport
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(recipients []string, subject, htmlBody string) error {
	args := m.Called(recipients, subject, htmlBody)
	return args.Error(0)
}
