package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mehdichamani/HikStatus/internal/data"
)

// MockReportRepo
type MockReportRepo struct {
	mock.Mock
}

func (m *MockReportRepo) ListCameras(ctx context.Context) ([]data.CameraRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]data.CameraRecord), args.Error(1)
}

func (m *MockReportRepo) ListNotOnline(ctx context.Context) ([]data.CameraRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]data.CameraRecord), args.Error(1)
}

func (m *MockReportRepo) ListEvents(ctx context.Context, f data.EventFilter) ([]data.AlertLogEntry, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]data.AlertLogEntry), args.Error(1)
}

func (m *MockReportRepo) ListChecks(ctx context.Context, limit int) ([]data.CheckRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]data.CheckRecord), args.Error(1)
}
