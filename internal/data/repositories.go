package data

import (
	"context"
	"time"
)

// StateRepository is the store boundary used by the monitor cycle.
// Batch methods are transactional; readers always observe the state as
// of the last committed batch.
type StateRepository interface {
	ListCameras(ctx context.Context) ([]CameraRecord, error)
	ListNotOnline(ctx context.Context) ([]CameraRecord, error)
	LastCheckNumber(ctx context.Context) (int64, error)

	CommitCycle(ctx context.Context, batch *CycleBatch) error
	CommitAlerts(ctx context.Context, batch *AlertBatch) error

	// AppendEvent writes a single event outside any cycle batch
	// (service lifecycle, mail_failed).
	AppendEvent(ctx context.Context, e *AlertLogEntry) error
}

// EventFilter narrows alert-log queries from the reporting surface.
type EventFilter struct {
	Kind     EventKind
	Severity Severity
	Since    *time.Time
	Limit    int
}

// ReportRepository is the read-only view served over HTTP.
type ReportRepository interface {
	ListCameras(ctx context.Context) ([]CameraRecord, error)
	ListNotOnline(ctx context.Context) ([]CameraRecord, error)
	ListEvents(ctx context.Context, f EventFilter) ([]AlertLogEntry, error)
	ListChecks(ctx context.Context, limit int) ([]CheckRecord, error)
}
