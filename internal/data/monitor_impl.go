package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// MonitorModel implements StateRepository and ReportRepository on
// PostgreSQL.
type MonitorModel struct {
	DB *sql.DB
}

const cameraColumns = `nvr_ip, channel_id, camera_ip, camera_name, status, last_online, last_check,
	down_check_count, alert_email_count, is_muted, last_alert_time`

func scanCamera(rows *sql.Rows) (CameraRecord, error) {
	var r CameraRecord
	var lastAlert pq.NullTime
	err := rows.Scan(
		&r.NVRIP, &r.ChannelID, &r.CameraIP, &r.CameraName, &r.Status, &r.LastOnline, &r.LastCheck,
		&r.DownCheckCount, &r.AlertEmailCount, &r.IsMuted, &lastAlert,
	)
	if err != nil {
		return r, err
	}
	if lastAlert.Valid {
		t := lastAlert.Time
		r.LastAlertTime = &t
	}
	return r, nil
}

func (m *MonitorModel) listCameras(ctx context.Context, where string, args ...interface{}) ([]CameraRecord, error) {
	query := `SELECT ` + cameraColumns + ` FROM camera_states ` + where + ` ORDER BY nvr_ip, channel_id`
	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CameraRecord
	for rows.Next() {
		r, err := scanCamera(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (m *MonitorModel) ListCameras(ctx context.Context) ([]CameraRecord, error) {
	return m.listCameras(ctx, "")
}

func (m *MonitorModel) ListNotOnline(ctx context.Context) ([]CameraRecord, error) {
	return m.listCameras(ctx, "WHERE status <> $1", string(StatusOnline))
}

func (m *MonitorModel) LastCheckNumber(ctx context.Context) (int64, error) {
	var n sql.NullInt64
	err := m.DB.QueryRowContext(ctx, `SELECT MAX(check_number) FROM check_records`).Scan(&n)
	if err != nil {
		return 0, err
	}
	if !n.Valid {
		return 0, nil
	}
	return n.Int64, nil
}

const upsertCameraQuery = `
	INSERT INTO camera_states (` + cameraColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (nvr_ip, channel_id) DO UPDATE SET
		camera_ip = EXCLUDED.camera_ip,
		camera_name = EXCLUDED.camera_name,
		status = EXCLUDED.status,
		last_online = EXCLUDED.last_online,
		last_check = EXCLUDED.last_check,
		down_check_count = EXCLUDED.down_check_count,
		alert_email_count = EXCLUDED.alert_email_count,
		is_muted = EXCLUDED.is_muted,
		last_alert_time = EXCLUDED.last_alert_time
`

const insertEventQuery = `
	INSERT INTO alert_logs (timestamp, alert_type, nvr_ip, camera_ip, camera_name, status,
		details, severity, mail_recipients, down_check_count, duration_seconds)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func upsertCamera(ctx context.Context, ex execer, r *CameraRecord) error {
	var lastAlert interface{}
	if r.LastAlertTime != nil {
		lastAlert = *r.LastAlertTime
	}
	_, err := ex.ExecContext(ctx, upsertCameraQuery,
		r.NVRIP, r.ChannelID, r.CameraIP, r.CameraName, string(r.Status), r.LastOnline, r.LastCheck,
		r.DownCheckCount, r.AlertEmailCount, r.IsMuted, lastAlert,
	)
	return err
}

func insertEvent(ctx context.Context, ex execer, e *AlertLogEntry) error {
	var status interface{}
	if e.Status != "" {
		status = string(e.Status)
	}
	var recipients interface{}
	if e.MailRecipients != "" {
		recipients = e.MailRecipients
	}
	var downCount, duration interface{}
	if e.DownCheckCount != nil {
		downCount = *e.DownCheckCount
	}
	if e.DurationSeconds != nil {
		duration = *e.DurationSeconds
	}
	_, err := ex.ExecContext(ctx, insertEventQuery,
		e.Timestamp, string(e.Kind), nullStr(e.NVRIP), nullStr(e.CameraIP), nullStr(e.CameraName),
		status, nullStr(e.Details), string(e.Severity), recipients, downCount, duration,
	)
	return err
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// CommitCycle applies all writes of one reconciliation pass in a
// single transaction. Any failure rolls the whole cycle back.
func (m *MonitorModel) CommitCycle(ctx context.Context, batch *CycleBatch) error {
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cycle tx: %w", err)
	}
	defer tx.Rollback()

	for i := range batch.Upserts {
		if err := upsertCamera(ctx, tx, &batch.Upserts[i]); err != nil {
			return fmt.Errorf("upsert camera %s: %w", batch.Upserts[i].Key(), err)
		}
	}
	for _, key := range batch.Deletes {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM camera_states WHERE nvr_ip = $1 AND channel_id = $2`,
			key.NVRIP, key.ChannelID,
		); err != nil {
			return fmt.Errorf("delete camera %s: %w", key, err)
		}
	}
	for i := range batch.Events {
		if err := insertEvent(ctx, tx, &batch.Events[i]); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	if batch.Check != nil {
		c := batch.Check
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO check_records (check_number, timestamp, nvr_ip, total_cameras, online_cameras, status)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			c.CheckNumber, c.Timestamp, c.NVRIP, c.TotalCameras, c.OnlineCameras, c.Status,
		); err != nil {
			return fmt.Errorf("insert check record: %w", err)
		}
	}

	return tx.Commit()
}

// CommitAlerts applies the staged alert-policy mutations. Called only
// after the digest email was delivered.
func (m *MonitorModel) CommitAlerts(ctx context.Context, batch *AlertBatch) error {
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin alert tx: %w", err)
	}
	defer tx.Rollback()

	for i := range batch.Updates {
		if err := upsertCamera(ctx, tx, &batch.Updates[i]); err != nil {
			return fmt.Errorf("update camera %s: %w", batch.Updates[i].Key(), err)
		}
	}
	for i := range batch.Events {
		if err := insertEvent(ctx, tx, &batch.Events[i]); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	return tx.Commit()
}

func (m *MonitorModel) AppendEvent(ctx context.Context, e *AlertLogEntry) error {
	return insertEvent(ctx, m.DB, e)
}

func (m *MonitorModel) ListEvents(ctx context.Context, f EventFilter) ([]AlertLogEntry, error) {
	query := `SELECT id, timestamp, alert_type, nvr_ip, camera_ip, camera_name, status,
		details, severity, mail_recipients, down_check_count, duration_seconds
		FROM alert_logs WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if f.Kind != "" {
		query += fmt.Sprintf(" AND alert_type = $%d", idx)
		args = append(args, string(f.Kind))
		idx++
	}
	if f.Severity != "" {
		query += fmt.Sprintf(" AND severity = $%d", idx)
		args = append(args, string(f.Severity))
		idx++
	}
	if f.Since != nil {
		query += fmt.Sprintf(" AND timestamp >= $%d", idx)
		args = append(args, *f.Since)
		idx++
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY timestamp DESC, id DESC LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AlertLogEntry
	for rows.Next() {
		var e AlertLogEntry
		var nvrIP, camIP, camName, status, details, recipients sql.NullString
		var downCount, duration sql.NullInt64
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Kind, &nvrIP, &camIP, &camName, &status,
			&details, &e.Severity, &recipients, &downCount, &duration); err != nil {
			return nil, err
		}
		e.NVRIP = nvrIP.String
		e.CameraIP = camIP.String
		e.CameraName = camName.String
		e.Status = CameraStatus(status.String)
		e.Details = details.String
		e.MailRecipients = recipients.String
		if downCount.Valid {
			n := int(downCount.Int64)
			e.DownCheckCount = &n
		}
		if duration.Valid {
			n := int(duration.Int64)
			e.DurationSeconds = &n
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (m *MonitorModel) ListChecks(ctx context.Context, limit int) ([]CheckRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := m.DB.QueryContext(ctx,
		`SELECT id, check_number, timestamp, nvr_ip, total_cameras, online_cameras, status
		 FROM check_records ORDER BY check_number DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CheckRecord
	for rows.Next() {
		var c CheckRecord
		if err := rows.Scan(&c.ID, &c.CheckNumber, &c.Timestamp, &c.NVRIP,
			&c.TotalCameras, &c.OnlineCameras, &c.Status); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
