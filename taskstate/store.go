package taskstate

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
)

// Config holds the relational store settings.
type Config struct {
	Driver          string        `json:"driver" yaml:"driver"` // sqlite, mysql, postgres
	Source          string        `json:"source" yaml:"source"` // driver-specific DSN
	MaxIdleConn     int           `json:"max_idle_conn" yaml:"max_idle_conn"`
	MaxOpenConn     int           `json:"max_open_conn" yaml:"max_open_conn"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// Store is the durable task state store backed by database/sql.
type Store struct {
	db      *sql.DB
	dialect *dialect
	logger  logrus.FieldLogger
}

func sqlDriverName(driver string) string {
	switch driver {
	case "sqlite":
		return "sqlite3"
	case "postgres":
		return "pgx"
	default:
		return driver
	}
}

// Open connects to the configured database and verifies the connection
// with a ping.
func Open(ctx context.Context, cfg *Config, logger logrus.FieldLogger) (*Store, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.Source == "" {
		return nil, fmt.Errorf("taskstate: connection source is empty")
	}

	db, err := sql.Open(sqlDriverName(cfg.Driver), cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("taskstate: failed to open connection: %w", err)
	}

	if cfg.MaxIdleConn > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConn)
	}
	if cfg.MaxOpenConn > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConn)
	} else if cfg.Driver == "sqlite" {
		db.SetMaxOpenConns(1) // SQLite write safety
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("taskstate: failed to ping database: %w", err)
	}

	return &Store{db: db, dialect: d, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the task table and supporting index if absent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &Error{Op: "migrate", Err: err}
		}
	}
	return nil
}

// EnsureTask creates the task row for jobID if it does not exist yet,
// with status RUNNING and progress 0. A row that already exists is left
// untouched. Safe under concurrent invocation for the same jobID: the
// uniqueness constraint collapses racing inserts to at most one row.
// Returns whether a new row was created.
func (s *Store) EnsureTask(ctx context.Context, jobID string, videoID int64, stage Stage, input map[string]any) (bool, error) {
	inputJSON, err := marshalPayload(input)
	if err != nil {
		return false, &Error{Op: "ensure_task", Err: err}
	}

	res, err := s.db.ExecContext(ctx, s.dialect.insertIgnoreTask(),
		videoID, string(stage), jobID, string(StatusRunning), 0.0, "", inputJSON, time.Now().UTC())
	if err != nil {
		return false, &Error{Op: "ensure_task", Err: err}
	}

	n, err := res.RowsAffected()
	if err != nil {
		// Driver cannot report affected rows; the insert itself succeeded.
		return false, nil
	}
	if n > 0 {
		s.logger.WithFields(logrus.Fields{"job_id": jobID, "video_id": videoID, "stage": stage}).
			Info("created processing task")
	}
	return n > 0, nil
}

// UpdateStatus updates the row for jobID. Terminal rows are never
// modified; a terminal status being written also stamps completed_at.
// The row is expected to exist (callers self-heal via EnsureTask first);
// updating a missing row is not an error.
func (s *Store) UpdateStatus(ctx context.Context, jobID string, status Status, progress float64, message, errMsg string) error {
	query := `UPDATE processing_tasks
	SET status = ?, progress = ?, message = ?, error = ?, completed_at = ?
	WHERE job_id = ? AND status NOT IN (?, ?)`

	var completedAt any
	if status.Terminal() {
		completedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.dialect.rebind(query),
		string(status), progress, message, errMsg, completedAt,
		jobID, string(StatusSuccess), string(StatusFailure))
	if err != nil {
		return &Error{Op: "update_status", Err: err}
	}
	return nil
}

// Complete records the terminal outcome of the task identified by its
// surrogate id: status, progress, message, structured output, and
// completed_at. A task already in a terminal state is left untouched.
func (s *Store) Complete(ctx context.Context, taskID int64, status Status, progress float64, message string, output map[string]any, stage Stage) error {
	outputJSON, err := marshalPayload(output)
	if err != nil {
		return &Error{Op: "complete", Err: err}
	}

	query := `UPDATE processing_tasks
	SET status = ?, progress = ?, message = ?, output_data = ?, stage = ?, completed_at = ?
	WHERE id = ? AND status NOT IN (?, ?)`

	_, err = s.db.ExecContext(ctx, s.dialect.rebind(query),
		string(status), progress, message, outputJSON, string(stage), time.Now().UTC(),
		taskID, string(StatusSuccess), string(StatusFailure))
	if err != nil {
		return &Error{Op: "complete", Err: err}
	}
	return nil
}

const taskColumns = `id, video_id, stage, job_id, status, progress, message, error, input_data, output_data, started_at, completed_at`

// TaskByJobID returns the task for an external job id, or nil when no
// such row exists.
func (s *Store) TaskByJobID(ctx context.Context, jobID string) (*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM processing_tasks WHERE job_id = ?`
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(query), jobID)
	return s.scanTask(row)
}

// LatestCompleted returns the most recently completed SUCCESS task for a
// video and stage, ordered by completion time descending, or nil when
// none exists. Ties break on the surrogate id for a stable order.
func (s *Store) LatestCompleted(ctx context.Context, videoID int64, stage Stage) (*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM processing_tasks
	WHERE video_id = ? AND stage = ? AND status = ?
	ORDER BY completed_at DESC, id DESC
	LIMIT 1`
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(query), videoID, string(stage), string(StatusSuccess))
	return s.scanTask(row)
}

// VideoAudioPath reads the audio artifact location recorded on the
// video's processing metadata. Returns "" when the video is unknown or
// no path has been recorded.
func (s *Store) VideoAudioPath(ctx context.Context, videoID int64) (string, error) {
	query := `SELECT processing_metadata FROM videos WHERE id = ?`
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), videoID).Scan(&raw)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", &Error{Op: "video_audio_path", Err: err}
	}
	if !raw.Valid || raw.String == "" {
		return "", nil
	}

	var meta map[string]any
	if err := json.Unmarshal([]byte(raw.String), &meta); err != nil {
		return "", &Error{Op: "video_audio_path", Err: err}
	}
	path, _ := meta["audio_path"].(string)
	return path, nil
}

// SetVideoAudioPath records the extracted audio location on the video's
// processing metadata, preserving any other metadata keys.
func (s *Store) SetVideoAudioPath(ctx context.Context, videoID int64, path string) error {
	query := `SELECT processing_metadata FROM videos WHERE id = ?`
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), videoID).Scan(&raw)
	if err != nil && err != sql.ErrNoRows {
		return &Error{Op: "set_video_audio_path", Err: err}
	}

	meta := map[string]any{}
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &meta); err != nil {
			return &Error{Op: "set_video_audio_path", Err: err}
		}
	}
	meta["audio_path"] = path

	encoded, err := json.Marshal(meta)
	if err != nil {
		return &Error{Op: "set_video_audio_path", Err: err}
	}

	update := `UPDATE videos SET processing_metadata = ? WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(update), string(encoded), videoID); err != nil {
		return &Error{Op: "set_video_audio_path", Err: err}
	}
	return nil
}

func (s *Store) scanTask(row *sql.Row) (*Task, error) {
	var (
		t                  Task
		stage, status      string
		message, errMsg    sql.NullString
		inputRaw, outRaw   sql.NullString
		started, completed sql.NullTime
	)
	err := row.Scan(&t.ID, &t.VideoID, &stage, &t.JobID, &status, &t.Progress,
		&message, &errMsg, &inputRaw, &outRaw, &started, &completed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Op: "scan_task", Err: err}
	}

	t.Stage = Stage(stage)
	t.Status = Status(status)
	t.Message = message.String
	t.Error = errMsg.String
	if started.Valid {
		t.StartedAt = started.Time
	}
	if completed.Valid {
		c := completed.Time
		t.CompletedAt = &c
	}
	if t.InputData, err = unmarshalPayload(inputRaw); err != nil {
		return nil, &Error{Op: "scan_task", Err: err}
	}
	if t.OutputData, err = unmarshalPayload(outRaw); err != nil {
		return nil, &Error{Op: "scan_task", Err: err}
	}
	return &t, nil
}

func marshalPayload(payload map[string]any) (string, error) {
	if len(payload) == 0 {
		return "", nil
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(encoded), nil
}

func unmarshalPayload(raw sql.NullString) (map[string]any, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw.String), &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}
