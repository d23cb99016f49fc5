package taskstate

import (
	"fmt"
	"strings"
)

// dialect smooths over the syntax differences between the supported
// database/sql drivers: placeholders and the insert-or-ignore form used
// for idempotent task creation.
type dialect struct {
	name string
}

func dialectFor(driver string) (*dialect, error) {
	switch driver {
	case "sqlite", "mysql", "postgres":
		return &dialect{name: driver}, nil
	default:
		return nil, fmt.Errorf("taskstate: unsupported driver %q", driver)
	}
}

// rebind converts ?-style placeholders to the driver's native form.
func (d *dialect) rebind(query string) string {
	if d.name != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// insertIgnoreTask returns the idempotent task insert. The uniqueness
// constraint on job_id makes concurrent inserts collapse to at most one
// row without application-level locking.
func (d *dialect) insertIgnoreTask() string {
	cols := "(video_id, stage, job_id, status, progress, message, input_data, started_at)"
	vals := "VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	switch d.name {
	case "mysql":
		return d.rebind("INSERT IGNORE INTO processing_tasks " + cols + " " + vals)
	case "sqlite":
		return d.rebind("INSERT OR IGNORE INTO processing_tasks " + cols + " " + vals)
	default: // postgres
		return d.rebind("INSERT INTO processing_tasks " + cols + " " + vals + " ON CONFLICT (job_id) DO NOTHING")
	}
}

// schema returns the bootstrap DDL for the task table. The videos table
// is owned by the surrounding application; it is created here only so a
// standalone deployment (or test) has the columns this subsystem reads.
func (d *dialect) schema() []string {
	var serial string
	switch d.name {
	case "mysql":
		serial = "BIGINT PRIMARY KEY AUTO_INCREMENT"
	case "sqlite":
		serial = "INTEGER PRIMARY KEY AUTOINCREMENT"
	default: // postgres
		serial = "BIGSERIAL PRIMARY KEY"
	}

	// MySQL has no CREATE INDEX IF NOT EXISTS, so the lookup index is
	// declared inline there.
	var inlineIndex string
	if d.name == "mysql" {
		inlineIndex = ",\n\tINDEX idx_processing_tasks_video_stage (video_id, stage, status)"
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS processing_tasks (
	id %s,
	video_id BIGINT NOT NULL,
	stage VARCHAR(32) NOT NULL,
	job_id VARCHAR(191) NOT NULL UNIQUE,
	status VARCHAR(16) NOT NULL,
	progress DOUBLE PRECISION NOT NULL DEFAULT 0,
	message TEXT,
	error TEXT,
	input_data TEXT,
	output_data TEXT,
	started_at TIMESTAMP,
	completed_at TIMESTAMP%s
)`, serial, inlineIndex),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS videos (
	id %s,
	processing_metadata TEXT
)`, serial),
	}
	if d.name != "mysql" {
		stmts = append(stmts, `CREATE INDEX IF NOT EXISTS idx_processing_tasks_video_stage
	ON processing_tasks (video_id, stage, status)`)
	}
	return stmts
}
