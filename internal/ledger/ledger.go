// Package ledger manages attendance sessions and idempotent attendance
// marking on SQLite.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// TimeLayout is the ISO-8601 local-time format used for every timestamp
// column.
const TimeLayout = "2006-01-02T15:04:05"

// Ledger owns the sessions and attendance tables. Single logical writer;
// idempotency of marking rests on the UNIQUE(session_id, student_id)
// constraint, not on application-level locking.
type Ledger struct {
	db *sql.DB

	// now is swappable for tests.
	now func() time.Time
}

// Open opens (creating if needed) the attendance database at path and runs
// migrations.
func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, errors.New("attendance database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer keeps SQLite happy.
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db, now: time.Now}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			course TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT,
			status TEXT DEFAULT 'open'
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}

	_, err = l.db.Exec(`
		CREATE TABLE IF NOT EXISTS attendance (
			session_id TEXT,
			student_id TEXT,
			time TEXT,
			status TEXT,
			UNIQUE(session_id, student_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create attendance table: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// CreateSession opens a new session and returns its id. A zero start time
// defaults to now; a zero end time leaves the session open-ended.
func (l *Ledger) CreateSession(ctx context.Context, course string, startTime, endTime time.Time) (int64, error) {
	if course == "" {
		return 0, errors.New("course is required")
	}
	if startTime.IsZero() {
		startTime = l.now()
	}

	var end any
	if !endTime.IsZero() {
		end = endTime.Format(TimeLayout)
	}

	result, err := l.db.ExecContext(ctx, `
		INSERT INTO sessions (course, start_time, end_time, status)
		VALUES (?, ?, ?, ?)
	`, course, startTime.Format(TimeLayout), end, StatusOpen)
	if err != nil {
		return 0, fmt.Errorf("creating session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting session id: %w", err)
	}
	return id, nil
}

// IsActive reports whether attendance may be marked against the session
// right now: the session exists, is open, and now falls inside its window.
// A missing session is simply inactive, not an error.
func (l *Ledger) IsActive(ctx context.Context, sessionID int64) (bool, error) {
	var startStr, status string
	var endStr sql.NullString
	err := l.db.QueryRowContext(ctx, `
		SELECT start_time, end_time, status FROM sessions WHERE id = ?
	`, sessionID).Scan(&startStr, &endStr, &status)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up session %d: %w", sessionID, err)
	}

	if status != StatusOpen {
		return false, nil
	}

	start, err := time.ParseInLocation(TimeLayout, startStr, time.Local)
	if err != nil {
		return false, fmt.Errorf("parsing session start time %q: %w", startStr, err)
	}

	now := l.now()
	if now.Before(start) {
		return false, nil
	}
	if endStr.Valid && endStr.String != "" {
		end, err := time.ParseInLocation(TimeLayout, endStr.String, time.Local)
		if err != nil {
			return false, fmt.Errorf("parsing session end time %q: %w", endStr.String, err)
		}
		if now.After(end) {
			return false, nil
		}
	}
	return true, nil
}

// MarkAttendance records that a student was present in an active session.
// Returns false when the session is not active. Marking is idempotent: a
// repeated mark for the same (session, student) pair creates no second row
// and still reports true.
func (l *Ledger) MarkAttendance(ctx context.Context, sessionID int64, studentID, status string) (bool, error) {
	active, err := l.IsActive(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if !active {
		return false, nil
	}
	if status == "" {
		status = "present"
	}

	result, err := l.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO attendance (session_id, student_id, time, status)
		VALUES (?, ?, ?, ?)
	`, sessionID, studentID, l.now().Format(TimeLayout), status)
	if err != nil {
		return false, fmt.Errorf("marking attendance: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	if count > 0 {
		return true, nil
	}

	// The insert was ignored: true iff the pair already exists.
	var one int
	err = l.db.QueryRowContext(ctx, `
		SELECT 1 FROM attendance WHERE session_id = ? AND student_id = ?
	`, sessionID, studentID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking existing attendance: %w", err)
	}
	return true, nil
}

// CloseSession transitions a session to closed, stamping its end time.
// Returns false only when the session does not exist; re-closing a closed
// session is a harmless no-op that still reports true.
func (l *Ledger) CloseSession(ctx context.Context, sessionID int64) (bool, error) {
	result, err := l.db.ExecContext(ctx, `
		UPDATE sessions SET end_time = ?, status = ? WHERE id = ?
	`, l.now().Format(TimeLayout), StatusClosed, sessionID)
	if err != nil {
		return false, fmt.Errorf("closing session %d: %w", sessionID, err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return count > 0, nil
}

// GetSession returns a session by id, or nil if it does not exist.
func (l *Ledger) GetSession(ctx context.Context, sessionID int64) (*Session, error) {
	var s Session
	var end sql.NullString
	err := l.db.QueryRowContext(ctx, `
		SELECT id, course, start_time, end_time, status FROM sessions WHERE id = ?
	`, sessionID).Scan(&s.ID, &s.Course, &s.StartTime, &end, &s.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting session %d: %w", sessionID, err)
	}
	s.EndTime = end.String
	return &s, nil
}

// ActiveSession returns the most recently started open session, or nil
// when no session is open.
func (l *Ledger) ActiveSession(ctx context.Context) (*Session, error) {
	var s Session
	var end sql.NullString
	err := l.db.QueryRowContext(ctx, `
		SELECT id, course, start_time, end_time, status
		FROM sessions
		WHERE status = ?
		ORDER BY start_time DESC
		LIMIT 1
	`, StatusOpen).Scan(&s.ID, &s.Course, &s.StartTime, &end, &s.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting active session: %w", err)
	}
	s.EndTime = end.String
	return &s, nil
}

// RecentSessions returns up to limit sessions, unfinished first, newest
// within each group.
func (l *Ledger) RecentSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, course, start_time, end_time, status
		FROM sessions
		ORDER BY
			CASE WHEN end_time IS NULL THEN 0 ELSE 1 END,
			start_time DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

// AttendanceBySession returns the session's records ordered by time ascending.
func (l *Ledger) AttendanceBySession(ctx context.Context, sessionID int64) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT session_id, student_id, time, status
		FROM attendance
		WHERE session_id = ?
		ORDER BY time ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("getting attendance for session %d: %w", sessionID, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// AttendanceByDate returns all records of a day (YYYY-MM-DD) ordered by
// time ascending.
func (l *Ledger) AttendanceByDate(ctx context.Context, date string) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT session_id, student_id, time, status
		FROM attendance
		WHERE date(time) = ?
		ORDER BY time ASC
	`, date)
	if err != nil {
		return nil, fmt.Errorf("getting attendance for %s: %w", date, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// AllAttendance returns the full history, most recent first.
func (l *Ledger) AllAttendance(ctx context.Context) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT session_id, student_id, time, status
		FROM attendance
		ORDER BY time DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("getting attendance history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanSessions(rows *sql.Rows) ([]Session, error) {
	var sessions []Session
	for rows.Next() {
		var s Session
		var end sql.NullString
		if err := rows.Scan(&s.ID, &s.Course, &s.StartTime, &end, &s.Status); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		s.EndTime = end.String
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.SessionID, &r.StudentID, &r.Time, &r.Status); err != nil {
			return nil, fmt.Errorf("scanning attendance record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attendance records: %w", err)
	}
	return records, nil
}
