package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"weekgrid/internal/model"
	"weekgrid/internal/timeutil"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidStatus rejects unknown or non-agent statuses.
var ErrInvalidStatus = errors.New("invalid status")

// ErrInvalidEvent wraps every validation failure of an agent event.
var ErrInvalidEvent = errors.New("invalid agent event")

// Store persists the scheduling agent's events and the calendar toggles.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the sqlite database at dbPath.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY churn
	// and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS agent_events (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL DEFAULT '',
			calendar_id TEXT NOT NULL,
			date TEXT NOT NULL,
			time TEXT NOT NULL DEFAULT '',
			end_time TEXT NOT NULL DEFAULT '',
			duration INTEGER NOT NULL DEFAULT 0,
			title TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			attendees TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_events_date ON agent_events(date)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_events_session ON agent_events(session_id)`,
		`CREATE TABLE IF NOT EXISTS calendar_selection (
			calendar_id TEXT PRIMARY KEY,
			selected INTEGER NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`ALTER TABLE agent_events ADD COLUMN color TEXT NOT NULL DEFAULT ''`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

// === Agent events ===

const agentColumns = `id, session_id, calendar_id, date, time, end_time, duration, title, location, description, attendees, status, color`

type scanner interface {
	Scan(dest ...any) error
}

func scanAgentEvent(row scanner) (model.CalendarEvent, error) {
	var (
		e         model.CalendarEvent
		attendees string
		status    string
	)
	err := row.Scan(&e.ID, &e.SessionID, &e.CalendarID, &e.Date, &e.Time, &e.EndTime, &e.Duration,
		&e.Title, &e.Location, &e.Description, &attendees, &status, &e.Color)
	if err != nil {
		return e, err
	}
	if attendees != "" {
		if err := json.Unmarshal([]byte(attendees), &e.Attendees); err != nil {
			return e, fmt.Errorf("decode attendees of %s: %w", e.ID, err)
		}
	}
	e.Status = model.Status(status)
	e.AgentEvent = true
	e.Source = "agent"
	return e, nil
}

func validateAgentEvent(e model.CalendarEvent) error {
	if err := checkAgentEvent(e); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return nil
}

func checkAgentEvent(e model.CalendarEvent) error {
	if e.CalendarID == "" {
		return errors.New("calendar_id is required")
	}
	if e.Title == "" {
		return errors.New("title is required")
	}
	if _, err := timeutil.ParseDateKey(e.Date, time.UTC); err != nil {
		return err
	}
	if e.Time != "" {
		if _, ok := timeutil.TimeToMinutes(e.Time); !ok {
			return fmt.Errorf("malformed time %q", e.Time)
		}
	}
	if e.EndTime != "" {
		if _, ok := timeutil.TimeToMinutes(e.EndTime); !ok {
			return fmt.Errorf("malformed end time %q", e.EndTime)
		}
	}
	if e.Duration < 0 {
		return errors.New("duration must not be negative")
	}
	if e.Status == model.StatusNone || !e.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, e.Status)
	}
	return nil
}

// CreateAgentEvent inserts e, assigning a UUID when e.ID is empty and
// defaulting the status to pending. The stored row is returned.
func (s *Store) CreateAgentEvent(ctx context.Context, e model.CalendarEvent) (model.CalendarEvent, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == model.StatusNone {
		e.Status = model.StatusPending
	}
	if err := validateAgentEvent(e); err != nil {
		return model.CalendarEvent{}, err
	}
	attendees, err := json.Marshal(nonNil(e.Attendees))
	if err != nil {
		return model.CalendarEvent{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agent_events (`+agentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.CalendarID, e.Date, e.Time, e.EndTime, e.Duration,
		e.Title, e.Location, e.Description, string(attendees), string(e.Status), e.Color,
	)
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("insert agent event: %w", err)
	}
	return s.GetAgentEvent(ctx, e.ID)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// GetAgentEvent returns one agent event or ErrNotFound.
func (s *Store) GetAgentEvent(ctx context.Context, id string) (model.CalendarEvent, error) {
	e, err := scanAgentEvent(s.db.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM agent_events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.CalendarEvent{}, fmt.Errorf("agent event %s: %w", id, ErrNotFound)
	}
	return e, err
}

// ListAgentEvents returns events whose date key lies in [fromKey, toKey).
// Empty bounds are open.
func (s *Store) ListAgentEvents(ctx context.Context, fromKey, toKey string) ([]model.CalendarEvent, error) {
	query := `SELECT ` + agentColumns + ` FROM agent_events WHERE 1=1`
	var args []any
	if fromKey != "" {
		query += ` AND date >= ?`
		args = append(args, fromKey)
	}
	if toKey != "" {
		query += ` AND date < ?`
		args = append(args, toKey)
	}
	query += ` ORDER BY date, time, created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list agent events: %w", err)
	}
	defer rows.Close()

	var out []model.CalendarEvent
	for rows.Next() {
		e, err := scanAgentEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListSession returns every event of one scheduling session.
func (s *Store) ListSession(ctx context.Context, sessionID string) ([]model.CalendarEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+agentColumns+` FROM agent_events WHERE session_id = ? ORDER BY date, time, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session: %w", err)
	}
	defer rows.Close()

	var out []model.CalendarEvent
	for rows.Next() {
		e, err := scanAgentEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// errNoConfirmCalendar is returned when a confirmation names no calendar.
// A confirmed event left in a placeholder calendar would be filtered out of
// both the grid and conflict checks.
var errNoConfirmCalendar = fmt.Errorf("%w: confirming needs a target calendar", ErrInvalidEvent)

// UpdateStatus moves an agent event to status. A non-empty calendarID also
// moves it to that calendar; confirming requires one.
func (s *Store) UpdateStatus(ctx context.Context, id string, status model.Status, calendarID string) (model.CalendarEvent, error) {
	if status == model.StatusNone || !status.Valid() {
		return model.CalendarEvent{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if status == model.StatusConfirmed && calendarID == "" {
		return model.CalendarEvent{}, errNoConfirmCalendar
	}
	query := `UPDATE agent_events SET status = ?, updated_at = CURRENT_TIMESTAMP`
	args := []any{string(status)}
	if calendarID != "" {
		query += `, calendar_id = ?`
		args = append(args, calendarID)
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.CalendarEvent{}, fmt.Errorf("agent event %s: %w", id, ErrNotFound)
	}
	return s.GetAgentEvent(ctx, id)
}

// ConfirmSession confirms eventID, moves it to calendarID and cancels the
// other pending events of its session in one transaction.
func (s *Store) ConfirmSession(ctx context.Context, eventID, calendarID string) (model.CalendarEvent, error) {
	if calendarID == "" {
		return model.CalendarEvent{}, errNoConfirmCalendar
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.CalendarEvent{}, err
	}
	defer tx.Rollback()

	var sessionID string
	err = tx.QueryRowContext(ctx, `SELECT session_id FROM agent_events WHERE id = ?`, eventID).Scan(&sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CalendarEvent{}, fmt.Errorf("agent event %s: %w", eventID, ErrNotFound)
	}
	if err != nil {
		return model.CalendarEvent{}, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE agent_events SET status = ?, calendar_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(model.StatusConfirmed), calendarID, eventID)
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("confirm: %w", err)
	}

	if sessionID != "" {
		_, err = tx.ExecContext(ctx,
			`UPDATE agent_events SET status = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE session_id = ? AND id <> ? AND status = ?`,
			string(model.StatusCancelled), sessionID, eventID, string(model.StatusPending))
		if err != nil {
			return model.CalendarEvent{}, fmt.Errorf("cancel siblings: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.CalendarEvent{}, err
	}
	return s.GetAgentEvent(ctx, eventID)
}

// DeleteAgentEvent removes one agent event.
func (s *Store) DeleteAgentEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agent_events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("agent event %s: %w", id, ErrNotFound)
	}
	return nil
}

// === Calendar selection ===

// Toggles returns the persisted toggle overrides.
func (s *Store) Toggles(ctx context.Context) (model.Toggles, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT calendar_id, selected FROM calendar_selection`)
	if err != nil {
		return nil, fmt.Errorf("load toggles: %w", err)
	}
	defer rows.Close()

	out := make(model.Toggles)
	for rows.Next() {
		var (
			id       string
			selected bool
		)
		if err := rows.Scan(&id, &selected); err != nil {
			return nil, err
		}
		out[id] = selected
	}
	return out, rows.Err()
}

// EffectiveToggles starts from the configured selection of cals and applies
// the persisted overrides on top.
func (s *Store) EffectiveToggles(ctx context.Context, cals []model.Calendar) (model.Toggles, error) {
	out := model.TogglesFrom(cals)
	saved, err := s.Toggles(ctx)
	if err != nil {
		return nil, err
	}
	for id, on := range saved {
		out[id] = on
	}
	return out, nil
}

// SetSelected persists one calendar toggle.
func (s *Store) SetSelected(ctx context.Context, calendarID string, selected bool) error {
	if calendarID == "" {
		return errors.New("calendar id is empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calendar_selection (calendar_id, selected, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(calendar_id) DO UPDATE SET selected = excluded.selected, updated_at = CURRENT_TIMESTAMP`,
		calendarID, selected)
	if err != nil {
		return fmt.Errorf("save toggle: %w", err)
	}
	return nil
}
