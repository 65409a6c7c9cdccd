package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	appLog "sessioncal/internal/log"
	"sessioncal/internal/model"
)

const timeFormat = time.RFC3339Nano

const sessionColumns = "id, title, description, location, study_name, status, category, start_at, end_at"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// List retrieves every session ordered by start. Sessions without a usable
// start sort first and come back with a zero Start.
// PRE: none
// POST: Returns all sessions with attendees in their stored order
func (s *SQLiteStore) List(ctx context.Context) ([]model.CalendarEvent, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+sessionColumns+" FROM research_session ORDER BY start_at, id")
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var results []model.CalendarEvent
	index := map[string]int{}
	for rows.Next() {
		ev, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		index[ev.ID] = len(results)
		results = append(results, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	rows.Close()

	arows, err := s.db.QueryContext(ctx, "SELECT session_id, attendee_id, name, email FROM session_attendee ORDER BY session_id, position")
	if err != nil {
		return nil, fmt.Errorf("store: list attendees: %w", err)
	}
	defer arows.Close()
	for arows.Next() {
		var sid string
		var a model.Attendee
		if err := arows.Scan(&sid, &a.ID, &a.Name, &a.Email); err != nil {
			return nil, fmt.Errorf("store: scan attendee: %w", err)
		}
		if i, ok := index[sid]; ok {
			results[i].Attendees = append(results[i].Attendees, a)
		}
	}
	return results, arows.Err()
}

// Get retrieves a session by its ID.
// PRE: id is non-empty
// POST: Returns the session or an error wrapping ErrNotFound
func (s *SQLiteStore) Get(ctx context.Context, id string) (model.CalendarEvent, error) {
	return s.get(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLiteStore) get(ctx context.Context, q querier, id string) (model.CalendarEvent, error) {
	row := q.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM research_session WHERE id = ?", id)
	ev, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CalendarEvent{}, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.CalendarEvent{}, err
	}
	rows, err := q.QueryContext(ctx, "SELECT attendee_id, name, email FROM session_attendee WHERE session_id = ? ORDER BY position", id)
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("store: load attendees: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a model.Attendee
		if err := rows.Scan(&a.ID, &a.Name, &a.Email); err != nil {
			return model.CalendarEvent{}, fmt.Errorf("store: scan attendee: %w", err)
		}
		ev.Attendees = append(ev.Attendees, a)
	}
	return ev, rows.Err()
}

// Save persists a session (insert or update) with its attendees. An empty
// ID gets a fresh uuid. Sessions without a start are accepted so imports
// never lose records; everything else must pass Validate.
// PRE: ev.Title is non-empty
// POST: Session and attendee rows are replaced atomically; the stored value is returned
func (s *SQLiteStore) Save(ctx context.Context, ev model.CalendarEvent) (model.CalendarEvent, error) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if err := checkSavable(ev); err != nil {
		return model.CalendarEvent{}, err
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		return s.upsert(ctx, tx, ev, "")
	})
	if err != nil {
		return model.CalendarEvent{}, err
	}
	return ev, nil
}

func checkSavable(ev model.CalendarEvent) error {
	if ev.Placeable() {
		return ev.Validate()
	}
	if strings.TrimSpace(ev.Title) == "" {
		return fmt.Errorf("calendar event: title is required: %w", model.ErrInvalidEvent)
	}
	return nil
}

func (s *SQLiteStore) upsert(ctx context.Context, tx *sql.Tx, ev model.CalendarEvent, source string) error {
	if ev.Status == "" {
		ev.Status = model.StatusScheduled
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO research_session (id, title, description, location, study_name, status, category, start_at, end_at, source, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title=excluded.title, description=excluded.description, location=excluded.location,
			study_name=excluded.study_name, status=excluded.status, category=excluded.category,
			start_at=excluded.start_at, end_at=excluded.end_at, source=excluded.source, updated_at=excluded.updated_at`,
		ev.ID, ev.Title, ev.Description, ev.Location, ev.StudyName, string(ev.Status), ev.Category.String(),
		formatTime(ev.Start), formatTime(ev.End), source, s.now().UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("store: save session %q: %w", ev.ID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM session_attendee WHERE session_id = ?", ev.ID); err != nil {
		return fmt.Errorf("store: clear attendees: %w", err)
	}
	for i, a := range ev.Attendees {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO session_attendee (session_id, position, attendee_id, name, email) VALUES (?, ?, ?, ?, ?)",
			ev.ID, i, a.ID, a.Name, a.Email,
		); err != nil {
			return fmt.Errorf("store: save attendee: %w", err)
		}
	}
	return nil
}

// Move reschedules a session to newStart, keeping its duration.
// PRE: id exists
// POST: start/end updated; returns the moved session
func (s *SQLiteStore) Move(ctx context.Context, id string, newStart time.Time) (model.CalendarEvent, error) {
	return s.update(ctx, id, func(ev model.CalendarEvent) model.CalendarEvent {
		return ev.WithStart(newStart)
	})
}

// Resize changes a session's duration. edge is the side that moved; the
// other one stays fixed.
// PRE: id exists, minutes > 0
// POST: start or end updated; returns the resized session
func (s *SQLiteStore) Resize(ctx context.Context, id string, minutes int, edge model.Edge) (model.CalendarEvent, error) {
	if minutes <= 0 {
		return model.CalendarEvent{}, fmt.Errorf("calendar event: duration must be positive: %w", model.ErrInvalidEvent)
	}
	return s.update(ctx, id, func(ev model.CalendarEvent) model.CalendarEvent {
		return ev.WithDuration(minutes, edge)
	})
}

func (s *SQLiteStore) update(ctx context.Context, id string, fn func(model.CalendarEvent) model.CalendarEvent) (model.CalendarEvent, error) {
	var out model.CalendarEvent
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		cur, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if !cur.Placeable() {
			return fmt.Errorf("session %q has no start: %w", id, model.ErrInvalidEvent)
		}
		next := fn(cur)
		if err := next.Validate(); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE research_session SET start_at = ?, end_at = ?, updated_at = ? WHERE id = ?",
			formatTime(next.Start), formatTime(next.End), s.now().UTC().Format(timeFormat), id,
		)
		if err != nil {
			return fmt.Errorf("store: update session %q: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("session %q: %w", id, ErrNotFound)
		}
		out = next
		return nil
	})
	return out, err
}

// Delete removes a session and its attendees.
// PRE: id is non-empty
// POST: Session with given id is removed
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM research_session WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: delete session %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return nil
}

// ReplaceSource makes the set of sessions tagged with source equal to
// events: each is upserted, and previously imported sessions missing from
// events are removed. Invalid events are skipped and logged.
// PRE: source is non-empty
// POST: Returns the number of sessions written
func (s *SQLiteStore) ReplaceSource(ctx context.Context, source string, events []model.CalendarEvent) (int, error) {
	if source == "" {
		return 0, errors.New("store: replace source: empty source")
	}
	written := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		keep := make(map[string]bool, len(events))
		for _, ev := range events {
			if ev.ID == "" {
				ev.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+"/"+ev.Title+"/"+formatTime(ev.Start))).String()
			}
			if err := checkSavable(ev); err != nil {
				appLog.Error("skipping imported session", err, "source", source, "id", ev.ID)
				continue
			}
			if err := s.upsert(ctx, tx, ev, source); err != nil {
				return err
			}
			keep[ev.ID] = true
			written++
		}

		rows, err := tx.QueryContext(ctx, "SELECT id FROM research_session WHERE source = ?", source)
		if err != nil {
			return fmt.Errorf("store: list source %q: %w", source, err)
		}
		var stale []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("store: scan id: %w", err)
			}
			if !keep[id] {
				stale = append(stale, id)
			}
		}
		rows.Close()
		for _, id := range stale {
			if _, err := tx.ExecContext(ctx, "DELETE FROM research_session WHERE id = ?", id); err != nil {
				return fmt.Errorf("store: prune %q: %w", id, err)
			}
		}
		if len(stale) > 0 {
			appLog.Debug("pruned stale imported sessions", "source", source, "count", len(stale))
		}
		return nil
	})
	return written, err
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (model.CalendarEvent, error) {
	var (
		ev               model.CalendarEvent
		status, cat      string
		startStr, endStr string
	)
	if err := sc.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Location, &ev.StudyName, &status, &cat, &startStr, &endStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ev, err
		}
		return ev, fmt.Errorf("store: scan session: %w", err)
	}
	ev.Status = model.SessionStatus(status)
	ev.Category, _ = model.ParseCategory(cat)
	ev.Start = parseTime(startStr)
	ev.End = parseTime(endStr)
	return ev, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

// parseTime returns the zero time for empty or malformed values; such
// sessions surface as unplaceable rather than failing the whole list.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
