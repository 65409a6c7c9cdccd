package store

import (
	"context"
	"errors"
	"time"

	"sessioncal/internal/model"
)

// ErrNotFound is returned when no session has the requested id.
var ErrNotFound = errors.New("session not found")

// Store persists research sessions.
type Store interface {
	List(ctx context.Context) ([]model.CalendarEvent, error)
	Get(ctx context.Context, id string) (model.CalendarEvent, error)
	Save(ctx context.Context, ev model.CalendarEvent) (model.CalendarEvent, error)
	Move(ctx context.Context, id string, newStart time.Time) (model.CalendarEvent, error)
	Resize(ctx context.Context, id string, minutes int, edge model.Edge) (model.CalendarEvent, error)
	Delete(ctx context.Context, id string) error
	ReplaceSource(ctx context.Context, source string, events []model.CalendarEvent) (int, error)
}
