// Package formstate owns the field value map edited before an export. A
// single goroutine holds the map; callers talk to it over channels.
package formstate

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("form state store is closed")

// Suggestion is a proposed value for a field. A nil Value leaves the field
// untouched.
type Suggestion struct {
	FieldName string
	Value     *string
}

type update struct {
	name  string
	value string
}

// Store serializes all edits of one document's field values
type Store struct {
	updates   chan update
	snapshots chan chan map[string]string
	done      chan struct{}
	closeOnce sync.Once
	logger    *logrus.Logger
}

// NewStore starts the owner goroutine. Close must be called to stop it.
func NewStore(initial map[string]string, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Store{
		updates:   make(chan update),
		snapshots: make(chan chan map[string]string),
		done:      make(chan struct{}),
		logger:    logger,
	}

	values := make(map[string]string, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	go s.run(values)
	return s
}

func (s *Store) run(values map[string]string) {
	for {
		select {
		case u := <-s.updates:
			values[u.name] = u.value
			s.logger.WithField("field", u.name).Trace("Field value updated")
		case reply := <-s.snapshots:
			out := make(map[string]string, len(values))
			for k, v := range values {
				out[k] = v
			}
			reply <- out
		case <-s.done:
			return
		}
	}
}

// Publish records value for field name
func (s *Store) Publish(ctx context.Context, name, value string) error {
	if s.closed() {
		return ErrClosed
	}
	select {
	case s.updates <- update{name: name, value: value}:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ApplySuggestions publishes every suggestion that carries a value
func (s *Store) ApplySuggestions(ctx context.Context, suggestions []Suggestion) (int, error) {
	applied := 0
	for _, sg := range suggestions {
		if sg.Value == nil || sg.FieldName == "" {
			continue
		}
		if err := s.Publish(ctx, sg.FieldName, *sg.Value); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// Snapshot returns a copy of the current values
func (s *Store) Snapshot(ctx context.Context) (map[string]string, error) {
	if s.closed() {
		return nil, ErrClosed
	}
	reply := make(chan map[string]string, 1)
	select {
	case s.snapshots <- reply:
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case values := <-reply:
		return values, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Close stops the owner goroutine. It is safe to call more than once.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}
