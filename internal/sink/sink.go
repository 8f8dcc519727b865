// Package sink delivers encoded lines to files and external stores.
package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shadow-it-generator/internal/encoder"
)

var ErrClosed = errors.New("sink closed")

// Entry is one encoded line plus the record it was rendered from.
type Entry struct {
	Format    string
	Timestamp time.Time
	Line      []byte
	Record    *encoder.Record
}

type Sink interface {
	Write(ctx context.Context, e Entry) error
	Close() error
}

// Rotator is implemented by sinks that hold per-period resources.
type Rotator interface {
	Rotate(before time.Time) error
}

// Fanout writes every entry to each sink in order.
type Fanout struct {
	sinks []Sink
}

func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Add(s Sink) {
	f.sinks = append(f.sinks, s)
}

func (f *Fanout) Len() int {
	return len(f.sinks)
}

func (f *Fanout) Write(ctx context.Context, e Entry) error {
	for _, s := range f.sinks {
		if err := s.Write(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Rotate forwards to every sink that supports rotation.
func (f *Fanout) Rotate(before time.Time) error {
	for _, s := range f.sinks {
		if r, ok := s.(Rotator); ok {
			if err := r.Rotate(before); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every sink and reports all failures.
func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Filter passes through only entries in one format. Structured sinks use it
// so a record is stored once rather than once per encoding.
type Filter struct {
	Format string
	Next   Sink
}

func (f Filter) Write(ctx context.Context, e Entry) error {
	if e.Format != f.Format {
		return nil
	}
	return f.Next.Write(ctx, e)
}

func (f Filter) Close() error {
	return f.Next.Close()
}

func dayKey(t time.Time) string {
	return t.Format("20060102")
}

func wrap(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s sink: %w", name, err)
}
