// Package encoder renders request records as LEEF and CEF lines.
package encoder

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"shadow-it-generator/internal/model"
)

var ErrMissingField = errors.New("missing required field")

// FieldError rejects a single record that cannot be rendered.
type FieldError struct {
	Format string
	Field  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Format, ErrMissingField, e.Field)
}

func (e *FieldError) Unwrap() error {
	return ErrMissingField
}

// Field is one ordered extra attribute.
type Field struct {
	Key   string
	Value string
}

// Record is a request event together with the user, session and service it belongs to.
type Record struct {
	Timestamp       time.Time
	Kind            model.RequestKind
	SessionID       uint64
	Username        string
	Domain          string
	SourceIP        netip.Addr
	EgressIP        netip.Addr
	DestinationIP   netip.Addr
	SourcePort      int
	DestinationPort int
	Host            string
	URL             string
	Method          string
	Protocol        string
	Status          int
	BytesIn         int64
	BytesOut        int64
	Duration        time.Duration
	UserAgent       string
	Referrer        string
	Category        string
	RiskLevel       string
	Outcome         model.Outcome
	BlockReason     string
	ServiceName     string
	ServiceStatus   string
	Extra           []Field
}

func (r *Record) Blocked() bool {
	return r.Outcome == model.OutcomeBlocked
}

// ResponseMillis is the request duration in whole milliseconds.
func (r *Record) ResponseMillis() int64 {
	return r.Duration.Milliseconds()
}

// Extension looks up an extra attribute by key.
func (r *Record) Extension(key string) (string, bool) {
	for _, f := range r.Extra {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Encoder turns one record into one newline-terminated line.
type Encoder interface {
	Name() string
	Encode(r *Record) ([]byte, error)
}

func checkRequired(format string, r *Record) error {
	switch {
	case r.Timestamp.IsZero():
		return &FieldError{Format: format, Field: "timestamp"}
	case !r.SourceIP.IsValid():
		return &FieldError{Format: format, Field: "source_ip"}
	case !r.DestinationIP.IsValid():
		return &FieldError{Format: format, Field: "destination_ip"}
	case r.Username == "":
		return &FieldError{Format: format, Field: "username"}
	case r.URL == "":
		return &FieldError{Format: format, Field: "url"}
	case r.Method == "":
		return &FieldError{Format: format, Field: "method"}
	case r.Status == 0:
		return &FieldError{Format: format, Field: "status"}
	case r.Outcome == "":
		return &FieldError{Format: format, Field: "outcome"}
	}
	return nil
}

// New returns the encoder registered under name.
func New(name string) (Encoder, error) {
	switch name {
	case FormatLEEF:
		return LEEF{}, nil
	case FormatCEF:
		return CEF{}, nil
	default:
		return nil, fmt.Errorf("unknown log format %q", name)
	}
}

// NewAll builds encoders for names in order.
func NewAll(names []string) ([]Encoder, error) {
	encoders := make([]Encoder, 0, len(names))
	for _, name := range names {
		enc, err := New(name)
		if err != nil {
			return nil, err
		}
		encoders = append(encoders, enc)
	}
	return encoders, nil
}

const (
	vendor        = "McAfee"
	product       = "Web Gateway"
	deviceVersion = "8.2.9"
)
