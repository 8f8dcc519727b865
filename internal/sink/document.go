package sink

import (
	"time"

	"shadow-it-generator/internal/encoder"
)

// Document is the structured form of a record stored by the database and search sinks.
type Document struct {
	Timestamp       time.Time `json:"@timestamp" ch:"ts"`
	Format          string    `json:"format" ch:"format"`
	Kind            string    `json:"kind" ch:"kind"`
	SessionID       uint64    `json:"session_id,omitempty" ch:"session_id"`
	Username        string    `json:"username" ch:"username"`
	Domain          string    `json:"domain" ch:"domain"`
	SourceIP        string    `json:"source_ip" ch:"source_ip"`
	EgressIP        string    `json:"egress_ip,omitempty" ch:"egress_ip"`
	DestinationIP   string    `json:"destination_ip" ch:"destination_ip"`
	SourcePort      int       `json:"source_port" ch:"source_port"`
	DestinationPort int       `json:"destination_port" ch:"destination_port"`
	Host            string    `json:"host" ch:"host"`
	URL             string    `json:"url" ch:"url"`
	Method          string    `json:"method" ch:"method"`
	Status          int       `json:"status" ch:"status"`
	BytesIn         int64     `json:"bytes_in" ch:"bytes_in"`
	BytesOut        int64     `json:"bytes_out" ch:"bytes_out"`
	ResponseMillis  int64     `json:"response_ms" ch:"response_ms"`
	UserAgent       string    `json:"user_agent" ch:"user_agent"`
	Referrer        string    `json:"referrer,omitempty" ch:"referrer"`
	Category        string    `json:"category" ch:"category"`
	RiskLevel       string    `json:"risk_level" ch:"risk_level"`
	Action          string    `json:"action" ch:"action"`
	BlockReason     string    `json:"block_reason,omitempty" ch:"block_reason"`
	ServiceName     string    `json:"service_name,omitempty" ch:"service_name"`
	ServiceStatus   string    `json:"service_status,omitempty" ch:"service_status"`
	Raw             string    `json:"raw" ch:"raw"`
}

func NewDocument(e Entry) Document {
	r := recordOf(e)
	doc := Document{
		Timestamp:       r.Timestamp.UTC(),
		Format:          e.Format,
		Kind:            string(r.Kind),
		SessionID:       r.SessionID,
		Username:        r.Username,
		Domain:          r.Domain,
		SourceIP:        r.SourceIP.String(),
		DestinationIP:   r.DestinationIP.String(),
		SourcePort:      r.SourcePort,
		DestinationPort: r.DestinationPort,
		Host:            r.Host,
		URL:             r.URL,
		Method:          r.Method,
		Status:          r.Status,
		BytesIn:         r.BytesIn,
		BytesOut:        r.BytesOut,
		ResponseMillis:  r.ResponseMillis(),
		UserAgent:       r.UserAgent,
		Referrer:        r.Referrer,
		Category:        r.Category,
		RiskLevel:       r.RiskLevel,
		Action:          string(r.Outcome),
		BlockReason:     r.BlockReason,
		ServiceName:     r.ServiceName,
		ServiceStatus:   r.ServiceStatus,
		Raw:             trimNewline(e.Line),
	}
	if r.EgressIP.IsValid() {
		doc.EgressIP = r.EgressIP.String()
	}
	return doc
}

func trimNewline(line []byte) string {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	return string(line)
}

// recordOf tolerates entries built without a record, as tests and replay tools do.
func recordOf(e Entry) *encoder.Record {
	if e.Record != nil {
		return e.Record
	}
	return &encoder.Record{Timestamp: e.Timestamp}
}
