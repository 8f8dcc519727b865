package encoder

import (
	"strconv"
	"strings"

	"shadow-it-generator/internal/model"
)

const FormatLEEF = "leef"

var leefEscaper = strings.NewReplacer(`\`, `\\`, `|`, `\|`, "\n", `\n`, "\r", `\r`)

// LEEF writes LEEF 1.0 with pipe-separated attributes.
type LEEF struct{}

func (LEEF) Name() string {
	return FormatLEEF
}

func (LEEF) Encode(r *Record) ([]byte, error) {
	if err := checkRequired(FormatLEEF, r); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.Grow(512)
	b.WriteString("LEEF:1.0|")
	b.WriteString(vendor)
	b.WriteByte('|')
	b.WriteString(product)
	b.WriteByte('|')
	b.WriteString(deviceVersion)
	b.WriteByte('|')
	b.WriteString(leefEventID(r))

	attr := func(key, value string) {
		b.WriteByte('|')
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(leefEscaper.Replace(value))
	}

	attr("devTime", strconv.FormatInt(r.Timestamp.UnixMilli(), 10))
	attr("src", r.SourceIP.String())
	attr("dst", r.DestinationIP.String())
	attr("srcPort", strconv.Itoa(r.SourcePort))
	attr("dstPort", strconv.Itoa(r.DestinationPort))
	attr("usrName", r.Username)
	attr("domain", r.Domain)
	attr("url", r.URL)
	attr("method", r.Method)
	attr("proto", r.Protocol)
	attr("status", strconv.Itoa(r.Status))
	attr("bytesIn", strconv.FormatInt(r.BytesIn, 10))
	attr("bytesOut", strconv.FormatInt(r.BytesOut, 10))
	attr("responseTime", strconv.FormatInt(r.ResponseMillis(), 10))
	attr("userAgent", r.UserAgent)
	attr("category", r.Category)
	attr("riskLevel", r.RiskLevel)
	attr("action", string(r.Outcome))
	if r.ServiceName != "" {
		attr("application", r.ServiceName)
	}
	if r.Referrer != "" {
		attr("referrer", r.Referrer)
	}
	if r.EgressIP.IsValid() {
		attr("srcPostNAT", r.EgressIP.String())
	}
	for _, f := range r.Extra {
		attr(f.Key, f.Value)
	}

	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func leefEventID(r *Record) string {
	switch {
	case r.Blocked():
		return "1"
	case r.Kind == model.RequestAuth:
		return "2"
	default:
		return "0"
	}
}
