package encoder

import (
	"strconv"
	"strings"

	"shadow-it-generator/internal/model"
)

const FormatCEF = "cef"

var (
	cefHeaderEscaper    = strings.NewReplacer(`\`, `\\`, `|`, `\|`)
	cefExtensionEscaper = strings.NewReplacer(`\`, `\\`, `=`, `\=`, "\n", `\n`, "\r", `\r`)
)

// extraSlots are the custom CEF keys extras are mapped onto, in order.
var extraSlots = []string{"flexString2", "flexString3", "flexString4", "cs1", "cs2", "cs3"}

// CEF writes ArcSight CEF version 0.
type CEF struct{}

func (CEF) Name() string {
	return FormatCEF
}

func (CEF) Encode(r *Record) ([]byte, error) {
	if err := checkRequired(FormatCEF, r); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.Grow(640)
	b.WriteString("CEF:0|")
	b.WriteString(cefHeaderEscaper.Replace(vendor))
	b.WriteByte('|')
	b.WriteString(cefHeaderEscaper.Replace(product))
	b.WriteByte('|')
	b.WriteString(cefHeaderEscaper.Replace(deviceVersion))
	b.WriteByte('|')
	b.WriteString(cefClassID(r))
	b.WriteByte('|')
	b.WriteString(cefHeaderEscaper.Replace(cefName(r)))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(cefSeverity(r)))
	b.WriteByte('|')

	first := true
	ext := func(key, value string) {
		if !first {
			b.WriteByte(' ')
		}
		first = false
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(cefExtensionEscaper.Replace(value))
	}

	ext("rt", strconv.FormatInt(r.Timestamp.UnixMilli(), 10))
	ext("src", r.SourceIP.String())
	ext("dst", r.DestinationIP.String())
	ext("spt", strconv.Itoa(r.SourcePort))
	ext("dpt", strconv.Itoa(r.DestinationPort))
	ext("suser", r.Username)
	ext("sntdom", r.Domain)
	ext("request", r.URL)
	ext("requestMethod", r.Method)
	ext("app", strings.ToUpper(r.Protocol))
	ext("flexNumber1", strconv.Itoa(r.Status))
	ext("flexNumber1Label", "HTTPStatus")
	ext("in", strconv.FormatInt(r.BytesIn, 10))
	ext("out", strconv.FormatInt(r.BytesOut, 10))
	ext("cn1", strconv.FormatInt(r.ResponseMillis(), 10))
	ext("cn1Label", "ResponseTime")
	ext("requestClientApplication", r.UserAgent)
	ext("cat", r.Category)
	ext("act", string(r.Outcome))
	ext("flexString1", r.RiskLevel)
	ext("flexString1Label", "RiskLevel")
	if r.ServiceName != "" {
		ext("destinationServiceName", r.ServiceName)
	}
	if r.Referrer != "" {
		ext("requestContext", r.Referrer)
	}
	if r.EgressIP.IsValid() {
		ext("sourceTranslatedAddress", r.EgressIP.String())
	}

	for i, f := range r.Extra {
		if i >= len(extraSlots) {
			break
		}
		ext(extraSlots[i], f.Value)
		ext(extraSlots[i]+"Label", f.Key)
	}

	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func cefClassID(r *Record) string {
	switch {
	case r.Blocked():
		return "101"
	case r.Kind == model.RequestAuth:
		return "102"
	case r.ServiceStatus == string(model.StatusUnsanctioned):
		return "105"
	default:
		return "100"
	}
}

func cefName(r *Record) string {
	if r.Blocked() {
		if r.ServiceName == "" {
			return "Blocked access to web service"
		}
		return "Blocked access to " + r.ServiceName
	}
	if r.ServiceName == "" {
		return "Web request to service"
	}
	return "Web request to " + r.ServiceName
}

func cefSeverity(r *Record) int {
	if r.Blocked() {
		switch r.RiskLevel {
		case "high", "critical":
			return 8
		case "medium":
			return 6
		default:
			return 5
		}
	}
	switch r.RiskLevel {
	case "low":
		return 1
	case "medium":
		return 3
	default:
		return 4
	}
}
