package encoder

import (
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadow-it-generator/internal/model"
)

func record() *Record {
	return &Record{
		Timestamp:       time.Date(2024, time.March, 4, 10, 15, 0, 0, time.UTC),
		Kind:            model.RequestActivity,
		Username:        "jdoe",
		Domain:          "acme.com",
		SourceIP:        netip.MustParseAddr("10.0.1.5"),
		DestinationIP:   netip.MustParseAddr("52.1.2.3"),
		SourcePort:      50123,
		DestinationPort: 443,
		Host:            "slack.com",
		URL:             "https://slack.com/api/chat.postMessage",
		Method:          "POST",
		Protocol:        "https",
		Status:          200,
		BytesIn:         2048,
		BytesOut:        512,
		Duration:        150 * time.Millisecond,
		UserAgent:       "Mozilla/5.0",
		Category:        "collaboration",
		RiskLevel:       "low",
		Outcome:         model.OutcomeAllowed,
		ServiceName:     "Slack",
		ServiceStatus:   string(model.StatusSanctioned),
	}
}

func TestLEEFLine(t *testing.T) {
	line, err := LEEF{}.Encode(record())
	require.NoError(t, err)

	want := "LEEF:1.0|McAfee|Web Gateway|8.2.9|0" +
		"|devTime=1709547300000|src=10.0.1.5|dst=52.1.2.3|srcPort=50123|dstPort=443" +
		"|usrName=jdoe|domain=acme.com|url=https://slack.com/api/chat.postMessage" +
		"|method=POST|proto=https|status=200|bytesIn=2048|bytesOut=512|responseTime=150" +
		"|userAgent=Mozilla/5.0|category=collaboration|riskLevel=low|action=allowed" +
		"|application=Slack\n"
	assert.Equal(t, want, string(line))
}

func TestLEEFOptionalFieldsAndExtras(t *testing.T) {
	r := record()
	r.Referrer = "https://www.google.com/search?q=slack"
	r.EgressIP = netip.MustParseAddr("203.0.113.10")
	r.Extra = []Field{{Key: "sessionId", Value: "42"}, {Key: "userProfile", Value: "normal"}}

	line, err := LEEF{}.Encode(r)
	require.NoError(t, err)
	s := string(line)
	assert.True(t, strings.HasSuffix(s,
		"|application=Slack|referrer=https://www.google.com/search?q=slack"+
			"|srcPostNAT=203.0.113.10|sessionId=42|userProfile=normal\n"))
}

func TestLEEFEscapesPipes(t *testing.T) {
	plain, err := LEEF{}.Encode(record())
	require.NoError(t, err)

	r := record()
	r.URL = "https://slack.com/search?q=a|b"
	escaped, err := LEEF{}.Encode(r)
	require.NoError(t, err)

	assert.Contains(t, string(escaped), `url=https://slack.com/search?q=a\|b`)
	// an escaped pipe must not add a field
	assert.Equal(t, countFields(string(plain)), countFields(string(escaped)))
}

func countFields(line string) int {
	n := 1
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '|':
			n++
		}
	}
	return n
}

func TestLEEFEscapesNewlines(t *testing.T) {
	r := record()
	r.UserAgent = "bad\r\nagent"
	line, err := LEEF{}.Encode(r)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(line), "\n"))
	assert.Contains(t, string(line), `userAgent=bad\r\nagent`)
}

func TestLEEFEventID(t *testing.T) {
	r := record()
	assert.Equal(t, "0", leefEventID(r))
	r.Kind = model.RequestAuth
	assert.Equal(t, "2", leefEventID(r))
	r.Outcome = model.OutcomeBlocked
	assert.Equal(t, "1", leefEventID(r))
}

func TestCEFLine(t *testing.T) {
	line, err := CEF{}.Encode(record())
	require.NoError(t, err)

	want := "CEF:0|McAfee|Web Gateway|8.2.9|100|Web request to Slack|1|" +
		"rt=1709547300000 src=10.0.1.5 dst=52.1.2.3 spt=50123 dpt=443 suser=jdoe sntdom=acme.com " +
		"request=https://slack.com/api/chat.postMessage requestMethod=POST app=HTTPS " +
		"flexNumber1=200 flexNumber1Label=HTTPStatus in=2048 out=512 cn1=150 cn1Label=ResponseTime " +
		"requestClientApplication=Mozilla/5.0 cat=collaboration act=allowed " +
		"flexString1=low flexString1Label=RiskLevel destinationServiceName=Slack\n"
	assert.Equal(t, want, string(line))
}

func TestCEFEscaping(t *testing.T) {
	r := record()
	r.URL = `https://slack.com/search?q=a=b\c`
	r.ServiceName = "Pipe|Co"
	line, err := CEF{}.Encode(r)
	require.NoError(t, err)
	s := string(line)

	assert.Contains(t, s, `request=https://slack.com/search?q\=a\=b\\c`)
	assert.True(t, strings.HasPrefix(s, `CEF:0|McAfee|Web Gateway|8.2.9|100|Web request to Pipe\|Co|1|`))
	// pipes are not escaped in extension values
	assert.Contains(t, s, "destinationServiceName=Pipe|Co")
}

func TestCEFExtrasUseCustomSlots(t *testing.T) {
	r := record()
	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		r.Extra = append(r.Extra, Field{Key: k, Value: k + "v"})
	}
	line, err := CEF{}.Encode(r)
	require.NoError(t, err)
	s := string(line)

	assert.Contains(t, s, "flexString2=av flexString2Label=a")
	assert.Contains(t, s, "flexString4=cv flexString4Label=c")
	assert.Contains(t, s, "cs1=dv cs1Label=d")
	assert.Contains(t, s, "cs3=fv cs3Label=f\n")
	assert.NotContains(t, s, "gv")
}

func TestCEFSeverity(t *testing.T) {
	tests := []struct {
		risk    string
		outcome model.Outcome
		want    int
	}{
		{"low", model.OutcomeAllowed, 1},
		{"medium", model.OutcomeAllowed, 3},
		{"high", model.OutcomeAllowed, 4},
		{"critical", model.OutcomeAllowed, 4},
		{"low", model.OutcomeBlocked, 5},
		{"medium", model.OutcomeBlocked, 6},
		{"high", model.OutcomeBlocked, 8},
		{"critical", model.OutcomeBlocked, 8},
	}
	for _, tt := range tests {
		t.Run(tt.risk+"/"+string(tt.outcome), func(t *testing.T) {
			r := record()
			r.RiskLevel, r.Outcome = tt.risk, tt.outcome
			assert.Equal(t, tt.want, cefSeverity(r))
		})
	}
}

func TestCEFClassAndName(t *testing.T) {
	r := record()
	assert.Equal(t, "100", cefClassID(r))

	r.ServiceStatus = string(model.StatusUnsanctioned)
	assert.Equal(t, "105", cefClassID(r))

	r.Kind = model.RequestAuth
	assert.Equal(t, "102", cefClassID(r))

	r.Outcome = model.OutcomeBlocked
	assert.Equal(t, "101", cefClassID(r))
	assert.Equal(t, "Blocked access to Slack", cefName(r))

	r.ServiceName = ""
	assert.Equal(t, "Blocked access to web service", cefName(r))
	r.Outcome = model.OutcomeAllowed
	assert.Equal(t, "Web request to service", cefName(r))
}

func TestMissingFields(t *testing.T) {
	tests := []struct {
		field  string
		mutate func(*Record)
	}{
		{"timestamp", func(r *Record) { r.Timestamp = time.Time{} }},
		{"source_ip", func(r *Record) { r.SourceIP = netip.Addr{} }},
		{"destination_ip", func(r *Record) { r.DestinationIP = netip.Addr{} }},
		{"username", func(r *Record) { r.Username = "" }},
		{"url", func(r *Record) { r.URL = "" }},
		{"method", func(r *Record) { r.Method = "" }},
		{"status", func(r *Record) { r.Status = 0 }},
		{"outcome", func(r *Record) { r.Outcome = "" }},
	}
	for _, enc := range []Encoder{LEEF{}, CEF{}} {
		for _, tt := range tests {
			t.Run(enc.Name()+"/"+tt.field, func(t *testing.T) {
				r := record()
				tt.mutate(r)
				line, err := enc.Encode(r)
				assert.Nil(t, line)
				require.ErrorIs(t, err, ErrMissingField)

				var fe *FieldError
				require.ErrorAs(t, err, &fe)
				assert.Equal(t, tt.field, fe.Field)
				assert.Equal(t, enc.Name(), fe.Format)
			})
		}
	}
}

func TestNew(t *testing.T) {
	encs, err := NewAll([]string{"leef", "cef"})
	require.NoError(t, err)
	require.Len(t, encs, 2)
	assert.Equal(t, "leef", encs[0].Name())
	assert.Equal(t, "cef", encs[1].Name())

	_, err = New("syslog")
	assert.Error(t, err)
}

func TestExtension(t *testing.T) {
	r := record()
	r.Extra = []Field{{Key: "junkTraffic", Value: "true"}}
	v, ok := r.Extension("junkTraffic")
	assert.True(t, ok)
	assert.Equal(t, "true", v)
	_, ok = r.Extension("missing")
	assert.False(t, ok)
}
