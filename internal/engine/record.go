package engine

import (
	"net/netip"
	"strconv"

	"shadow-it-generator/internal/encoder"
	"shadow-it-generator/internal/model"
)

// item is one generated event with the session it came from. Noise items have no session.
type item struct {
	event   model.RequestEvent
	session *model.Session
	egress  netip.Addr
}

func scheme(port int) string {
	if port == 80 {
		return "http"
	}
	return "https"
}

// buildRecord joins an event with its user, session and service for encoding.
func (e *Engine) buildRecord(u *model.User, it *item) *encoder.Record {
	ev := &it.event
	proto := scheme(ev.DestinationPort)

	r := &encoder.Record{
		Timestamp:       ev.Timestamp,
		Kind:            ev.Kind,
		Username:        u.Username,
		Domain:          e.ent.Enterprise.Domain,
		SourceIP:        ev.SourceIP,
		EgressIP:        it.egress,
		DestinationIP:   ev.DestinationIP,
		SourcePort:      ev.SourcePort,
		DestinationPort: ev.DestinationPort,
		Host:            ev.Host,
		URL:             proto + "://" + ev.Host + ev.Path,
		Method:          ev.Method,
		Protocol:        proto,
		Status:          ev.Status,
		BytesIn:         ev.BytesReceived,
		BytesOut:        ev.BytesSent,
		Duration:        ev.Duration,
		UserAgent:       ev.UserAgent,
		Referrer:        ev.Referrer,
		Outcome:         ev.Outcome,
		BlockReason:     ev.BlockReason,
	}

	if ev.IsNoise() {
		cat := ev.NoiseCategory
		r.ServiceName = "Internet-" + cat
		if ev.Outcome == model.OutcomeBlocked {
			r.Category = "blocked_content"
			r.RiskLevel = "medium"
		} else {
			r.Category = "general_" + cat
			r.RiskLevel = "low"
		}
		r.Extra = []encoder.Field{
			{Key: "junkTraffic", Value: "true"},
			{Key: "siteCategory", Value: cat},
			{Key: "siteDomain", Value: ev.Host},
		}
	} else if s := it.session; s != nil {
		svc := s.Service
		r.SessionID = s.ID
		r.Category = svc.Category
		r.RiskLevel = svc.RiskLevel
		r.ServiceName = svc.Name
		r.ServiceStatus = string(svc.Status)

		device := "desktop"
		if s.Mobile {
			device = "mobile"
		}
		r.Extra = []encoder.Field{
			{Key: "sessionId", Value: strconv.FormatUint(s.ID, 10)},
			{Key: "serviceStatus", Value: string(svc.Status)},
			{Key: "deviceType", Value: device},
		}
	}

	if ev.BlockReason != "" {
		r.Extra = append(r.Extra, encoder.Field{Key: "blockReason", Value: ev.BlockReason})
	}
	return r
}
