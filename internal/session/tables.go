package session

import (
	"time"

	"shadow-it-generator/internal/model"
	"shadow-it-generator/internal/random"
)

type durationRange struct {
	min, max time.Duration
}

var categoryDurations = map[string]durationRange{
	"collaboration": {20 * time.Minute, 60 * time.Minute},
	"cloud_storage": {5 * time.Minute, 30 * time.Minute},
	"productivity":  {15 * time.Minute, 90 * time.Minute},
	"development":   {30 * time.Minute, 120 * time.Minute},
	"email":         {10 * time.Minute, 45 * time.Minute},
	"crm":           {20 * time.Minute, 60 * time.Minute},
	"analytics":     {15 * time.Minute, 60 * time.Minute},
	"ai_ml":         {10 * time.Minute, 45 * time.Minute},
	"social_media":  {5 * time.Minute, 30 * time.Minute},
}

var defaultDuration = durationRange{10 * time.Minute, 40 * time.Minute}

var mobileRate = map[model.Stance]float64{
	model.StanceConservative: 0.2,
	model.StanceBalanced:     0.3,
	model.StancePermissive:   0.4,
}

// DefaultMobileAgents is used when no mobile browser list is configured.
var DefaultMobileAgents = []string{
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.144 Mobile Safari/537.36",
	"Mozilla/5.0 (Linux; Android 13; SM-S918B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.6045.163 Mobile Safari/537.36",
	"Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
}

var authPaths = []string{"/login", "/api/auth", "/oauth/authorize", "/saml/sso"}

var (
	successStatus = random.MustWeighted([]int{200, 304}, []float64{0.8, 0.2})
	errorStatus   = random.MustWeighted(
		[]int{400, 401, 403, 404, 429, 500, 502, 503},
		[]float64{0.15, 0.10, 0.15, 0.25, 0.10, 0.15, 0.05, 0.05},
	)
)

const successRate = 0.95

var (
	highRiskReasons = []string{
		"High Risk Application",
		"Security Policy Violation",
		"Unauthorized Application",
		"Malware Risk",
	}
	leisureReasons = []string{
		"Social Media Blocked",
		"Entertainment Site Blocked",
		"Productivity Policy",
		"Non-Business Use",
	}
	policyReasons = []string{
		"Unsanctioned Application",
		"Policy Violation",
		"Access Denied",
		"IT Policy Block",
	}
)

// BlockReasons returns the reason pool used for a blocked attempt on svc.
func BlockReasons(svc *model.CloudService) []string {
	switch {
	case svc.IsHighRisk():
		return highRiskReasons
	case svc.Category == "social_media" || svc.Category == "entertainment":
		return leisureReasons
	default:
		return policyReasons
	}
}

func durationFor(category string, stance model.Stance) durationRange {
	r, ok := categoryDurations[category]
	if !ok {
		r = defaultDuration
	}
	switch stance {
	case model.StanceBalanced:
		r.max = r.max * 3 / 2
	case model.StancePermissive:
		r.max = r.max * 4 / 5
	}
	if r.max < r.min {
		r.max = r.min
	}
	return r
}
