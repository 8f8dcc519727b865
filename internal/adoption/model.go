// Package adoption decides which services a user takes up and whether a
// given attempt to reach a service is blocked.
package adoption

import (
	"shadow-it-generator/internal/model"
	"shadow-it-generator/internal/random"
)

const sanctionedBlockFactor = 0.25

var multipliers = map[model.Stance]map[model.ServiceStatus]float64{
	model.StanceConservative: {
		model.StatusSanctioned:   1.2,
		model.StatusUnsanctioned: 0.5,
		model.StatusBlocked:      0.1,
	},
	model.StanceBalanced: {
		model.StatusSanctioned:   1.5,
		model.StatusUnsanctioned: 0.8,
		model.StatusBlocked:      0.2,
	},
	model.StancePermissive: {
		model.StatusSanctioned:   0.8,
		model.StatusUnsanctioned: 1.5,
		model.StatusBlocked:      0.8,
	},
}

// Multiplier returns the stance/status factor applied to a service's base rate.
func Multiplier(stance model.Stance, status model.ServiceStatus) float64 {
	row, ok := multipliers[stance]
	if !ok {
		row = multipliers[model.StanceConservative]
	}
	if m, ok := row[status]; ok {
		return m
	}
	return 1
}

// Probability is the chance that a user with profile adopts svc.
func Probability(profile *model.UserProfile, svc *model.CloudService) float64 {
	p := svc.BaseAdoptionRate * Multiplier(profile.EffectiveStance(), svc.Status)
	if svc.Status != model.StatusSanctioned {
		p *= profile.ShadowITLikelihood
	}
	return clamp01(p)
}

// Adopt walks the catalog in order and keeps each service with its adoption
// probability. One draw is consumed per service.
func Adopt(src *random.Source, profile *model.UserProfile, services []*model.CloudService) []model.Adoption {
	var adopted []model.Adoption
	for _, svc := range services {
		p := Probability(profile, svc)
		if src.Float64() < p {
			adopted = append(adopted, model.Adoption{Service: svc, Weight: p})
		}
	}
	return adopted
}

// BlockRate is the effective per-attempt block probability.
func BlockRate(svc *model.CloudService, profile *model.UserProfile) float64 {
	switch svc.Status {
	case model.StatusBlocked:
		return 1
	case model.StatusSanctioned:
		return clamp01(svc.BlockRate * sanctionedBlockFactor)
	default:
		rate := svc.BlockRate
		if profile.EffectiveStance() == model.StancePermissive {
			rate *= 1.5
		}
		return clamp01(rate)
	}
}

// IsBlocked decides one attempt. Blocked services are always blocked; for
// conservative profiles no draw is consumed.
func IsBlocked(src *random.Source, svc *model.CloudService, profile *model.UserProfile) bool {
	if svc.Status == model.StatusBlocked && profile.EffectiveStance() == model.StanceConservative {
		return true
	}
	rate := BlockRate(svc, profile)
	return src.Float64() < rate
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
