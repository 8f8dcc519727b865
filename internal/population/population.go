// Package population creates the simulated workforce and picks who is
// online in a given hour.
package population

import (
	"errors"
	"fmt"
	"math"
	"net/netip"
	"sort"
	"time"

	"github.com/google/uuid"

	"shadow-it-generator/internal/activity"
	"shadow-it-generator/internal/adoption"
	"shadow-it-generator/internal/config"
	"shadow-it-generator/internal/identity"
	"shadow-it-generator/internal/model"
	"shadow-it-generator/internal/netaddr"
	"shadow-it-generator/internal/random"
)

const addressAttempts = 16

var ErrNoProfiles = errors.New("no user profiles")

// Apportion splits total across shares with the largest remainder method.
// The result sums to total exactly; ties go to the earlier share.
func Apportion(shares []float64, total int) []int {
	counts := make([]int, len(shares))
	if len(shares) == 0 || total <= 0 {
		return counts
	}

	sum := 0.0
	for _, s := range shares {
		sum += s
	}
	if sum <= 0 {
		return counts
	}

	type remainder struct {
		index int
		frac  float64
	}
	rems := make([]remainder, len(shares))
	assigned := 0
	for i, s := range shares {
		exact := s / sum * float64(total)
		counts[i] = int(math.Floor(exact))
		assigned += counts[i]
		rems[i] = remainder{index: i, frac: exact - math.Floor(exact)}
	}

	sort.SliceStable(rems, func(a, b int) bool { return rems[a].frac > rems[b].frac })
	for i := 0; assigned < total; i++ {
		counts[rems[i%len(rems)].index]++
		assigned++
	}
	return counts
}

// Build creates every user for a run. Adoption is settled here, once per user.
func Build(src *random.Source, ent *config.Enterprise, services []*model.CloudService, alloc *netaddr.Allocator, ids *identity.Allocator) ([]*model.User, error) {
	if len(ent.Profiles) == 0 {
		return nil, ErrNoProfiles
	}

	shares := make([]float64, len(ent.Profiles))
	for i, p := range ent.Profiles {
		shares[i] = p.Percentage
	}
	counts := Apportion(shares, ent.Enterprise.TotalUsers)

	assignment := make([]*model.UserProfile, 0, ent.Enterprise.TotalUsers)
	for i := range ent.Profiles {
		for n := 0; n < counts[i]; n++ {
			assignment = append(assignment, &ent.Profiles[i])
		}
	}
	src.Shuffle(len(assignment), func(i, j int) {
		assignment[i], assignment[j] = assignment[j], assignment[i]
	})

	departments, err := departmentSampler(ent.Departments)
	if err != nil {
		return nil, err
	}
	browsers, err := browserSampler(ent.Browsers)
	if err != nil {
		return nil, err
	}

	used := make(map[netip.Addr]bool, len(assignment))
	users := make([]*model.User, 0, len(assignment))
	for _, profile := range assignment {
		id := ids.Next(src)
		uid, err := uuid.NewRandomFromReader(src)
		if err != nil {
			return nil, fmt.Errorf("user id: %w", err)
		}

		user := &model.User{
			ID:             uid.String(),
			Email:          id.Email,
			Username:       id.Username,
			FullName:       id.FullName,
			Locale:         id.Locale,
			Department:     departments.Pick(src),
			Profile:        profile,
			SourceIP:       uniqueAddress(src, alloc, used),
			PreferredAgent: browsers.Pick(src),
		}
		user.Adoption = adoption.Adopt(src, profile, services)
		users = append(users, user)
	}
	return users, nil
}

func uniqueAddress(src *random.Source, alloc *netaddr.Allocator, used map[netip.Addr]bool) netip.Addr {
	var addr netip.Addr
	for i := 0; i < addressAttempts; i++ {
		addr = alloc.Internal(src)
		if !used[addr] {
			break
		}
	}
	used[addr] = true
	return addr
}

func departmentSampler(depts []config.Department) (*random.Weighted[string], error) {
	names := make([]string, len(depts))
	weights := make([]float64, len(depts))
	for i, d := range depts {
		names[i] = d.Name
		weights[i] = d.Weight
	}
	w, err := random.NewWeighted(names, weights)
	if err != nil {
		return nil, fmt.Errorf("departments: %w", err)
	}
	return w, nil
}

func browserSampler(browsers []config.Browser) (*random.Weighted[string], error) {
	agents := make([]string, len(browsers))
	weights := make([]float64, len(browsers))
	for i, b := range browsers {
		agents[i] = b.UserAgent
		weights[i] = b.Weight
	}
	w, err := random.NewWeighted(agents, weights)
	if err != nil {
		return nil, fmt.Errorf("browsers: %w", err)
	}
	return w, nil
}

// Selector picks the users active in an hour.
type Selector struct {
	activity *activity.Model
}

func NewSelector(act *activity.Model) *Selector {
	return &Selector{activity: act}
}

// Active returns roughly intensity×N users, drawn without replacement and
// returned in population order.
func (s *Selector) Active(src *random.Source, users []*model.User, t time.Time, intensity float64) []*model.User {
	n := len(users)
	if n == 0 {
		return nil
	}

	k := int(math.Round(float64(n) * intensity * src.Uniform(0.8, 1.2)))
	if k <= 0 {
		return nil
	}
	if k > n {
		k = n
	}

	inHours := s.activity.InWorkingHours(t)
	nearPeak := s.activity.NearPeak(t)
	weights := make([]float64, n)
	for i, u := range users {
		weights[i] = Weight(u, inHours, nearPeak)
	}

	picked := random.SampleWeighted(src, weights, k)
	active := make([]*model.User, len(picked))
	for i, idx := range picked {
		active[i] = users[idx]
	}
	return active
}

// Weight is a user's relative chance of being online.
func Weight(u *model.User, inHours, nearPeak bool) float64 {
	w := 1.0
	switch u.Profile.EffectiveStance() {
	case model.StanceBalanced:
		w = 1.5
	case model.StancePermissive:
		if inHours {
			w = 1.2
		} else {
			w = 2.0
		}
	}

	switch {
	case u.Department == "IT" && !inHours:
		w *= 1.5
	case u.Department == "Sales" && nearPeak:
		w *= 1.2
	}

	if !inHours {
		w *= 1.1 - u.Profile.WorkHoursAdherence
	}
	return math.Max(w, 0)
}
