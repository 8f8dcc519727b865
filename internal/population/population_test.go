package population

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadow-it-generator/internal/activity"
	"shadow-it-generator/internal/config"
	"shadow-it-generator/internal/identity"
	"shadow-it-generator/internal/model"
	"shadow-it-generator/internal/netaddr"
	"shadow-it-generator/internal/random"
)

func enterprise(total int) *config.Enterprise {
	ent := &config.Enterprise{
		Enterprise: config.EnterpriseInfo{Name: "Acme", Domain: "acme.com", TotalUsers: total},
		Network:    config.Network{InternalSubnets: []string{"10.0.0.0/16"}},
		Profiles: []model.UserProfile{
			{Name: "normal", Percentage: 0.7, WorkHoursAdherence: 0.9, ShadowITLikelihood: 0.1},
			{Name: "power_user", Percentage: 0.2, WorkHoursAdherence: 0.7, ShadowITLikelihood: 0.4},
			{Name: "risky", Percentage: 0.1, WorkHoursAdherence: 0.3, ShadowITLikelihood: 0.8},
		},
	}
	ent.ApplyDefaults()
	return ent
}

var services = []*model.CloudService{
	{Name: "Slack", Status: model.StatusSanctioned, BaseAdoptionRate: 0.8},
	{Name: "Dropbox", Status: model.StatusUnsanctioned, BaseAdoptionRate: 0.5},
	{Name: "Facebook", Status: model.StatusBlocked, BaseAdoptionRate: 0.5},
}

func build(t *testing.T, ent *config.Enterprise, seed uint64) []*model.User {
	t.Helper()
	alloc, err := netaddr.NewAllocator(netaddr.Options{Internal: ent.Network.InternalSubnets})
	require.NoError(t, err)
	ids, err := identity.New(ent.Enterprise.Domain, ent.Locales)
	require.NoError(t, err)

	users, err := Build(random.New(seed), ent, services, alloc, ids)
	require.NoError(t, err)
	return users
}

func TestApportion(t *testing.T) {
	tests := []struct {
		name   string
		shares []float64
		total  int
		want   []int
	}{
		{"exact", []float64{0.7, 0.2, 0.1}, 100, []int{70, 20, 10}},
		{"remainders", []float64{0.5, 0.3, 0.2}, 7, []int{4, 2, 1}},
		{"thirds", []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}, 10, []int{4, 3, 3}},
		{"unnormalised", []float64{2, 1, 1}, 8, []int{4, 2, 2}},
		{"zero total", []float64{0.5, 0.5}, 0, []int{0, 0}},
		{"empty", nil, 10, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apportion(tt.shares, tt.total)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApportionSums(t *testing.T) {
	shares := []float64{0.37, 0.41, 0.22}
	for total := 1; total < 500; total += 7 {
		got := Apportion(shares, total)
		sum := 0
		for i, c := range got {
			sum += c
			assert.InDelta(t, shares[i]*float64(total), float64(c), 1.0)
		}
		assert.Equal(t, total, sum)
	}
}

func TestBuildProfileCounts(t *testing.T) {
	ent := enterprise(100)
	users := build(t, ent, 1)
	require.Len(t, users, 100)

	counts := map[string]int{}
	emails := map[string]bool{}
	ids := map[string]bool{}
	addrs := map[string]bool{}
	for _, u := range users {
		counts[u.Profile.Name]++
		assert.False(t, emails[u.Email])
		assert.False(t, ids[u.ID])
		assert.False(t, addrs[u.SourceIP.String()])
		emails[u.Email], ids[u.ID], addrs[u.SourceIP.String()] = true, true, true

		assert.NotEmpty(t, u.Department)
		assert.NotEmpty(t, u.PreferredAgent)
		assert.True(t, u.SourceIP.Is4())
		for _, a := range u.Adoption {
			assert.Greater(t, a.Weight, 0.0)
		}
	}
	assert.Equal(t, map[string]int{"normal": 70, "power_user": 20, "risky": 10}, counts)

	// profiles are shared, not copied
	assert.Same(t, &ent.Profiles[0], findProfile(users, "normal"))
}

func findProfile(users []*model.User, name string) *model.UserProfile {
	for _, u := range users {
		if u.Profile.Name == name {
			return u.Profile
		}
	}
	return nil
}

func TestBuildShufflesAndIsReproducible(t *testing.T) {
	ent := enterprise(100)
	a := build(t, ent, 2)
	b := build(t, ent, 2)
	for i := range a {
		assert.Equal(t, a[i].Email, b[i].Email)
		assert.Equal(t, a[i].ID, b[i].ID)
		assert.Equal(t, a[i].SourceIP, b[i].SourceIP)
	}

	// the first 70 users are not all "normal" once shuffled
	mixed := false
	for _, u := range a[:70] {
		if u.Profile.Name != "normal" {
			mixed = true
			break
		}
	}
	assert.True(t, mixed)
}

func TestBuildRejectsBadTables(t *testing.T) {
	ent := enterprise(10)
	ent.Departments = []config.Department{}
	ent.Profiles = nil
	alloc, err := netaddr.NewAllocator(netaddr.Options{Internal: []string{"10.0.0.0/24"}})
	require.NoError(t, err)
	ids, err := identity.New("acme.com", nil)
	require.NoError(t, err)

	_, err = Build(random.New(1), ent, services, alloc, ids)
	assert.ErrorIs(t, err, ErrNoProfiles)

	ent = enterprise(10)
	ent.Departments = []config.Department{}
	_, err = Build(random.New(1), ent, services, alloc, ids)
	assert.ErrorIs(t, err, random.ErrInvalidWeights)
}

func selector(t *testing.T) *Selector {
	t.Helper()
	ent := enterprise(0)
	act, err := activity.New(ent.Traffic, time.UTC)
	require.NoError(t, err)
	return NewSelector(act)
}

func TestActiveSize(t *testing.T) {
	users := build(t, enterprise(200), 3)
	sel := selector(t)
	peak := time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)
	src := random.New(4)

	for i := 0; i < 100; i++ {
		active := sel.Active(src, users, peak, 0.5)
		assert.GreaterOrEqual(t, len(active), 80)
		assert.LessOrEqual(t, len(active), 120)

		// population order, no repeats
		pos := map[*model.User]int{}
		for j, u := range users {
			pos[u] = j
		}
		for j := 1; j < len(active); j++ {
			assert.Less(t, pos[active[j-1]], pos[active[j]])
		}
	}

	assert.Len(t, sel.Active(src, users, peak, 5), len(users))
	assert.Empty(t, sel.Active(src, users, peak, 0))
	assert.Empty(t, sel.Active(src, nil, peak, 1))
}

func TestActiveOffHoursFavoursRisky(t *testing.T) {
	users := build(t, enterprise(500), 5)
	sel := selector(t)
	night := time.Date(2024, time.March, 4, 2, 0, 0, 0, time.UTC)
	src := random.New(6)

	var risky, total int
	for i := 0; i < 200; i++ {
		for _, u := range sel.Active(src, users, night, 0.05) {
			total++
			if u.Profile.Name == "risky" {
				risky++
			}
		}
	}
	require.Greater(t, total, 0)
	// risky users are 10% of the population but dominate after hours
	assert.Greater(t, float64(risky)/float64(total), 0.25)
}

func TestWeight(t *testing.T) {
	normal := &model.UserProfile{Name: "normal", WorkHoursAdherence: 0.9}
	risky := &model.UserProfile{Name: "risky", WorkHoursAdherence: 0.3}
	power := &model.UserProfile{Name: "power_user", WorkHoursAdherence: 0.6}

	tests := []struct {
		name     string
		user     *model.User
		inHours  bool
		nearPeak bool
		want     float64
	}{
		{"normal in hours", &model.User{Profile: normal, Department: "HR"}, true, false, 1.0},
		{"normal off hours", &model.User{Profile: normal, Department: "HR"}, false, false, 0.2},
		{"risky in hours", &model.User{Profile: risky, Department: "HR"}, true, false, 1.2},
		{"risky off hours", &model.User{Profile: risky, Department: "HR"}, false, false, 1.6},
		{"power it off hours", &model.User{Profile: power, Department: "IT"}, false, false, 1.5 * 1.5 * 0.5},
		{"sales near peak", &model.User{Profile: normal, Department: "Sales"}, true, true, 1.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Weight(tt.user, tt.inHours, tt.nearPeak), 1e-9)
		})
	}
}
