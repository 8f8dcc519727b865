package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadow-it-generator/internal/config"
	"shadow-it-generator/internal/model"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const slackYAML = `
name: Slack
status: sanctioned
category: collaboration
risk_level: low
base_adoption_rate: 0.7
domains: [app.slack.com]
endpoints:
  - {path: /client, method: GET, weight: 0.6}
  - {path: /api/chat.postMessage, method: POST, weight: 0.4}
`

const boxYAML = `
services:
  - name: Box
    status: unsanctioned
    category: cloud_storage
    risk_level: medium
    base_adoption_rate: 0.2
    block_rate: 0.3
    domains: [app.box.com]
    endpoints:
      - {path: /folder, method: GET, weight: 1.0}
`

func TestDefaultServices(t *testing.T) {
	svc, err := DefaultServices()
	require.NoError(t, err)

	assert.Equal(t, 10, svc.Len())
	assert.Equal(t, 4, svc.CountByStatus(model.StatusSanctioned))
	assert.Equal(t, 3, svc.CountByStatus(model.StatusUnsanctioned))
	assert.Equal(t, 3, svc.CountByStatus(model.StatusBlocked))

	slack, ok := svc.Get("Slack")
	require.True(t, ok)
	assert.Equal(t, "collaboration", slack.Category)
	assert.Same(t, slack, svc.All()[1])
}

func TestLoadServicesDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b_slack.yaml", slackYAML)
	writeFile(t, dir, "a_box.yml", boxYAML)
	writeFile(t, dir, "README.md", "not a service")

	svc, err := LoadServices(dir)
	require.NoError(t, err)
	require.Equal(t, 2, svc.Len())

	// lexical file order
	assert.Equal(t, "Box", svc.All()[0].Name)
	assert.Equal(t, "Slack", svc.All()[1].Name)
}

func TestLoadServicesSingleFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "slack.yaml", slackYAML)
	svc, err := LoadServices(path)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.Len())
}

func TestLoadServicesRejects(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{
			name: "endpoint weights off",
			body: `
name: Bad
status: sanctioned
category: crm
risk_level: low
domains: [bad.example.com]
endpoints:
  - {path: /a, method: GET, weight: 0.5}
  - {path: /b, method: GET, weight: 0.3}
`,
			field: "services[0].endpoints",
		},
		{
			name: "unknown status",
			body: `
name: Bad
status: tolerated
category: crm
risk_level: low
domains: [bad.example.com]
endpoints:
  - {path: /a, method: GET, weight: 1.0}
`,
			field: "services[0].status",
		},
		{
			name: "no domains",
			body: `
name: Bad
status: blocked
category: crm
risk_level: low
endpoints:
  - {path: /a, method: GET, weight: 1.0}
`,
			field: "services[0].domains",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "svc.yaml", tt.body)
			_, err := LoadServices(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrInvalidConfig)

			var verr *config.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.True(t, verr.Has(tt.field), "violations: %v", verr.Violations)
		})
	}
}

func TestLoadServicesUnknownKey(t *testing.T) {
	path := writeFile(t, t.TempDir(), "svc.yaml", slackYAML+"colour: blue\n")
	_, err := LoadServices(path)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLoadServicesDuplicate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", slackYAML)
	writeFile(t, dir, "b.yaml", slackYAML)

	_, err := LoadServices(dir)
	assert.ErrorIs(t, err, ErrDuplicateService)
}

func TestLoadServicesEmptyDirectory(t *testing.T) {
	_, err := LoadServices(t.TempDir())
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestDefaultJunkCatalog(t *testing.T) {
	jc, err := DefaultJunkCatalog()
	require.NoError(t, err)
	require.Len(t, jc.Categories, 6)

	news, ok := jc.Category("news")
	require.True(t, ok)
	assert.NotEmpty(t, news.Sites)
	assert.InDelta(t, 1.0, news.AllowedRate+news.BlockedRate, 1e-9)

	_, ok = jc.Category("gambling")
	assert.False(t, ok)
}

func TestParseJunkCatalogRejectsDuplicates(t *testing.T) {
	body := `
categories:
  - name: news
    allowed_rate: 0.9
    sites: [{domain: a.example.com, popularity: 1}]
  - name: news
    allowed_rate: 0.9
    sites: [{domain: b.example.com, popularity: 1}]
`
	_, err := ParseJunkCatalog([]byte(body), "test")
	var verr *config.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.Has("categories[1].name"))
}

func TestCheckJunkCategories(t *testing.T) {
	jc, err := DefaultJunkCatalog()
	require.NoError(t, err)

	ok := config.JunkTraffic{Categories: map[string]float64{"news": 0.5, "misc": 0.5}}
	assert.NoError(t, CheckJunkCategories(ok, jc))

	missing := config.JunkTraffic{Categories: map[string]float64{"news": 0.5, "gambling": 0.5, "unused": 0}}
	err = CheckJunkCategories(missing, jc)
	var verr *config.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.Has("junk_traffic.categories.gambling"))
	assert.False(t, verr.Has("junk_traffic.categories.unused"))

	off := false
	assert.NoError(t, CheckJunkCategories(config.JunkTraffic{Enabled: &off, Categories: missing.Categories}, jc))
}
