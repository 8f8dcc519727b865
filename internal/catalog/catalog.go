// Package catalog loads the cloud service catalog and the junk-site catalog.
// Both are read once, validated and then shared read-only.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"shadow-it-generator/internal/config"
	"shadow-it-generator/internal/model"
)

var ErrDuplicateService = errors.New("duplicate service name")

//go:embed services.yaml
var defaultServicesYAML []byte

//go:embed junk_sites.yaml
var defaultJunkYAML []byte

// Services is an ordered, immutable service catalog.
type Services struct {
	items  []*model.CloudService
	byName map[string]*model.CloudService
}

type servicesDocument struct {
	Services []model.CloudService `yaml:"services"`
}

// NewServices validates services and keeps them in the given order.
func NewServices(services []model.CloudService) (*Services, error) {
	return newServices("", services)
}

func newServices(source string, services []model.CloudService) (*Services, error) {
	verr := &config.ValidationError{Source: source}
	if len(services) == 0 {
		verr.Add("services", "must have at least 1 entries")
		return nil, verr
	}

	c := &Services{
		items:  make([]*model.CloudService, 0, len(services)),
		byName: make(map[string]*model.CloudService, len(services)),
	}
	var dupes []string
	for i := range services {
		svc := services[i]
		prefix := fmt.Sprintf("services[%d]", i)
		validateService(verr, prefix, &svc)

		if _, exists := c.byName[svc.Name]; exists {
			dupes = append(dupes, svc.Name)
			continue
		}
		c.items = append(c.items, &svc)
		c.byName[svc.Name] = &svc
	}

	if len(dupes) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateService, strings.Join(dupes, ", "))
	}
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}
	return c, nil
}

func validateService(verr *config.ValidationError, prefix string, svc *model.CloudService) {
	config.ValidateStruct(verr, prefix, svc)

	if len(svc.Endpoints) == 0 {
		return
	}
	weights := make([]float64, len(svc.Endpoints))
	for i, ep := range svc.Endpoints {
		weights[i] = ep.Weight
	}
	if total, ok := config.SumsToOne(weights); !ok {
		verr.Add(prefix+".endpoints", "weights sum to %.3f, want 1.0", total)
	}
}

// All returns services in catalog order. Callers must not modify the entries.
func (c *Services) All() []*model.CloudService {
	return c.items
}

func (c *Services) Get(name string) (*model.CloudService, bool) {
	svc, ok := c.byName[name]
	return svc, ok
}

func (c *Services) Len() int {
	return len(c.items)
}

// CountByStatus is used by the validate command summary.
func (c *Services) CountByStatus(status model.ServiceStatus) int {
	n := 0
	for _, svc := range c.items {
		if svc.Status == status {
			n++
		}
	}
	return n
}

// DefaultServices returns the built-in catalog.
func DefaultServices() (*Services, error) {
	services, err := decodeServices(defaultServicesYAML)
	if err != nil {
		return nil, fmt.Errorf("embedded services: %w", err)
	}
	return newServices("embedded", services)
}

// LoadServices reads a YAML file or every *.yaml / *.yml file in a directory,
// in lexical file order. An empty path yields the built-in catalog.
func LoadServices(path string) (*Services, error) {
	if path == "" {
		return DefaultServices()
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat service catalog: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = yamlFiles(path)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("%w: no service files in %s", config.ErrInvalidConfig, path)
		}
	}

	var all []model.CloudService
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read service file: %w", err)
		}
		services, err := decodeServices(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		all = append(all, services...)
	}
	return newServices(path, all)
}

func yamlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read service directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// decodeServices accepts either a document with a top-level services list or
// a single service document.
func decodeServices(data []byte) ([]model.CloudService, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	if hasKey(root.Content[0], "services") {
		var doc servicesDocument
		if err := strictDecode(data, &doc); err != nil {
			return nil, err
		}
		return doc.Services, nil
	}

	var svc model.CloudService
	if err := strictDecode(data, &svc); err != nil {
		return nil, err
	}
	return []model.CloudService{svc}, nil
}

func hasKey(node *yaml.Node, key string) bool {
	if node.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}

func strictDecode(data []byte, out interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	return nil
}
