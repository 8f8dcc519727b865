package catalog

import (
	"fmt"
	"os"

	"shadow-it-generator/internal/config"
	"shadow-it-generator/internal/model"
)

// DefaultJunkCatalog returns the built-in background sites.
func DefaultJunkCatalog() (*model.JunkCatalog, error) {
	return ParseJunkCatalog(defaultJunkYAML, "embedded")
}

// LoadJunkCatalog reads a junk-site file. An empty path yields the built-in catalog.
func LoadJunkCatalog(path string) (*model.JunkCatalog, error) {
	if path == "" {
		return DefaultJunkCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read junk catalog: %w", err)
	}
	return ParseJunkCatalog(data, path)
}

func ParseJunkCatalog(data []byte, source string) (*model.JunkCatalog, error) {
	var jc model.JunkCatalog
	if err := strictDecode(data, &jc); err != nil {
		return nil, err
	}

	verr := &config.ValidationError{Source: source}
	config.ValidateStruct(verr, "", &jc)

	seen := make(map[string]bool, len(jc.Categories))
	for i, cat := range jc.Categories {
		field := fmt.Sprintf("categories[%d]", i)
		if seen[cat.Name] {
			verr.Add(field+".name", "duplicates category %q", cat.Name)
		}
		seen[cat.Name] = true
		if cat.AllowedRate+cat.BlockedRate > 1+config.SumTolerance {
			verr.Add(field, "allowed_rate + blocked_rate exceeds 1.0")
		}
	}

	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}
	return &jc, nil
}

// CheckJunkCategories reports configured categories with a positive share that
// the catalog does not define.
func CheckJunkCategories(junk config.JunkTraffic, jc *model.JunkCatalog) error {
	if !junk.IsEnabled() {
		return nil
	}
	verr := &config.ValidationError{Source: "junk_traffic"}
	for _, name := range junk.CategoryNames() {
		if junk.Categories[name] <= 0 {
			continue
		}
		cat, ok := jc.Category(name)
		if !ok {
			verr.Add("junk_traffic.categories."+name, "is not in the junk site catalog")
			continue
		}
		if len(cat.Sites) == 0 {
			verr.Add("junk_traffic.categories."+name, "has no sites")
		}
	}
	return verr.ErrOrNil()
}
