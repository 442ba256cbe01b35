package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog holds course descriptions and greeting phrases. The built-in
// defaults can be replaced wholesale by pointing CATALOG_PATH at a
// YAML file.
type Catalog struct {
	Courses   map[string]string `yaml:"courses"`
	Greetings []string          `yaml:"greetings"`
}

func DefaultCatalog() Catalog {
	return Catalog{
		Courses: map[string]string{
			"Gamification": "game design elements applied to learning, motivation theory, badges, leaderboards, and engagement loops",
		},
		Greetings: []string{"hi", "hello", "hey", "good morning", "good afternoon", "good evening", "greetings"},
	}
}

// LoadCatalog reads a catalog file, falling back to defaults when the
// path is empty. Fields missing from the file keep their defaults.
func LoadCatalog(path string) (Catalog, error) {
	catalog := DefaultCatalog()
	if path == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var loaded Catalog
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	if len(loaded.Courses) > 0 {
		catalog.Courses = loaded.Courses
	}
	if len(loaded.Greetings) > 0 {
		catalog.Greetings = loaded.Greetings
	}
	return catalog, nil
}
