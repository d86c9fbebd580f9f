package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/laggis/Discord-Ticket-bot/internal/domain"
)

// Categories is the ordered set of ticket types offered on the panel.
type Categories []domain.Category

type categoriesFile struct {
	Categories []domain.Category `yaml:"categories"`
}

// legacyCategories are the four types deployments configured through env vars
// before the categories file existed.
var legacyCategories = []struct {
	name        string
	env         string
	description string
	emoji       string
}{
	{name: "Support", env: "SUPPORT_CATEGORY_ID", description: "Get help with a problem.", emoji: "🛠️"},
	{name: "Köp", env: "KOP_CATEGORY_ID", description: "Questions about purchases.", emoji: "🛒"},
	{name: "Övrigt", env: "OVRIGT_CATEGORY_ID", description: "Other questions.", emoji: "❓"},
	{name: "Panel", env: "PANEL_CATEGORY_ID", description: "Panel discussions.", emoji: "🎤"},
}

// LoadCategories reads the YAML categories file, or falls back to the legacy env vars when path is empty.
func LoadCategories(path string) (Categories, error) {
	if path == "" {
		return categoriesFromEnv(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories file: %w", err)
	}
	return ParseCategories(raw)
}

// ParseCategories decodes and validates a categories document.
func ParseCategories(raw []byte) (Categories, error) {
	var doc categoriesFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse categories file: %w", err)
	}
	seen := make(map[string]struct{}, len(doc.Categories))
	for i := range doc.Categories {
		cat := &doc.Categories[i]
		cat.Name = strings.TrimSpace(cat.Name)
		if cat.Name == "" {
			return nil, fmt.Errorf("category %d: name required", i)
		}
		if strings.ContainsAny(cat.Name, " _") {
			return nil, fmt.Errorf("category %q: name must not contain spaces or underscores", cat.Name)
		}
		if _, dup := seen[cat.Name]; dup {
			return nil, fmt.Errorf("category %q defined twice", cat.Name)
		}
		seen[cat.Name] = struct{}{}
	}
	return Categories(doc.Categories), nil
}

func categoriesFromEnv() Categories {
	out := make(Categories, 0, len(legacyCategories))
	for _, c := range legacyCategories {
		out = append(out, domain.Category{
			Name:        c.name,
			ParentID:    os.Getenv(c.env),
			Description: c.description,
			Emoji:       c.emoji,
		})
	}
	return out
}

// Lookup returns the category with the given name.
func (c Categories) Lookup(name string) (domain.Category, bool) {
	for _, cat := range c {
		if cat.Name == name {
			return cat, true
		}
	}
	return domain.Category{}, false
}

// Names lists category names in panel order.
func (c Categories) Names() []string {
	names := make([]string, 0, len(c))
	for _, cat := range c {
		names = append(names, cat.Name)
	}
	return names
}
