package clarify

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/benvon/smart-autotrader/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed phrasing.yaml
var embeddedPhrasing []byte

// Phrasing is the wording for one field's question.
type Phrasing struct {
	Default string            `yaml:"default"`
	Topics  map[string]string `yaml:"topics"`
}

// Catalog holds the question wording for every field.
type Catalog struct {
	Generic string                    `yaml:"generic"`
	Fields  map[models.Field]Phrasing `yaml:"fields"`
}

// LoadCatalog parses a YAML phrasing catalog. Every field must carry a
// default question.
func LoadCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse phrasing catalog: %w", err)
	}
	if c.Generic == "" {
		return nil, fmt.Errorf("phrasing catalog has no generic question")
	}
	for _, f := range models.AllFields {
		if c.Fields[f].Default == "" {
			return nil, fmt.Errorf("phrasing catalog has no default question for %s", f)
		}
	}
	return &c, nil
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := LoadCatalog(embeddedPhrasing)
	if err != nil {
		panic(err)
	}
	return c
})

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() *Catalog {
	return defaultCatalog()
}

// Question returns the wording for f, preferring a variant for the first
// topic in flags that has one.
func (c *Catalog) Question(f models.Field, flags models.TopicFlags) string {
	p := c.Fields[f]
	for _, t := range flags.Topics() {
		if text, ok := p.Topics[t.String()]; ok && text != "" {
			return text
		}
	}
	return p.Default
}
