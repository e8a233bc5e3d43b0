// Package tour reads tour definitions: a route id, its city and an ordered
// list of stops. Preset tours come from the catalog file, custom tours from
// callers.
package tour

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rheath/echojam/internal/canonical"
	"github.com/rheath/echojam/internal/mix"
	"github.com/rheath/echojam/internal/persona"
	"github.com/rheath/echojam/internal/pipeline"
	"github.com/rheath/echojam/internal/store"
)

// Tour is one route to narrate.
type Tour struct {
	ID            string           `yaml:"id" json:"id"`
	Kind          store.RouteKind  `yaml:"kind" json:"kind"`
	City          string           `yaml:"city" json:"city"`
	Transport     string           `yaml:"transport" json:"transport"`
	LengthMinutes int              `yaml:"length_minutes" json:"lengthMinutes"`
	Personas      []string         `yaml:"personas,omitempty" json:"personas,omitempty"`
	Stops         []canonical.Stop `yaml:"stops" json:"stops"`
}

// Catalog is the preset tour file.
type Catalog struct {
	Tours []Tour `yaml:"tours"`
}

// Validate checks required fields. Custom tours must also be a valid mix.
func (t *Tour) Validate() error {
	if t.Kind == "" {
		t.Kind = store.RouteKindPreset
	}
	var errs []error
	if strings.TrimSpace(t.ID) == "" {
		errs = append(errs, errors.New("tour id is required"))
	}
	if !t.Kind.Valid() {
		errs = append(errs, fmt.Errorf("unknown tour kind %q", t.Kind))
	}
	if strings.TrimSpace(t.City) == "" {
		errs = append(errs, errors.New("city is required"))
	}
	if len(t.Stops) == 0 {
		errs = append(errs, errors.New("tour has no stops"))
	}
	seen := make(map[string]bool, len(t.Stops))
	for i, s := range t.Stops {
		if strings.TrimSpace(s.Title) == "" {
			errs = append(errs, fmt.Errorf("stop %d has no title", i+1))
		}
		if s.ID != "" && seen[s.ID] {
			errs = append(errs, fmt.Errorf("duplicate stop id %q", s.ID))
		}
		seen[s.ID] = true
	}
	if t.Kind == store.RouteKindCustom {
		if err := mix.ValidateSelection(t.LengthMinutes, t.Transport, len(t.Stops)); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("tour %q: %w", t.ID, errors.Join(errs...))
	}
	return nil
}

// Request builds a pipeline request. The tour's personas win over defaults.
func (t Tour) Request(defaults []persona.Name) (pipeline.Request, error) {
	personas := defaults
	if len(t.Personas) > 0 {
		var err error
		personas, err = persona.ParseList(strings.Join(t.Personas, ","))
		if err != nil {
			return pipeline.Request{}, err
		}
	}
	return pipeline.Request{
		RouteKind:     t.Kind,
		RouteID:       t.ID,
		City:          t.City,
		TransportMode: t.Transport,
		LengthMinutes: t.LengthMinutes,
		Personas:      personas,
		Stops:         t.Stops,
	}, nil
}

// Load reads and validates a single tour file.
func Load(path string) (*Tour, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tour: %w", err)
	}
	var t Tour
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse tour %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadCatalog reads and validates every tour in a catalog file.
func LoadCatalog(path string) ([]Tour, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	for i := range c.Tours {
		if err := c.Tours[i].Validate(); err != nil {
			return nil, err
		}
	}
	return c.Tours, nil
}
