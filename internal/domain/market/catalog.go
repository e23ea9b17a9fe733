// Package market owns the commodity and location catalog and derives the
// price board for a location and day.
package market

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Sentinel kinds for catalog errors.
var (
	ErrInvalidCatalog = errors.New("invalid catalog")
	ErrLoadCatalog    = errors.New("load catalog failed")
)

// LocationKind drives the location price modifier.
type LocationKind string

const (
	KindStreet     LocationKind = "street"
	KindTransitHub LocationKind = "transit_hub"
	KindPark       LocationKind = "park"
)

// Modifier returns the price multiplier for a location kind.
func (k LocationKind) Modifier() float64 {
	switch k {
	case KindTransitHub:
		return 1.2
	case KindPark:
		return 0.8
	default:
		return 1.0
	}
}

// Commodity is an immutable tradable good.
type Commodity struct {
	Name       string  `yaml:"name" json:"name"`
	BasePrice  int     `yaml:"base_price" json:"basePrice"`
	Volatility float64 `yaml:"volatility" json:"volatility"` // 0..1, higher swings harder
}

// Location is a named place the player can travel to.
type Location struct {
	Name string       `yaml:"name" json:"name"`
	Kind LocationKind `yaml:"kind" json:"kind"`
}

// Catalog is fixed at process start and never mutated afterwards.
type Catalog struct {
	Commodities []Commodity `yaml:"commodities"`
	Locations   []Location  `yaml:"locations"`
	// Start is where every new session begins.
	Start string `yaml:"start"`
}

// DefaultCatalog returns the built-in goods and map.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Commodities: []Commodity{
			{Name: "Sneakers", BasePrice: 300, Volatility: 0.6},
			{Name: "Watches", BasePrice: 1500, Volatility: 0.8},
			{Name: "Phones", BasePrice: 800, Volatility: 0.5},
			{Name: "Perfume", BasePrice: 120, Volatility: 0.4},
			{Name: "Vinyl", BasePrice: 60, Volatility: 0.3},
			{Name: "Gold Chains", BasePrice: 2500, Volatility: 0.9},
			{Name: "Comics", BasePrice: 25, Volatility: 0.2},
		},
		Locations: []Location{
			{Name: "Downtown", Kind: KindStreet},
			{Name: "Grand Central", Kind: KindTransitHub},
			{Name: "Central Park", Kind: KindPark},
			{Name: "Harbor", Kind: KindStreet},
			{Name: "Chinatown", Kind: KindStreet},
			{Name: "Uptown", Kind: KindStreet},
		},
		Start: "Downtown",
	}
}

// LoadCatalog reads a YAML catalog file. An empty path yields the default.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrLoadCatalog, path, err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrLoadCatalog, path, err)
	}
	if c.Start == "" && len(c.Locations) > 0 {
		c.Start = c.Locations[0].Name
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks catalog invariants: unique names, sane prices and a known
// start location.
func (c *Catalog) Validate() error {
	if len(c.Commodities) == 0 {
		return fmt.Errorf("%w: no commodities", ErrInvalidCatalog)
	}
	if len(c.Locations) == 0 {
		return fmt.Errorf("%w: no locations", ErrInvalidCatalog)
	}
	seen := make(map[string]struct{}, len(c.Commodities))
	for _, com := range c.Commodities {
		if com.Name == "" {
			return fmt.Errorf("%w: commodity without name", ErrInvalidCatalog)
		}
		if _, dup := seen[com.Name]; dup {
			return fmt.Errorf("%w: duplicate commodity %q", ErrInvalidCatalog, com.Name)
		}
		seen[com.Name] = struct{}{}
		if com.BasePrice <= 0 {
			return fmt.Errorf("%w: %s base price must be positive", ErrInvalidCatalog, com.Name)
		}
		if com.Volatility < 0 || com.Volatility > 1 {
			return fmt.Errorf("%w: %s volatility must be within [0,1]", ErrInvalidCatalog, com.Name)
		}
	}
	places := make(map[string]struct{}, len(c.Locations))
	for _, loc := range c.Locations {
		if loc.Name == "" {
			return fmt.Errorf("%w: location without name", ErrInvalidCatalog)
		}
		if _, dup := places[loc.Name]; dup {
			return fmt.Errorf("%w: duplicate location %q", ErrInvalidCatalog, loc.Name)
		}
		places[loc.Name] = struct{}{}
	}
	if _, ok := places[c.Start]; !ok {
		return fmt.Errorf("%w: unknown start location %q", ErrInvalidCatalog, c.Start)
	}
	return nil
}

// Commodity looks up a catalog commodity by name.
func (c *Catalog) Commodity(name string) (Commodity, bool) {
	i := slices.IndexFunc(c.Commodities, func(com Commodity) bool { return com.Name == name })
	if i < 0 {
		return Commodity{}, false
	}
	return c.Commodities[i], true
}

// Location looks up a location by name.
func (c *Catalog) Location(name string) (Location, bool) {
	i := slices.IndexFunc(c.Locations, func(l Location) bool { return l.Name == name })
	if i < 0 {
		return Location{}, false
	}
	return c.Locations[i], true
}

// Names returns the commodity names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.Commodities))
	for i, com := range c.Commodities {
		out[i] = com.Name
	}
	return out
}
