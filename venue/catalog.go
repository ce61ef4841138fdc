package venue

import (
	"fmt"
	"sort"

	"tickerflow/logger"
)

// Catalog is the read-only registry of venue descriptors. It is populated
// once at construction and never mutated afterwards, so lookups are safe for
// concurrent use without locking.
type Catalog struct {
	byID  map[string]*Config
	order []string
	log   *logger.Log
}

// NewCatalog builds a catalog from the provided descriptors. Descriptors
// with duplicate ids are rejected.
func NewCatalog(descriptors []*Config) (*Catalog, error) {
	c := &Catalog{
		byID: make(map[string]*Config, len(descriptors)),
		log:  logger.GetLogger(),
	}

	for _, d := range descriptors {
		if d.ID == "" {
			return nil, fmt.Errorf("venue descriptor with empty id")
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate venue id %q", d.ID)
		}
		c.byID[d.ID] = d
		c.order = append(c.order, d.ID)
	}
	sort.Strings(c.order)

	c.log.WithComponent("venue_catalog").WithFields(logger.Fields{
		"venues": len(c.order),
	}).Info("venue catalog initialized")

	return c, nil
}

// DefaultCatalog builds the catalog from the built-in descriptor list.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(Descriptors())
	if err != nil {
		// the built-in list is validated by tests
		panic(err)
	}
	return c
}

// All returns every descriptor, ordered by venue id.
func (c *Catalog) All() []*Config {
	out := make([]*Config, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Get returns the descriptor for the given venue id.
func (c *Catalog) Get(id string) (*Config, bool) {
	v, ok := c.byID[id]
	return v, ok
}

// ByAssetClass returns venues listing the given asset class.
func (c *Catalog) ByAssetClass(class AssetClass) []*Config {
	var out []*Config
	for _, id := range c.order {
		v := c.byID[id]
		for _, ac := range v.AssetClasses {
			if ac == class {
				out = append(out, v)
				break
			}
		}
	}
	return out
}

// ByRegion returns venues registered in the given region.
func (c *Catalog) ByRegion(region string) []*Config {
	var out []*Config
	for _, id := range c.order {
		if v := c.byID[id]; v.Region == region {
			out = append(out, v)
		}
	}
	return out
}

// IsActive reports whether the venue exists and its lifecycle status is
// active.
func (c *Catalog) IsActive(id string) bool {
	v, ok := c.byID[id]
	return ok && v.Status == StatusActive
}

// RealtimeCapable returns the active venues that support streaming market
// data, ordered by venue id.
func (c *Catalog) RealtimeCapable() []*Config {
	var out []*Config
	for _, id := range c.order {
		v := c.byID[id]
		if v.Status == StatusActive && v.Capabilities.RealtimeData {
			out = append(out, v)
		}
	}
	return out
}
