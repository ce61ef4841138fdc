package adapter

import (
	"testing"

	"tickerflow/venue"
)

func TestRegistryResolvesEveryVenue(t *testing.T) {
	catalog := venue.DefaultCatalog()
	r := NewRegistry(catalog)

	for _, v := range catalog.All() {
		a, err := r.Get(v.ID)
		if err != nil {
			t.Fatalf("Get(%s): %v", v.ID, err)
		}
		if a.VenueID() != v.ID {
			t.Errorf("adapter for %s reports venue id %s", v.ID, a.VenueID())
		}
	}
}

func TestRegistryUnknownVenue(t *testing.T) {
	r := NewRegistry(venue.DefaultCatalog())
	if _, err := r.Get("nope"); err == nil {
		t.Fatal("expected error for unregistered venue")
	}
}

func TestGenericFallback(t *testing.T) {
	a := adapterFor("meridian")
	g, ok := a.(*Generic)
	if !ok {
		t.Fatalf("expected generic adapter, got %T", a)
	}
	if g.VenueID() != "meridian" {
		t.Errorf("unexpected venue id %s", g.VenueID())
	}
}

// fval dereferences an optional float in assertions.
func fval(t *testing.T, name string, p *float64) float64 {
	t.Helper()
	if p == nil {
		t.Fatalf("%s is nil", name)
	}
	return *p
}
