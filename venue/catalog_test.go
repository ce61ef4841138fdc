package venue

import (
	"testing"
	"time"
)

func TestDefaultCatalogLookups(t *testing.T) {
	c := DefaultCatalog()

	v, ok := c.Get("binance")
	if !ok {
		t.Fatal("binance should be registered")
	}
	if v.Name == "" || v.StreamBaseURL == "" {
		t.Errorf("incomplete descriptor %+v", v)
	}

	if _, ok := c.Get("nope"); ok {
		t.Error("unknown id should not resolve")
	}
}

func TestAllIsSortedByID(t *testing.T) {
	c := DefaultCatalog()
	all := c.All()
	if len(all) < 2 {
		t.Fatalf("expected multiple venues, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Fatalf("venues out of order: %s before %s", all[i-1].ID, all[i].ID)
		}
	}
}

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	_, err := NewCatalog([]*Config{{ID: "a"}, {ID: "a"}})
	if err == nil {
		t.Fatal("expected duplicate id error")
	}

	_, err = NewCatalog([]*Config{{ID: ""}})
	if err == nil {
		t.Fatal("expected empty id error")
	}
}

func TestRealtimeCapableExcludesDeprecated(t *testing.T) {
	c := DefaultCatalog()
	for _, v := range c.RealtimeCapable() {
		if v.Status != StatusActive {
			t.Errorf("venue %s is %s, not active", v.ID, v.Status)
		}
		if !v.Capabilities.RealtimeData {
			t.Errorf("venue %s cannot stream", v.ID)
		}
		if v.ID == "ftxlegacy" {
			t.Error("deprecated venue should be excluded")
		}
	}
}

func TestIsActive(t *testing.T) {
	c := DefaultCatalog()
	if !c.IsActive("binance") {
		t.Error("binance should be active")
	}
	if c.IsActive("ftxlegacy") {
		t.Error("ftxlegacy is deprecated")
	}
	if c.IsActive("nope") {
		t.Error("unknown venue cannot be active")
	}
}

func TestByAssetClassAndRegion(t *testing.T) {
	c := DefaultCatalog()

	crypto := c.ByAssetClass(AssetCrypto)
	if len(crypto) == 0 {
		t.Fatal("expected crypto venues")
	}

	asia := c.ByRegion("asia")
	for _, v := range asia {
		if v.Region != "asia" {
			t.Errorf("venue %s has region %s", v.ID, v.Region)
		}
	}
	if len(asia) == 0 {
		t.Error("expected asian venues")
	}
}

func TestSupportsSymbol(t *testing.T) {
	c := DefaultCatalog()
	v, _ := c.Get("binance")
	if !v.SupportsSymbol("BTCUSDT") {
		t.Error("binance should list BTCUSDT")
	}
	if v.SupportsSymbol("NOPE") {
		t.Error("unlisted symbol should not be supported")
	}
}

func TestTradingHours(t *testing.T) {
	always := TradingHours{}
	if !always.AlwaysOpen() || !always.OpenNow() {
		t.Error("empty window should be always open")
	}

	window := TradingHours{Timezone: "UTC", Open: "07:00", Close: "21:00"}
	overnight := TradingHours{Timezone: "UTC", Open: "21:00", Close: "07:00"}

	orig := sessionClock
	defer func() { sessionClock = orig }()

	sessionClock = func() time.Time {
		return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	if !window.OpenNow() {
		t.Error("noon should be inside a 07:00-21:00 window")
	}
	if overnight.OpenNow() {
		t.Error("noon should be outside a 21:00-07:00 window")
	}

	sessionClock = func() time.Time {
		return time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)
	}
	if window.OpenNow() {
		t.Error("23:00 should be outside a 07:00-21:00 window")
	}
	if !overnight.OpenNow() {
		t.Error("23:00 should be inside a 21:00-07:00 window")
	}
}
