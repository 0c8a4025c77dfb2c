package merchant

import "testing"

func TestUpsertAndGet(t *testing.T) {
	r := NewRegistry()
	m, err := r.Upsert("0xshop", "Web3 Starter Pack Store", "digital-goods", true)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !m.Active || m.Name != "Web3 Starter Pack Store" {
		t.Fatalf("unexpected merchant: %+v", m)
	}

	got, err := r.Get("0xshop")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Category != "digital-goods" {
		t.Fatalf("unexpected category: %s", got.Category)
	}
}

func TestUpsertIsIdempotentAndUpdates(t *testing.T) {
	r := NewRegistry()
	first, _ := r.Upsert("0xshop", "Shop", "retail", true)
	second, err := r.Upsert("0xshop", "Shop Renamed", "retail", false)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.CreatedAt != first.CreatedAt {
		t.Fatal("upsert must preserve creation time")
	}
	if second.Active {
		t.Fatal("upsert must apply the new active flag")
	}
	if r.IsActive("0xshop") {
		t.Fatal("deactivated merchant reported active")
	}
}

func TestGetUnknownMerchant(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("0xmissing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if r.IsActive("0xmissing") {
		t.Fatal("unknown merchant reported active")
	}
}

func TestUpsertValidation(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Upsert("  ", "Shop", "retail", true); err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := r.Upsert("0xshop", "", "retail", true); err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
