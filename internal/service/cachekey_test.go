package service

import (
	"testing"

	"github.com/nori/caliper/internal/domain"
)

func baseKeyInputs() KeyInputs {
	return KeyInputs{
		ImageHash:   "aabbcc",
		BarcodeHash: "ddeeff",
		LabelHash:   "112233",
		Params: domain.RequestParams{
			Quantity:     100,
			DutyRate:     0.05,
			ShippingCost: 20,
			Fee:          2,
			Destination:  "US",
			ShippingMode: "air",
		},
		RequesterID: "owner-1",
	}
}

func TestComputeCacheKey_Deterministic(t *testing.T) {
	a := ComputeCacheKey(baseKeyInputs())
	b := ComputeCacheKey(baseKeyInputs())
	if a != b {
		t.Errorf("identical inputs produced different keys: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64-char hex digest, got %d chars", len(a))
	}
}

func TestComputeCacheKey_NormalizesEquivalentInputs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*KeyInputs)
	}{
		{
			name: "hash case and whitespace",
			mutate: func(in *KeyInputs) {
				in.ImageHash = "  AABBCC "
			},
		},
		{
			name: "destination case",
			mutate: func(in *KeyInputs) {
				in.Params.Destination = "us"
			},
		},
		{
			name: "shipping mode case",
			mutate: func(in *KeyInputs) {
				in.Params.ShippingMode = "AIR"
			},
		},
		{
			name: "monetary trailing zeros",
			mutate: func(in *KeyInputs) {
				in.Params.DutyRate = 0.0500
			},
		},
	}

	want := ComputeCacheKey(baseKeyInputs())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseKeyInputs()
			tt.mutate(&in)
			if got := ComputeCacheKey(in); got != want {
				t.Errorf("equivalent input produced different key")
			}
		})
	}
}

func TestComputeCacheKey_DistinguishesSemanticChanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*KeyInputs)
	}{
		{"image hash", func(in *KeyInputs) { in.ImageHash = "ffffff" }},
		{"barcode absent", func(in *KeyInputs) { in.BarcodeHash = "" }},
		{"label absent", func(in *KeyInputs) { in.LabelHash = "" }},
		{"quantity", func(in *KeyInputs) { in.Params.Quantity = 101 }},
		{"duty rate", func(in *KeyInputs) { in.Params.DutyRate = 0.06 }},
		{"shipping cost", func(in *KeyInputs) { in.Params.ShippingCost = 21 }},
		{"fee", func(in *KeyInputs) { in.Params.Fee = 3 }},
		{"destination", func(in *KeyInputs) { in.Params.Destination = "CA" }},
		{"shipping mode", func(in *KeyInputs) { in.Params.ShippingMode = "sea" }},
		{"requester", func(in *KeyInputs) { in.RequesterID = "owner-2" }},
	}

	base := ComputeCacheKey(baseKeyInputs())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseKeyInputs()
			tt.mutate(&in)
			if got := ComputeCacheKey(in); got == base {
				t.Errorf("changed %s but key did not change", tt.name)
			}
		})
	}
}

func TestHashImage(t *testing.T) {
	if got := HashImage(nil); got != "" {
		t.Errorf("HashImage(nil) = %q, want empty", got)
	}
	a := HashImage([]byte("photo-a"))
	b := HashImage([]byte("photo-b"))
	if a == b {
		t.Error("different inputs produced the same hash")
	}
	if a != HashImage([]byte("photo-a")) {
		t.Error("same input produced different hashes")
	}
}
