package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"apotheca/internal/core/id"
	"apotheca/internal/domain/catalogs/item"
)

func TestBuildSearchText(t *testing.T) {
	barcode := "6291234567890"
	desc := "Oral Rehydration Salts sachet"

	tests := []struct {
		name     string
		item     item.Item
		want     string
		contains []string
	}{
		{
			name: "lowercases name and sku",
			item: item.Item{Name: "Ibuprofen 400mg", SKU: "IBU-400"},
			want: "ibuprofen 400mg ibu-400",
		},
		{
			name:     "expands drug abbreviation",
			item:     item.Item{Name: "Paracetamol 500mg", SKU: "P500"},
			contains: []string{"paracetamol", "pcm"},
		},
		{
			name:     "expands form abbreviation",
			item:     item.Item{Name: "Amoxicillin Capsule 250mg", SKU: "AMX-250"},
			contains: []string{"amox", "cap"},
		},
		{
			name:     "barcode and description included",
			item:     item.Item{Name: "ORS Sachet", SKU: "ORS-1", Barcode: &barcode, Description: &desc},
			contains: []string{"6291234567890", "oral rehydration salts", "ors"},
		},
		{
			name: "no duplicate when short form already present",
			item: item.Item{Name: "PCM Paracetamol", SKU: "X"},
			want: "pcm paracetamol x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildSearchText(&tt.item)
			if tt.want != "" {
				assert.Equal(t, tt.want, got)
			}
			for _, sub := range tt.contains {
				assert.Contains(t, got, sub)
			}
		})
	}
}

func TestBuildSearchText_Deterministic(t *testing.T) {
	// Multiple expansions must come out in a stable order, otherwise
	// every refresh would rewrite an unchanged row.
	it := item.New(id.New(), "Paracetamol Suspension with Vitamin C Tablet", "MULTI-1")
	first := BuildSearchText(it)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, BuildSearchText(it))
	}
}
