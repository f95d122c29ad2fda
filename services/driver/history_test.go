package driver

import (
	"testing"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	"github.com/stretchr/testify/assert"
)

func sampleAt(lat float64) models.LocationSample {
	return models.LocationSample{Latitude: lat, Longitude: -87.6}
}

func TestHistory(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		added    []float64
		expected []float64
	}{
		{name: "empty", capacity: 3, added: nil, expected: []float64{}},
		{name: "partial", capacity: 3, added: []float64{1, 2}, expected: []float64{2, 1}},
		{name: "exactly full", capacity: 3, added: []float64{1, 2, 3}, expected: []float64{3, 2, 1}},
		{name: "evicts oldest", capacity: 3, added: []float64{1, 2, 3, 4, 5}, expected: []float64{5, 4, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHistory(tt.capacity)
			for _, lat := range tt.added {
				h.Add(sampleAt(lat))
			}

			got := []float64{}
			for _, s := range h.Recent() {
				got = append(got, s.Latitude)
			}
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, len(tt.expected), h.Len())

			latest, ok := h.Latest()
			assert.Equal(t, len(tt.expected) > 0, ok)
			if ok {
				assert.Equal(t, tt.expected[0], latest.Latitude)
			}
		})
	}
}

func TestHistory_DefaultCapacity(t *testing.T) {
	h := NewHistory(0)
	for i := 0; i < 2*HistoryCapacity; i++ {
		h.Add(sampleAt(float64(i)))
	}
	assert.Equal(t, HistoryCapacity, h.Len())
	assert.Equal(t, float64(2*HistoryCapacity-1), h.Recent()[0].Latitude)
}
