package allocator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sarafan/internal/common"
	"sarafan/internal/models"
)

func TestClassifyBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		brought  int
		received int
		want     Band
	}{
		{"no data yet", 5, 0, BandLow},
		{"nothing at all", 0, 0, BandLow},
		{"ratio 0.4", 4, 10, BandHigh},
		{"ratio 0.8", 8, 10, BandHigh},
		{"ratio 0.3", 3, 10, BandMid},
		{"ratio 0.39", 39, 100, BandMid},
		{"ratio 0.29", 29, 100, BandLow},
		{"ratio 0.9 above range", 9, 10, BandLow},
		{"ratio 2", 20, 10, BandLow},
		{"ratio 0", 0, 10, BandLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := withCounters(partner("p", 1), tt.brought, tt.received)
			assert.Equal(t, tt.want, Classify(p))
		})
	}
}

func TestWeightFor(t *testing.T) {
	s := models.WeightSettings{HighBandWeight: 3, MidBandWeight: 2, LowBandWeight: -1}
	assert.Equal(t, 3, WeightFor(s, BandHigh))
	assert.Equal(t, 2, WeightFor(s, BandMid))
	assert.Equal(t, 0, WeightFor(s, BandLow))
}

type stubWeightSource struct {
	settings models.WeightSettings
	err      error
}

func (s *stubWeightSource) GetWeightSettings(context.Context) (models.WeightSettings, error) {
	return s.settings, s.err
}

func TestWeightPolicyRefresh(t *testing.T) {
	src := &stubWeightSource{err: common.ErrNotFound}
	wp := NewWeightPolicy(src)

	_, err := wp.Settings()
	assert.ErrorIs(t, err, common.ErrConfigurationMissing)

	assert.ErrorIs(t, wp.Refresh(context.Background()), common.ErrConfigurationMissing)

	src.err = nil
	src.settings = models.WeightSettings{HighBandWeight: 5, MidBandWeight: 4, LowBandWeight: 3}
	require.NoError(t, wp.Refresh(context.Background()))
	got, err := wp.Settings()
	require.NoError(t, err)
	assert.Equal(t, 5, got.HighBandWeight)

	src.err = common.ErrNotFound
	assert.Error(t, wp.Refresh(context.Background()))
	_, err = wp.Settings()
	assert.ErrorIs(t, err, common.ErrConfigurationMissing)
}
