package anomaly

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeEWMA(t *testing.T) {
	// alpha=0.3: 0.3*10 + 0.7*20 = 17
	assert.InDelta(t, 17.0, ComputeEWMA(10, 20, 0.3), 1e-9)

	// alpha=1 tracks the sample exactly
	assert.InDelta(t, 10.0, ComputeEWMA(10, 20, 1), 1e-9)
}

func TestComputeZScore(t *testing.T) {
	assert.InDelta(t, 2.0, ComputeZScore(20, 10, 5), 1e-9)
	assert.InDelta(t, -2.0, ComputeZScore(0, 10, 5), 1e-9)

	// Degenerate baseline must not divide by zero
	assert.Equal(t, 0.0, ComputeZScore(100, 10, 0))
}

func TestUpdateRunningStats_ConstantSeries(t *testing.T) {
	// Feeding the same value repeatedly keeps the mean fixed and drives
	// the reconstructed deviation toward zero
	mean, std := 10.0, 0.0
	var count int64
	for i := 0; i < 4; i++ {
		mean, std = UpdateRunningStats(mean, std, 10, count)
		count++
	}

	assert.InDelta(t, 10.0, mean, 1e-9)
	assert.InDelta(t, 0.0, std, 1e-9)
}

func TestUpdateRunningStats_KnownSeries(t *testing.T) {
	// Series 2, 4, 4, 4, 5, 5, 7, 9: mean 5, sample std = sqrt(32/7)
	series := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	var mean, std float64
	var count int64
	for _, v := range series {
		if count == 0 {
			mean, std, count = v, 0, 1
			continue
		}
		mean, std = UpdateRunningStats(mean, std, v, count)
		count++
	}

	assert.InDelta(t, 5.0, mean, 1e-9)
	assert.InDelta(t, 2.13809, std, 1e-4)
}

func TestUpdateRunningStats_VarianceNeverNegative(t *testing.T) {
	// Values chosen to stress the m2 reconstruction
	mean, std := 1e9, 1e-9
	mean, std = UpdateRunningStats(mean, std, 1e9, 1000)

	assert.False(t, std < 0)
	assert.InDelta(t, 1e9, mean, 1)
}
