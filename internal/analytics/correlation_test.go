package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-tick-lab/internal/domain"
)

func TestComputeCorrelation_PerfectlyCorrelated(t *testing.T) {
	// priceA = priceB^2 has identical log returns up to a factor of 2,
	// so the return correlation is exactly 1.
	var a, b []*domain.Tick
	for i := 0; i < 20; i++ {
		x := 100 + float64((i*13)%7)
		a = append(a, &domain.Tick{Symbol: "a", Timestamp: int64(i), Price: x * x, Size: 1})
		b = append(b, &domain.Tick{Symbol: "b", Timestamp: int64(i), Price: x, Size: 1})
	}

	res, err := ComputeCorrelation("a", "b", a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Correlation, 1e-9)
	assert.LessOrEqual(t, res.Correlation, 1.0, "clamped against fp overshoot")
}

func TestComputeCorrelation_AntiCorrelated(t *testing.T) {
	// priceA = 1/priceB: log returns are exact negatives.
	var a, b []*domain.Tick
	for i := 0; i < 20; i++ {
		x := 100 + float64((i*13)%7)
		a = append(a, &domain.Tick{Symbol: "a", Timestamp: int64(i), Price: 1 / x, Size: 1})
		b = append(b, &domain.Tick{Symbol: "b", Timestamp: int64(i), Price: x, Size: 1})
	}

	res, err := ComputeCorrelation("a", "b", a, b)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, res.Correlation, 1e-9)
	assert.GreaterOrEqual(t, res.Correlation, -1.0)
}

func TestComputeCorrelation_Symmetric(t *testing.T) {
	var a, b []*domain.Tick
	for i := 0; i < 30; i++ {
		a = append(a, &domain.Tick{Symbol: "a", Timestamp: int64(i), Price: 100 + float64((i*7)%13), Size: 1})
		b = append(b, &domain.Tick{Symbol: "b", Timestamp: int64(i), Price: 200 + float64((i*11)%17), Size: 1})
	}

	ab, err := ComputeCorrelation("a", "b", a, b)
	require.NoError(t, err)
	ba, err := ComputeCorrelation("b", "a", b, a)
	require.NoError(t, err)

	assert.InDelta(t, ab.Correlation, ba.Correlation, 1e-12)
}

func TestComputeCorrelation_ConstantSeriesIsZero(t *testing.T) {
	var a, b []*domain.Tick
	for i := 0; i < 10; i++ {
		a = append(a, &domain.Tick{Symbol: "a", Timestamp: int64(i), Price: 100, Size: 1})
		b = append(b, &domain.Tick{Symbol: "b", Timestamp: int64(i), Price: 100 + float64(i), Size: 1})
	}

	res, err := ComputeCorrelation("a", "b", a, b)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Correlation)
}

func TestComputeCorrelation_InsufficientData(t *testing.T) {
	a := []*domain.Tick{tk(1, 10, 1), tk(2, 11, 1)}
	b := []*domain.Tick{tk(1, 20, 1), tk(2, 21, 1)}

	_, err := ComputeCorrelation("a", "b", a, b)
	assert.ErrorIs(t, err, ErrInsufficientData)
}
