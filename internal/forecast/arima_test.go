package forecast

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearSeries(n int, slope, intercept float64) []float64 {
	y := make([]float64, n)
	for i := range y {
		y[i] = intercept + slope*float64(i)
	}
	return y
}

func TestFitARIMALinearTrend(t *testing.T) {
	y := linearSeries(20, 2, 5)
	fit, err := fitARIMA(y, Order{1, 1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, fit.phi[0], 1e-3)

	fc, err := fit.forecast(3)
	require.NoError(t, err)
	for i, v := range fc {
		assert.InDelta(t, 5+2*float64(20+i), v, 0.05)
	}
}

func TestFitARIMARecoversAR(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	const phi = 0.6
	y := make([]float64, 300)
	w := 0.0
	for i := 1; i < len(y); i++ {
		w = phi*w + r.NormFloat64()
		y[i] = y[i-1] + w
	}

	fit, err := fitARIMA(y, Order{1, 1, 0})
	require.NoError(t, err)
	assert.InDelta(t, phi, fit.phi[0], 0.15)
	assert.InDelta(t, 1.0, fit.sigma2, 0.3)
	assert.Less(t, fit.aic, fit.bic)
}

func TestFitARIMATooShort(t *testing.T) {
	_, err := fitARIMA([]float64{1, 2, 3}, Order{2, 1, 1})
	assert.ErrorIs(t, err, errTooShort)
}

func TestBestOrder(t *testing.T) {
	y := make([]float64, 25)
	for i := range y {
		y[i] = 100 + 3*float64(i) + 4*math.Sin(float64(i))
	}
	seen := 0
	o := bestOrder(y, func(Order, float64, error) { seen++ })
	assert.Contains(t, searchOrders, o)
	assert.Equal(t, len(searchOrders), seen)

	assert.Equal(t, defaultOrder, bestOrder([]float64{1, 2}, nil))
}

func TestInvertible(t *testing.T) {
	assert.True(t, invertible(nil))
	assert.True(t, invertible([]float64{0.5}))
	assert.False(t, invertible([]float64{-1.2}))
	assert.True(t, invertible([]float64{0.3, 0.2}))
	assert.False(t, invertible([]float64{0.2, 1.5}))
}

func TestOrderFormatting(t *testing.T) {
	o := Order{2, 1, 0}
	assert.Equal(t, "(2, 1, 0)", o.String())
	b, err := o.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, "[2,1,0]", string(b))
}
