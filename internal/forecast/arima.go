package forecast

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// Order is an ARIMA(p, d, q) specification.
type Order struct {
	P, D, Q int
}

// String renders the order the way model summaries print it, e.g. "(1, 1, 1)".
func (o Order) String() string {
	return fmt.Sprintf("(%d, %d, %d)", o.P, o.D, o.Q)
}

// MarshalJSON encodes the order as [p, d, q].
func (o Order) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("[%d,%d,%d]", o.P, o.D, o.Q)), nil
}

// searchOrders are tried in turn; the lowest AIC wins. The random walk
// (0, 1, 0) is left out on purpose.
var searchOrders = []Order{
	{1, 1, 0}, {0, 1, 1}, {1, 1, 1}, {2, 1, 0}, {0, 1, 2}, {2, 1, 1}, {1, 1, 2},
}

var defaultOrder = Order{1, 1, 1}

var errTooShort = errors.New("series too short for model order")

// arimaFit is an ARIMA model fitted by conditional sum of squares.
type arimaFit struct {
	order Order
	phi   []float64
	theta []float64

	// levels[k] is the series differenced k times.
	levels [][]float64
	resid  []float64

	sigma2 float64
	llf    float64
	aic    float64
	bic    float64
}

func difference(x []float64) []float64 {
	if len(x) < 2 {
		return nil
	}
	out := make([]float64, len(x)-1)
	for i := 1; i < len(x); i++ {
		out[i-1] = x[i] - x[i-1]
	}
	return out
}

// cssResiduals runs the ARMA recursion over w. Residuals before the first
// p observations are conditioned to zero.
func cssResiduals(w, phi, theta []float64) []float64 {
	p, q := len(phi), len(theta)
	e := make([]float64, len(w))
	for t := p; t < len(w); t++ {
		pred := 0.0
		for i := 0; i < p; i++ {
			pred += phi[i] * w[t-1-i]
		}
		for j := 0; j < q; j++ {
			if t-1-j >= 0 {
				pred += theta[j] * e[t-1-j]
			}
		}
		e[t] = w[t] - pred
	}
	return e[p:]
}

func sumSquares(e []float64) float64 {
	s := 0.0
	for _, v := range e {
		s += v * v
	}
	return s
}

// invertible reports whether 1 + θ1·z + θ2·z² has its roots outside the
// unit circle. Only orders up to 2 are searched.
func invertible(theta []float64) bool {
	switch len(theta) {
	case 0:
		return true
	case 1:
		return math.Abs(theta[0]) < 1
	default:
		a1, a2 := -theta[0], -theta[1]
		return a1+a2 < 1 && a2-a1 < 1 && math.Abs(a2) < 1
	}
}

const penalty = 1e100

func fitARIMA(y []float64, o Order) (*arimaFit, error) {
	levels := [][]float64{y}
	for k := 0; k < o.D; k++ {
		levels = append(levels, difference(levels[k]))
	}
	w := levels[o.D]
	if len(w)-o.P < o.P+o.Q+1 {
		return nil, fmt.Errorf("arima%s on %d points: %w", o, len(y), errTooShort)
	}

	split := func(x []float64) ([]float64, []float64) {
		return x[:o.P], x[o.P:]
	}

	params := make([]float64, o.P+o.Q)
	if len(params) > 0 {
		problem := optimize.Problem{
			Func: func(x []float64) float64 {
				phi, theta := split(x)
				if !invertible(theta) {
					return penalty
				}
				ssr := sumSquares(cssResiduals(w, phi, theta))
				if math.IsNaN(ssr) || math.IsInf(ssr, 0) {
					return penalty
				}
				return ssr
			},
		}
		init := make([]float64, len(params))
		for i := range init {
			init[i] = 0.1
		}
		res, err := optimize.Minimize(problem, init, &optimize.Settings{FuncEvaluations: 4000}, &optimize.NelderMead{})
		if err != nil {
			return nil, fmt.Errorf("fit arima%s: %w", o, err)
		}
		copy(params, res.X)
	}

	phi, theta := split(params)
	resid := cssResiduals(w, phi, theta)
	n := float64(len(resid))
	sigma2 := math.Max(sumSquares(resid)/n, 1e-12)
	k := float64(o.P + o.Q + 1)
	llf := -n / 2 * (math.Log(2*math.Pi*sigma2) + 1)

	f := &arimaFit{
		order:  o,
		phi:    append([]float64(nil), phi...),
		theta:  append([]float64(nil), theta...),
		levels: levels,
		resid:  resid,
		sigma2: sigma2,
		llf:    llf,
		aic:    -2*llf + 2*k,
		bic:    -2*llf + k*math.Log(n),
	}
	if math.IsNaN(f.aic) || math.IsInf(f.aic, 0) {
		return nil, fmt.Errorf("arima%s: non-finite likelihood", o)
	}
	return f, nil
}

// forecast projects steps values ahead on the original scale.
func (f *arimaFit) forecast(steps int) ([]float64, error) {
	w := append([]float64(nil), f.levels[f.order.D]...)
	p, q := len(f.phi), len(f.theta)

	// Full-length residuals aligned with w, zero where conditioned away.
	e := make([]float64, len(w)+steps)
	copy(e[p:], f.resid)

	for h := 0; h < steps; h++ {
		t := len(w)
		pred := 0.0
		for i := 0; i < p; i++ {
			pred += f.phi[i] * w[t-1-i]
		}
		for j := 0; j < q; j++ {
			if t-1-j >= 0 {
				pred += f.theta[j] * e[t-1-j]
			}
		}
		w = append(w, pred)
	}
	out := w[len(f.levels[f.order.D]):]

	// Integrate back one level at a time.
	for k := f.order.D - 1; k >= 0; k-- {
		last := f.levels[k][len(f.levels[k])-1]
		next := make([]float64, steps)
		for h := range out {
			last += out[h]
			next[h] = last
		}
		out = next
	}

	for _, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("arima%s: forecast diverged", f.order)
		}
	}
	return out, nil
}

// bestOrder fits every search order and returns the one with the lowest AIC,
// or the default order when none can be fitted.
func bestOrder(y []float64, logf func(o Order, aic float64, err error)) Order {
	best, bestAIC := defaultOrder, math.Inf(1)
	for _, o := range searchOrders {
		f, err := fitARIMA(y, o)
		if logf != nil {
			aic := math.NaN()
			if f != nil {
				aic = f.aic
			}
			logf(o, aic, err)
		}
		if err != nil {
			continue
		}
		if f.aic < bestAIC {
			best, bestAIC = o, f.aic
		}
	}
	return best
}
