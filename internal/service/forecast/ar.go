package forecast

import (
	"fmt"
	"math"
)

// Model is a trainable price predictor. The engine treats it as a
// black box, so an alternative model can be swapped in per symbol.
type Model interface {
	Fit(prices []float64) error
	Predict(window []float64, steps int) ([]float64, error)
}

// ARModel is an autoregressive price model fitted with ordinary least
// squares on min-max normalized prices. Predictions feed back into the
// input window, so a single fit rolls out an arbitrary horizon.
type ARModel struct {
	order    int
	lookback int

	coeffs []float64 // intercept followed by lag weights
	minP   float64
	maxP   float64
}

const defaultOrder = 4

// NewARModel creates an unfitted model. lookback is the window length
// fed into each prediction step.
func NewARModel(lookback int) *ARModel {
	return &ARModel{order: defaultOrder, lookback: lookback}
}

// Fit estimates the lag coefficients from a chronological price series.
func (m *ARModel) Fit(prices []float64) error {
	if len(prices) < m.order+2 {
		return fmt.Errorf("fit: need at least %d observations, have %d", m.order+2, len(prices))
	}

	m.minP, m.maxP = minMax(prices)
	norm := m.normalize(prices)

	// Normal equations: one row per target point, columns are the
	// intercept and the preceding `order` lags.
	cols := m.order + 1
	xtX := make([][]float64, cols)
	for i := range xtX {
		xtX[i] = make([]float64, cols)
	}
	xtY := make([]float64, cols)

	row := make([]float64, cols)
	for t := m.order; t < len(norm); t++ {
		row[0] = 1
		for lag := 1; lag <= m.order; lag++ {
			row[lag] = norm[t-lag]
		}
		y := norm[t]
		for i := 0; i < cols; i++ {
			for j := 0; j < cols; j++ {
				xtX[i][j] += row[i] * row[j]
			}
			xtY[i] += row[i] * y
		}
	}

	coeffs, err := solve(xtX, xtY)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}
	m.coeffs = coeffs
	return nil
}

// Predict rolls the model forward `steps` points past the end of the
// given window, which must hold the most recent prices in order.
func (m *ARModel) Predict(window []float64, steps int) ([]float64, error) {
	if m.coeffs == nil {
		return nil, fmt.Errorf("predict: model not fitted")
	}
	if len(window) < m.order {
		return nil, fmt.Errorf("predict: window shorter than model order %d", m.order)
	}

	norm := m.normalize(window)
	out := make([]float64, 0, steps)
	for s := 0; s < steps; s++ {
		next := m.coeffs[0]
		for lag := 1; lag <= m.order; lag++ {
			next += m.coeffs[lag] * norm[len(norm)-lag]
		}
		// clamp normalized output so a drifting rollout cannot
		// escape the observed price range by orders of magnitude
		next = math.Max(-0.5, math.Min(1.5, next))
		norm = append(norm, next)
		out = append(out, m.denormalize(next))
	}
	return out, nil
}

func (m *ARModel) normalize(prices []float64) []float64 {
	span := m.maxP - m.minP
	out := make([]float64, len(prices))
	if span == 0 {
		return out
	}
	for i, p := range prices {
		out[i] = (p - m.minP) / span
	}
	return out
}

func (m *ARModel) denormalize(v float64) float64 {
	span := m.maxP - m.minP
	if span == 0 {
		return m.minP
	}
	return v*span + m.minP
}

func minMax(xs []float64) (float64, float64) {
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}

// solve runs Gaussian elimination with partial pivoting on Ax = b.
func solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("singular system at column %d", col)
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c < n; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}

	x := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		sum := b[r]
		for c := r + 1; c < n; c++ {
			sum -= a[r][c] * x[c]
		}
		x[r] = sum / a[r][r]
	}
	return x, nil
}
