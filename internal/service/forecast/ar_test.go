package forecast

import (
	"math"
	"testing"
)

func TestFitRequiresEnoughObservations(t *testing.T) {
	m := NewARModel(60)
	if err := m.Fit([]float64{1, 2, 3}); err == nil {
		t.Fatalf("expected error for short series")
	}
}

func TestPredictRequiresFit(t *testing.T) {
	m := NewARModel(60)
	if _, err := m.Predict([]float64{1, 2, 3, 4, 5}, 3); err == nil {
		t.Fatalf("expected error on unfitted model")
	}
}

func TestConstantSeriesPredictsConstant(t *testing.T) {
	m := NewARModel(60)
	series := make([]float64, 100)
	for i := range series {
		series[i] = 42
	}
	if err := m.Fit(series); err != nil {
		t.Fatalf("fit: %v", err)
	}
	got, err := m.Predict(series[len(series)-60:], 5)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	for _, p := range got {
		if math.Abs(p-42) > 1e-6 {
			t.Fatalf("expected 42, got %v", p)
		}
	}
}

func TestLinearTrendIsTracked(t *testing.T) {
	m := NewARModel(60)
	series := make([]float64, 200)
	for i := range series {
		series[i] = 100 + float64(i)
	}
	if err := m.Fit(series); err != nil {
		t.Fatalf("fit: %v", err)
	}
	got, err := m.Predict(series[len(series)-60:], 3)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(got))
	}
	last := series[len(series)-1]
	if got[0] < last-20 || got[0] > last+20 {
		t.Fatalf("first step %v is far from trend continuation around %v", got[0], last+1)
	}
}

func TestRolloutStaysBounded(t *testing.T) {
	m := NewARModel(60)
	series := make([]float64, 300)
	for i := range series {
		series[i] = 100 + 10*math.Sin(float64(i)/7)
	}
	if err := m.Fit(series); err != nil {
		t.Fatalf("fit: %v", err)
	}
	got, err := m.Predict(series[len(series)-60:], 168)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	for i, p := range got {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			t.Fatalf("step %d is not finite: %v", i, p)
		}
		if p < 100-10*3 || p > 100+10*3 {
			t.Fatalf("step %d escaped the clamped range: %v", i, p)
		}
	}
}
