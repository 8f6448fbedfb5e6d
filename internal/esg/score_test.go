package esg

import (
	"math"
	"reflect"
	"testing"
)

// almostEqual returns true if a and b are within epsilon of each other.
func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestCompute_Pillars(t *testing.T) {
	tests := []struct {
		name        string
		in          Metrics
		wantEnv     float64
		wantSoc     float64
		wantGov     float64
		wantOverall float64
	}{
		{
			name:        "all zero",
			in:          Metrics{},
			wantEnv:     15, // climate sub-score is 15 at zero footprint
			wantSoc:     0,
			wantGov:     0,
			wantOverall: 15,
		},
		{
			name: "all fields at 100",
			in: Metrics{
				Footprint: 0, Renewable: 100, WasteReduction: 100,
				Satisfaction: 100, Diversity: 100, Community: 100,
				Independence: 100, Transparency: 100, Ethics: 100,
			},
			wantEnv:     40,
			wantSoc:     30,
			wantGov:     30,
			wantOverall: 100,
		},
		{
			// env = (15 - 400/100) + 60/100*15 + 75/100*10 = 11 + 9 + 7.5 = 27.5
			// soc = (85 + 60 + 70) * 10/100 = 21.5
			// gov = (80 + 75 + 85) * 10/100 = 24
			name: "reference scenario",
			in: Metrics{
				Footprint: 400, Renewable: 60, WasteReduction: 75,
				Satisfaction: 85, Diversity: 60, Community: 70,
				Independence: 80, Transparency: 75, Ethics: 85,
			},
			wantEnv:     27.5,
			wantSoc:     21.5,
			wantGov:     24,
			wantOverall: 73,
		},
		{
			// Climate sub-score floors at 0 for very large footprints.
			name:        "huge footprint floors climate at zero",
			in:          Metrics{Footprint: 10_000, Renewable: 100},
			wantEnv:     15,
			wantSoc:     0,
			wantGov:     0,
			wantOverall: 15,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Compute(tc.in)
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			if !almostEqual(out.Environmental, tc.wantEnv, 0.001) {
				t.Errorf("Environmental = %.4f, want %.4f", out.Environmental, tc.wantEnv)
			}
			if !almostEqual(out.Social, tc.wantSoc, 0.001) {
				t.Errorf("Social = %.4f, want %.4f", out.Social, tc.wantSoc)
			}
			if !almostEqual(out.Governance, tc.wantGov, 0.001) {
				t.Errorf("Governance = %.4f, want %.4f", out.Governance, tc.wantGov)
			}
			if out.Overall != tc.wantOverall {
				t.Errorf("Overall = %.2f, want %.2f", out.Overall, tc.wantOverall)
			}
		})
	}
}

func TestCompute_Deterministic(t *testing.T) {
	m := Metrics{
		Footprint: 123.45, Renewable: 67, WasteReduction: 12,
		Satisfaction: 34, Diversity: 56, Community: 78,
		Independence: 90, Transparency: 11, Ethics: 22,
	}
	a, err := Compute(m)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	b, err := Compute(m)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Compute is not deterministic:\n a = %+v\n b = %+v", a, b)
	}
}

func TestCompute_ZeroPillarNormalisation(t *testing.T) {
	// Footprint large enough to zero the climate sub-score, everything else 0:
	// the environmental pillar total is 0 and its normalised value must be 0,
	// not NaN.
	out, err := Compute(Metrics{Footprint: 2000})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if out.Environmental != 0 {
		t.Fatalf("Environmental = %.4f, want 0", out.Environmental)
	}
	if math.IsNaN(out.EnvironmentalPct) || out.EnvironmentalPct != 0 {
		t.Errorf("EnvironmentalPct = %v, want 0", out.EnvironmentalPct)
	}
	if math.IsNaN(out.SocialPct) || out.SocialPct != 0 {
		t.Errorf("SocialPct = %v, want 0", out.SocialPct)
	}
}

func TestCompute_RejectsInvalidInputs(t *testing.T) {
	tests := []struct {
		name string
		in   Metrics
	}{
		{"negative metric", Metrics{Satisfaction: -1}},
		{"NaN metric", Metrics{Footprint: math.NaN()}},
		{"infinite metric", Metrics{Ethics: math.Inf(1)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Compute(tc.in); err == nil {
				t.Error("Compute: expected error, got nil")
			}
		})
	}
}

func TestCompute_Breakdown(t *testing.T) {
	out, err := Compute(Metrics{Footprint: 400, Renewable: 60, WasteReduction: 75})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got := out.Breakdown["climate"]; !almostEqual(got, 11, 0.001) {
		t.Errorf("breakdown climate = %.4f, want 11", got)
	}
	if got := out.Breakdown["renewable"]; !almostEqual(got, 9, 0.001) {
		t.Errorf("breakdown renewable = %.4f, want 9", got)
	}
	if got := out.Breakdown["waste"]; !almostEqual(got, 7.5, 0.001) {
		t.Errorf("breakdown waste = %.4f, want 7.5", got)
	}
}
