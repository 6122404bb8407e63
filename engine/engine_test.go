package engine

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

// TestConfigurePWMScenario1 is spec.md §8 scenario 1: config_pwm(16, 5000)
// on a 500MHz PLLD yields clock_div=2500, pwm_rng=1000, pulse width 5000.0us.
func TestConfigurePWMScenario1(t *testing.T) {
	e := &Engine{logger: noopLogger()}
	if err := e.ConfigurePWM(16, 5000); err != nil {
		t.Fatalf("ConfigurePWM: %v", err)
	}
	if e.clockDivisor != 2500 {
		t.Errorf("clockDivisor = %d, want 2500", e.clockDivisor)
	}
	if e.pwmRange != 1000 {
		t.Errorf("pwmRange = %d, want 1000", e.pwmRange)
	}
	if !almostEqual(e.pulseWidthUS, 5000.0, 1e-6) {
		t.Errorf("pulseWidthUS = %v, want 5000.0", e.pulseWidthUS)
	}
}

// TestConfigurePWMScenario2 is spec.md §8 scenario 2: config_pwm(16, 0.3)
// returns ErrInvalidPulseWidth (below the 0.4 lower bound).
func TestConfigurePWMScenario2(t *testing.T) {
	e := &Engine{logger: noopLogger()}
	if err := e.ConfigurePWM(16, 0.3); err != ErrInvalidPulseWidth {
		t.Fatalf("err = %v, want ErrInvalidPulseWidth", err)
	}
}

func TestConfigurePWMRejectsWhenChannelRequested(t *testing.T) {
	e := &Engine{logger: noopLogger()}
	e.channels[0].requested = true
	if err := e.ConfigurePWM(16, 5000); err != ErrChannelRequested {
		t.Fatalf("err = %v, want ErrChannelRequested", err)
	}
}
