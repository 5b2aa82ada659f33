package sensors

import (
	"errors"
	"testing"
)

type failingProbe struct{}

func (failingProbe) ReadAll() ([Count]float64, error) {
	return [Count]float64{}, errors.New("i2c bus timeout")
}

func TestReadOrZeroSubstitutesOnFailure(t *testing.T) {
	// WHY: A sensor fault must not fail a measurement whose fit already
	// succeeded; the contract is zeros, not an error.
	got := ReadOrZero(failingProbe{}, nil)
	if got != [Count]float64{} {
		t.Fatalf("got %v, want zero vector", got)
	}
}

func TestReadOrZeroNilProbe(t *testing.T) {
	got := ReadOrZero(nil, nil)
	if got != [Count]float64{} {
		t.Fatalf("got %v, want zero vector", got)
	}
}

func TestSimProbeReadings(t *testing.T) {
	p := NewSim()
	readings, err := p.ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for i, v := range readings {
		if v < 15 || v > 30 {
			t.Errorf("channel %d: %v outside plausible lab range", i, v)
		}
	}
}
