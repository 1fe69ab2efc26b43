package dynamo

import (
	"errors"
	"math"
	"testing"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		valid bool
	}{
		{"empty", State{}, true},
		{"normal", State{1.0, 2.0, 3.0}, true},
		{"with NaN", State{1.0, math.NaN()}, false},
		{"with +Inf", State{1.0, math.Inf(1)}, false},
		{"with -Inf", State{1.0, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestState_Arithmetic(t *testing.T) {
	a := State{1, 2, 3}
	b := State{4, 5, 6}

	sum := a.Add(b)
	if sum[0] != 5 || sum[1] != 7 || sum[2] != 9 {
		t.Errorf("Add = %v", sum)
	}

	scaled := a.Scale(2)
	if scaled[2] != 6 {
		t.Errorf("Scale = %v", scaled)
	}

	if short := a.Add(State{1}); short[0] != 2 || short[2] != 3 {
		t.Errorf("Add with a shorter operand = %v", short)
	}
	if a[0] != 1 {
		t.Error("Add and Scale must not modify the receiver")
	}
}

func TestCheckFinite(t *testing.T) {
	if err := CheckFinite("stiffness", 64); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := CheckFinite("stiffness", math.NaN())
	if !errors.Is(err, ErrNonFinite) {
		t.Errorf("expected ErrNonFinite, got %v", err)
	}
}

func TestSimulationErrorUnwrap(t *testing.T) {
	err := error(&SimulationError{Step: 3, Time: 0.06, Body: "TA0", Wrapped: ErrInvalidState})
	if !errors.Is(err, ErrInvalidState) {
		t.Error("SimulationError should unwrap to its cause")
	}
}
