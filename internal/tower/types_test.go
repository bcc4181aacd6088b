package tower

import (
	"errors"
	"math"
	"testing"
)

func cubeStack(xs ...float64) Tower {
	t := make(Tower, len(xs))
	for i, x := range xs {
		t[i] = NewBlock(x, 0, 0.2+0.4*float64(i), 0.4, 0.4, 0.4)
	}
	return t
}

func TestTower_Validate(t *testing.T) {
	tests := []struct {
		name  string
		tower Tower
		want  error
	}{
		{"valid", cubeStack(0, 0.1, -0.1), nil},
		{"single block", cubeStack(0), nil},
		{"empty", Tower{}, ErrEmptyTower},
		{"zero width", Tower{NewBlock(0, 0, 0.2, 0, 0.4, 0.4)}, ErrInvalidDimension},
		{"negative height", Tower{NewBlock(0, 0, 0.2, 0.4, 0.4, -1)}, ErrInvalidDimension},
		{"NaN x", Tower{NewBlock(math.NaN(), 0, 0.2, 0.4, 0.4, 0.4)}, ErrInvalidDimension},
		{"descending z", Tower{NewBlock(0, 0, 0.6, 0.4, 0.4, 0.4), NewBlock(0, 0, 0.2, 0.4, 0.4, 0.4)}, ErrInvalidDimension},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tower.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTower_ValidateLocatesBlock(t *testing.T) {
	tw := cubeStack(0, 0.1)
	tw[1].LY = 0

	var be *BlockError
	if err := tw.Validate(); !errors.As(err, &be) {
		t.Fatalf("expected BlockError, got %v", err)
	}
	if be.Index != 1 || be.Field != "ly" {
		t.Errorf("got index %d field %q, want 1 ly", be.Index, be.Field)
	}
}

func TestTower_Scaled(t *testing.T) {
	mass := 2.0
	tw := cubeStack(0, 0.2)
	tw[1].Mass = &mass
	tw[1].Unstable = true

	s := tw.Scaled(2)
	if s[1].X != 0.1 || s[1].LX != 0.2 || math.Abs(s[1].Z-0.3) > 1e-12 {
		t.Errorf("unexpected scaled block: %+v", s[1])
	}
	if !s[1].Unstable {
		t.Error("scaling dropped the unstable label")
	}
	if tw[1].X != 0.2 {
		t.Error("Scaled mutated the original tower")
	}
	*s[1].Mass = 5
	if mass != 2.0 {
		t.Error("Scaled shares mass pointers with the original")
	}
}

func TestBlock_Footprint(t *testing.T) {
	b := NewBlock(1, -1, 0.5, 0.4, 0.2, 1)
	minX, maxX, minY, maxY := b.Footprint()
	if math.Abs(minX-0.8) > 1e-12 || math.Abs(maxX-1.2) > 1e-12 {
		t.Errorf("x footprint = [%v, %v]", minX, maxX)
	}
	if math.Abs(minY+1.1) > 1e-12 || math.Abs(maxY+0.9) > 1e-12 {
		t.Errorf("y footprint = [%v, %v]", minY, maxY)
	}
}

func TestUnreachableError(t *testing.T) {
	err := error(&UnreachableError{Op: "collect", Attempts: 10})
	if !errors.Is(err, ErrUnreachable) {
		t.Error("UnreachableError must match ErrUnreachable")
	}
	want := "collect: gave up after 10 attempts: " + ErrUnreachable.Error()
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
