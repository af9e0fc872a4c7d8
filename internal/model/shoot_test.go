package model

import (
	"errors"
	"math"
	"testing"
)

func TestShoot_Validate(t *testing.T) {
	tests := []struct {
		name    string
		shoot   Shoot
		wantErr string
	}{
		{"整数採点の満点", Shoot{ShotCount: 10, TotalScore: 100}, ""},
		{"小数点採点の満点", Shoot{ShotCount: 10, TotalScore: 109, UseDecimals: true}, ""},
		{"0点", Shoot{ShotCount: 60, TotalScore: 0}, ""},
		{"整数採点で100超", Shoot{ShotCount: 10, TotalScore: 100.1}, ErrCodeInvalidScore},
		{"小数点採点で109超", Shoot{ShotCount: 10, TotalScore: 109.1, UseDecimals: true}, ErrCodeInvalidScore},
		{"負の点数", Shoot{ShotCount: 10, TotalScore: -1}, ErrCodeInvalidScore},
		{"NaN", Shoot{ShotCount: 10, TotalScore: math.NaN()}, ErrCodeInvalidScore},
		{"無限大", Shoot{ShotCount: 10, TotalScore: math.Inf(1)}, ErrCodeInvalidScore},
		{"発数0", Shoot{ShotCount: 0, TotalScore: 0}, ErrCodeInvalidShotCount},
		{"発数が負", Shoot{ShotCount: -10, TotalScore: 0}, ErrCodeInvalidShotCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.shoot.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Validate() error = %v, want *APIError", err)
			}
			if apiErr.Code != tt.wantErr {
				t.Errorf("code = %q, want %q", apiErr.Code, tt.wantErr)
			}
		})
	}
}

func TestShoot_AmmunitionLabel_DefaultsToUnknown(t *testing.T) {
	if got := (Shoot{}).AmmunitionLabel(); got != UnknownAmmunition {
		t.Errorf("AmmunitionLabel() = %q, want %q", got, UnknownAmmunition)
	}
	if got := (Shoot{Ammunition: "RWS R50"}).AmmunitionLabel(); got != "RWS R50" {
		t.Errorf("AmmunitionLabel() = %q, want %q", got, "RWS R50")
	}
}

func TestShoot_CreatedAt_FromID(t *testing.T) {
	s := Shoot{ID: 1700000000123}
	if got := s.CreatedAt().UnixMilli(); got != 1700000000123 {
		t.Errorf("CreatedAt().UnixMilli() = %d, want %d", got, int64(1700000000123))
	}
}

func TestMeasurementProfile_Set_RejectsUnknownField(t *testing.T) {
	fields := NewMeasurementFields("sling_length", "butt_plate")
	p := MeasurementProfile{}

	if err := p.Set(fields, "sling_length", "42"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if p["sling_length"] != "42" {
		t.Errorf("sling_length = %q, want %q", p["sling_length"], "42")
	}

	err := p.Set(fields, "__proto__", "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != ErrCodeUnknownMeasurement {
		t.Fatalf("Set() error = %v, want %s", err, ErrCodeUnknownMeasurement)
	}
	if _, ok := p["__proto__"]; ok {
		t.Error("unknown field should not be stored")
	}
}

func TestMeasurementProfile_Restrict_DropsStaleKeys(t *testing.T) {
	fields := NewMeasurementFields("sling_length")
	p := MeasurementProfile{"sling_length": "42", "old_field": "x"}

	got := p.Restrict(fields)
	if len(got) != 1 || got["sling_length"] != "42" {
		t.Errorf("Restrict() = %v, want only sling_length", got)
	}
}

func TestMeasurementFields_Names_Sorted(t *testing.T) {
	fields := NewMeasurementFields("b", "a", "c")
	names := fields.Names()
	want := []string{"a", "b", "c"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
	}
}
