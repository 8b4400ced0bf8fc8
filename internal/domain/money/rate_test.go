package money

import (
	"testing"

	"workledger/internal/domain/entity"
)

func TestEffectiveRate(t *testing.T) {
	override := 42.5
	settings := &entity.Settings{DefaultHourlyRate: 25}

	tests := []struct {
		name string
		user *entity.User
		want float64
	}{
		{name: "user override wins", user: &entity.User{ID: "u1", HourlyRate: &override}, want: 42.5},
		{name: "falls back to default", user: &entity.User{ID: "u2"}, want: 25},
		{name: "nil user falls back", user: nil, want: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectiveRate(tt.user, settings); got != tt.want {
				t.Errorf("EffectiveRate() = %v, want %v", got, tt.want)
			}
		})
	}
}
