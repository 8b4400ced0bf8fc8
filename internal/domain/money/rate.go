package money

import "workledger/internal/domain/entity"

// EffectiveRate returns the hourly rate that applies to a user: the user's
// override when set, otherwise the organization default.
func EffectiveRate(u *entity.User, s *entity.Settings) float64 {
	if u != nil && u.HourlyRate != nil {
		return *u.HourlyRate
	}
	return s.DefaultHourlyRate
}
