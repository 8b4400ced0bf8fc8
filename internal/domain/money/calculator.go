// Package money holds the pure monetary calculations of the workflow: shift
// hours, labor, materials, mileage and grand totals, and effective-rate
// resolution. Everything here is stateless.
package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"workledger/internal/domain/entity"
)

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Hours computes the shift duration in hours between two HH:MM times,
// rounded to two decimals. An end time earlier than the start time is treated
// as an overnight shift and wraps by 24 hours.
func Hours(start, end string) (float64, error) {
	startMin, err := parseClock(start)
	if err != nil {
		return 0, fmt.Errorf("start time: %w", err)
	}
	endMin, err := parseClock(end)
	if err != nil {
		return 0, fmt.Errorf("end time: %w", err)
	}

	diff := endMin - startMin
	if diff < 0 {
		diff += 24 * 60
	}
	return Round2(float64(diff) / 60), nil
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// LaborTotal is hours times the effective hourly rate.
func LaborTotal(hours, rate float64) float64 {
	return Round2(hours * rate)
}

// MaterialsTotal sums quantity times unit cost over the materials list.
func MaterialsTotal(materials []entity.Material) float64 {
	var sum float64
	for _, m := range materials {
		sum += m.Quantity * m.UnitCost
	}
	return Round2(sum)
}

// ItemsTotal sums quantity times unit cost over a purchase's line items.
func ItemsTotal(items []entity.Item) float64 {
	var sum float64
	for _, it := range items {
		sum += it.Quantity * it.UnitCost
	}
	return Round2(sum)
}

// MileageTotal is miles times the per-mile reimbursement rate.
func MileageTotal(miles, rate float64) float64 {
	return Round2(miles * rate)
}

// WorkGrandTotal is labor plus materials. Work-entry mileage is reimbursed
// separately and is deliberately not folded into the grand total used for
// approval thresholds and payment.
func WorkGrandTotal(laborTotal, materialsTotal float64) float64 {
	return Round2(laborTotal + materialsTotal)
}

// PurchaseTotal is the items subtotal plus tax plus mileage reimbursement.
func PurchaseTotal(subtotal, tax, mileage, mileageRate float64) float64 {
	return Round2(subtotal + tax + MileageTotal(mileage, mileageRate))
}
