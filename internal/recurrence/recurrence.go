// Package recurrence normalizes recurring amounts to a per-month rate.
//
// Normalization happens per record, before summation: the monthly-recurring
// total of a collection is the sum of the monthly equivalents of each record,
// never the monthly equivalent of a pre-summed aggregate.
package recurrence

import (
	"math"

	"github.com/ldi/caretaker/pkg/models"
)

// MonthlyEquivalent converts an (amount, period) pair into its per-month
// rate: monthly amounts pass through, quarterly divide by 3, yearly by 12.
// Weekly carries no amortization rule and is rejected, as are negative or
// non-finite amounts.
func MonthlyEquivalent(amount float64, period models.RecurrencePeriod) (float64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, models.Validationf("amount is not finite")
	}
	if amount < 0 {
		return 0, models.Validationf("amount is negative")
	}

	switch period {
	case models.RecurrenceMonthly:
		return amount, nil
	case models.RecurrenceQuarterly:
		return amount / 3, nil
	case models.RecurrenceYearly:
		return amount / 12, nil
	}
	return 0, models.Validationf("no monthly equivalent for period %q", period)
}

// MonthlyRecurringTotal sums the monthly equivalents of all recurring
// expenses. Non-recurring expenses and expenses without a period are
// skipped; a malformed amount or period on a recurring expense fails the
// whole computation.
func MonthlyRecurringTotal(expenses []*models.Expense) (float64, error) {
	var total float64
	for _, e := range expenses {
		if !e.IsRecurring || e.RecurrencePeriod == nil {
			continue
		}
		amount, err := models.ParseAmount(e.Amount)
		if err != nil {
			return 0, err
		}
		monthly, err := MonthlyEquivalent(amount, *e.RecurrencePeriod)
		if err != nil {
			return 0, err
		}
		total += monthly
	}
	return total, nil
}
