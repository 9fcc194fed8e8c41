package core

import "sort"

// Earnings math. Everything in this file is pure: slices in, numbers out.
//
// Pay rules:
//   - An owner keeps the full gross.
//   - A commissioned employee earns gross times their rate, minus any
//     payments they already hold: direct cash (when they keep cash),
//     direct checks (when they keep checks), and any other payment
//     marked paid-to-me. A negative payout means the employee owes the
//     difference back; it is never clamped.

type RangeTotals struct {
	Gross     Money
	Unpaid    Money
	Cash      Money
	Checks    Money
	OtherToMe Money
	JobCount  int
	PaidJobs  int
}

// SumJobs reduces a job slice to its range totals. Retention buckets
// (Cash, Checks, OtherToMe) only count paid jobs whose payment went
// directly to the worker.
func SumJobs(jobs []Job) RangeTotals {
	var t RangeTotals
	for _, j := range jobs {
		t.JobCount++
		t.Gross.Cents += j.Amount.Cents
		if !j.IsPaid {
			t.Unpaid.Cents += j.Amount.Cents
			continue
		}
		t.PaidJobs++
		if !j.PaymentToMe {
			continue
		}
		switch j.PaymentMethod {
		case Cash:
			t.Cash.Cents += j.Amount.Cents
		case Check:
			t.Checks.Cents += j.Amount.Cents
		default:
			t.OtherToMe.Cents += j.Amount.Cents
		}
	}
	return t
}

// FilterJobsByRange keeps jobs dated within [from, to], inclusive.
func FilterJobsByRange(jobs []Job, from, to Date) []Job {
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if j.Date.Within(from, to) {
			out = append(out, j)
		}
	}
	return out
}

// GrossPay applies the role formula to range totals.
func GrossPay(t RangeTotals, p Profile) Money {
	if p.Role == RoleOwner {
		return t.Gross
	}
	pay := t.Gross.MulRate(p.CommissionRate)
	if p.KeepsCash {
		pay = pay.Sub(t.Cash)
	}
	if p.KeepsCheck {
		pay = pay.Sub(t.Checks)
	}
	return pay.Sub(t.OtherToMe)
}

// PaidExpensesTotal sums expenses paid within [from, to].
func PaidExpensesTotal(expenses []Expense, from, to Date) Money {
	var total Money
	for _, e := range expenses {
		if e.IsPaid && e.PaidDate.Within(from, to) {
			total.Cents += e.Amount.Cents
		}
	}
	return total
}

// AllocationsTotal sums weekly bill allocations on goals whose week
// overlaps [from, to].
func AllocationsTotal(goals []WeeklyGoal, from, to Date) Money {
	var total Money
	for _, g := range goals {
		if g.WeekEnd.Before(from.Time) || g.WeekStart.After(to.Time) {
			continue
		}
		for _, a := range g.Allocations {
			total.Cents += a.WeeklyAmount.Cents
		}
	}
	return total
}

// ActualIncome is the weekly-goal derivation: the sum over paid jobs
// dated within the goal's week.
func ActualIncome(jobs []Job, g WeeklyGoal) Money {
	var total Money
	for _, j := range jobs {
		if j.IsPaid && j.Date.Within(g.WeekStart, g.WeekEnd) {
			total.Cents += j.Amount.Cents
		}
	}
	return total
}

// AssignSequenceNumbers sorts jobs by date then creation time and numbers
// jobs sharing a day 1..n. The input slice is modified in place.
func AssignSequenceNumbers(jobs []Job) {
	sort.SliceStable(jobs, func(i, k int) bool {
		if !jobs[i].Date.Equal(jobs[k].Date.Time) {
			return jobs[i].Date.Before(jobs[k].Date.Time)
		}
		return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
	})
	seq := 0
	for i := range jobs {
		if i > 0 && jobs[i].Date.Equal(jobs[i-1].Date.Time) {
			seq++
		} else {
			seq = 1
		}
		jobs[i].SequenceNumber = seq
	}
}

// BillSuggestion is one bill the available funds can cover in full.
type BillSuggestion struct {
	ExpenseID string
	Name      string
	Amount    Money
	DueDate   Date
}

// SuggestBillPayments walks unpaid bills earliest due first (ties broken
// by smaller amount, then name) and suggests those payable in full from
// the available funds. Returns the suggestions and the leftover.
func SuggestBillPayments(available Money, bills []Expense) ([]BillSuggestion, Money) {
	if available.Cents < 0 {
		available = Money{}
	}
	sorted := make([]Expense, 0, len(bills))
	for _, b := range bills {
		if !b.IsPaid {
			sorted = append(sorted, b)
		}
	}
	sort.SliceStable(sorted, func(i, k int) bool {
		if !sorted[i].DueDate.Equal(sorted[k].DueDate.Time) {
			return sorted[i].DueDate.Before(sorted[k].DueDate.Time)
		}
		if sorted[i].Amount.Cents != sorted[k].Amount.Cents {
			return sorted[i].Amount.Cents < sorted[k].Amount.Cents
		}
		return sorted[i].Name < sorted[k].Name
	})
	suggestions := make([]BillSuggestion, 0, len(sorted))
	left := available
	for _, b := range sorted {
		if b.Amount.Cents > left.Cents {
			continue
		}
		suggestions = append(suggestions, BillSuggestion{
			ExpenseID: b.ID,
			Name:      b.Name,
			Amount:    b.Amount,
			DueDate:   b.DueDate,
		})
		left = left.Sub(b.Amount)
	}
	return suggestions, left
}
