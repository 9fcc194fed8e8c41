package core

// DayTotal is one day's slice of a summary.
type DayTotal struct {
	Date     Date
	JobCount int
	Total    Money
	Unpaid   Money
}

// WeekTotal is one (possibly clipped) week's slice of a monthly summary.
type WeekTotal struct {
	From     Date
	To       Date
	JobCount int
	Total    Money
	Unpaid   Money
}

// MonthTotal is one month's slice of a yearly summary.
type MonthTotal struct {
	Month    int // 1-12
	JobCount int
	Total    Money
	Unpaid   Money
}

// GoalProgress compares a weekly goal against income earned so far.
type GoalProgress struct {
	GoalID    string
	Target    Money
	Actual    Money
	Remaining Money
	Percent   float64
}

// CategoryAmount represents an amount aggregated by expense category.
type CategoryAmount struct {
	Category ExpenseCategory
	Amount   Money
}

// EarningsFigures are the pay numbers every summary carries.
type EarningsFigures struct {
	Totals   RangeTotals
	Pay      Money // role formula applied to Totals
	Expenses Money // paid expenses in range
	Bills    Money // weekly bill allocations overlapping range
	Net      Money // Pay - Expenses - Bills
}

// WeeklySummary covers one Sunday-to-Saturday week.
type WeeklySummary struct {
	WeekStart Date
	WeekEnd   Date
	Days      []DayTotal
	Earnings  EarningsFigures
	Goal      *GoalProgress
}

// MonthlySummary covers one calendar month, broken into weeks clipped to
// the month boundaries.
type MonthlySummary struct {
	Year       int
	Month      int // 1-12
	Weeks      []WeekTotal
	Earnings   EarningsFigures
	Categories []CategoryAmount // paid expenses grouped by category
}

// YearlySummary covers one calendar year, broken into months.
type YearlySummary struct {
	Year       int
	Months     []MonthTotal
	Earnings   EarningsFigures
	Categories []CategoryAmount // paid expenses grouped by category
}

func buildEarnings(jobs []Job, expenses []Expense, goals []WeeklyGoal, p Profile, from, to Date) EarningsFigures {
	totals := SumJobs(jobs)
	pay := GrossPay(totals, p)
	exp := PaidExpensesTotal(expenses, from, to)
	bills := AllocationsTotal(goals, from, to)
	return EarningsFigures{
		Totals:   totals,
		Pay:      pay,
		Expenses: exp,
		Bills:    bills,
		Net:      pay.Sub(exp).Sub(bills),
	}
}

// BuildWeeklySummary assembles the weekly view. The jobs, expenses, and
// goal passed in may cover a wider range; filtering happens here.
func BuildWeeklySummary(jobs []Job, expenses []Expense, goal *WeeklyGoal, p Profile, weekStart Date) WeeklySummary {
	from, to := weekStart, weekStart.AddDays(6)
	week := FilterJobsByRange(jobs, from, to)

	days := make([]DayTotal, 7)
	for i := range days {
		days[i].Date = from.AddDays(i)
	}
	for _, j := range week {
		i := int(j.Date.Sub(from.Time).Hours() / 24)
		if i < 0 || i > 6 {
			continue
		}
		days[i].JobCount++
		days[i].Total.Cents += j.Amount.Cents
		if !j.IsPaid {
			days[i].Unpaid.Cents += j.Amount.Cents
		}
	}

	var goals []WeeklyGoal
	var progress *GoalProgress
	if goal != nil {
		goals = []WeeklyGoal{*goal}
		actual := ActualIncome(week, *goal)
		progress = &GoalProgress{
			GoalID:    goal.ID,
			Target:    goal.IncomeTarget,
			Actual:    actual,
			Remaining: goal.IncomeTarget.Sub(actual),
			Percent:   goalPercent(goal.IncomeTarget, actual),
		}
	}

	return WeeklySummary{
		WeekStart: from,
		WeekEnd:   to,
		Days:      days,
		Earnings:  buildEarnings(week, expenses, goals, p, from, to),
		Goal:      progress,
	}
}

// BuildMonthlySummary assembles the monthly view, with per-week rows
// clipped to the month so the rows partition the month's days exactly.
func BuildMonthlySummary(jobs []Job, expenses []Expense, goals []WeeklyGoal, p Profile, year, month int) MonthlySummary {
	from, to := MonthRange(year, month)
	inMonth := FilterJobsByRange(jobs, from, to)

	spans := WeeksInMonth(year, month)
	weeks := make([]WeekTotal, len(spans))
	for i, span := range spans {
		weeks[i].From = span.From
		weeks[i].To = span.To
		for _, j := range FilterJobsByRange(inMonth, span.From, span.To) {
			weeks[i].JobCount++
			weeks[i].Total.Cents += j.Amount.Cents
			if !j.IsPaid {
				weeks[i].Unpaid.Cents += j.Amount.Cents
			}
		}
	}

	return MonthlySummary{
		Year:       year,
		Month:      month,
		Weeks:      weeks,
		Earnings:   buildEarnings(inMonth, expenses, goals, p, from, to),
		Categories: ExpensesByCategory(expenses),
	}
}

// BuildYearlySummary assembles the yearly view, one row per month.
func BuildYearlySummary(jobs []Job, expenses []Expense, goals []WeeklyGoal, p Profile, year int) YearlySummary {
	from, to := YearRange(year)
	inYear := FilterJobsByRange(jobs, from, to)

	months := make([]MonthTotal, 12)
	for i := range months {
		months[i].Month = i + 1
	}
	for _, j := range inYear {
		m := &months[j.Date.Month()-1]
		m.JobCount++
		m.Total.Cents += j.Amount.Cents
		if !j.IsPaid {
			m.Unpaid.Cents += j.Amount.Cents
		}
	}

	return YearlySummary{
		Year:       year,
		Months:     months,
		Earnings:   buildEarnings(inYear, expenses, goals, p, from, to),
		Categories: ExpensesByCategory(expenses),
	}
}

// ExpensesByCategory aggregates expense amounts by category, in the fixed
// category order.
func ExpensesByCategory(expenses []Expense) []CategoryAmount {
	order := []ExpenseCategory{Fixed, Variable, Business, Personal, Other}
	byCat := map[ExpenseCategory]int64{}
	for _, e := range expenses {
		byCat[e.Category] += e.Amount.Cents
	}
	out := make([]CategoryAmount, 0, len(byCat))
	for _, c := range order {
		if cents, ok := byCat[c]; ok {
			out = append(out, CategoryAmount{Category: c, Amount: Money{Cents: cents}})
		}
	}
	return out
}

func goalPercent(target, actual Money) float64 {
	if target.Cents <= 0 {
		return 0
	}
	return float64(actual.Cents) / float64(target.Cents) * 100.0
}
