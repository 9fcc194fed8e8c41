package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"jobledger/internal/core"
	"jobledger/internal/store"
)

// SummaryService assembles the earnings views. The store loads per
// summary are independent, so they run concurrently.
type SummaryService struct {
	jobs     store.JobStore
	expenses store.ExpenseStore
	goals    store.GoalStore
	profiles store.ProfileStore
}

func NewSummaryService(jobs store.JobStore, expenses store.ExpenseStore, goals store.GoalStore, profiles store.ProfileStore) *SummaryService {
	return &SummaryService{
		jobs:     jobs,
		expenses: expenses,
		goals:    goals,
		profiles: profiles,
	}
}

// PaymentPlan is the bill-payment suggestion view: this week's pay
// spread over the unpaid bills it can cover.
type PaymentPlan struct {
	WeekStart   core.Date
	WeekEnd     core.Date
	Available   core.Money
	Suggestions []core.BillSuggestion
	Leftover    core.Money
}

// Weekly builds the Sunday-to-Saturday summary for the week containing
// the given date.
func (s *SummaryService) Weekly(ctx context.Context, d core.Date) (core.WeeklySummary, error) {
	if err := d.Validate(); err != nil {
		return core.WeeklySummary{}, err
	}
	from, to := core.WeekRange(d)

	var (
		jobs     []core.Job
		expenses []core.Expense
		goal     *core.WeeklyGoal
		profile  core.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		jobs, err = s.jobs.ListJobsByRange(gctx, from, to)
		return err
	})
	g.Go(func() (err error) {
		expenses, err = s.expenses.ListExpensesPaidInRange(gctx, from, to)
		return err
	})
	g.Go(func() error {
		wg, err := s.goals.GetGoalByWeek(gctx, from)
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		goal = &wg
		return nil
	})
	g.Go(func() (err error) {
		profile, err = s.profileOrDefault(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.WeeklySummary{}, fmt.Errorf("load weekly summary: %w", err)
	}

	return core.BuildWeeklySummary(jobs, expenses, goal, profile, from), nil
}

// Monthly builds the calendar-month summary, weeks clipped to the month.
func (s *SummaryService) Monthly(ctx context.Context, year, month int) (core.MonthlySummary, error) {
	if month < 1 || month > 12 || year < 1 {
		return core.MonthlySummary{}, core.ErrInvalidDate
	}
	from, to := core.MonthRange(year, month)

	jobs, expenses, goals, profile, err := s.loadRange(ctx, from, to)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("load monthly summary: %w", err)
	}
	return core.BuildMonthlySummary(jobs, expenses, goals, profile, year, month), nil
}

// Yearly builds the calendar-year summary, one row per month.
func (s *SummaryService) Yearly(ctx context.Context, year int) (core.YearlySummary, error) {
	if year < 1 {
		return core.YearlySummary{}, core.ErrInvalidDate
	}
	from, to := core.YearRange(year)

	jobs, expenses, goals, profile, err := s.loadRange(ctx, from, to)
	if err != nil {
		return core.YearlySummary{}, fmt.Errorf("load yearly summary: %w", err)
	}
	return core.BuildYearlySummary(jobs, expenses, goals, profile, year), nil
}

// Suggestions proposes which unpaid bills this week's pay can cover in
// full, earliest due first. Bills due after the week are left alone.
func (s *SummaryService) Suggestions(ctx context.Context, d core.Date) (PaymentPlan, error) {
	if err := d.Validate(); err != nil {
		return PaymentPlan{}, err
	}
	from, to := core.WeekRange(d)

	var (
		jobs    []core.Job
		bills   []core.Expense
		profile core.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		jobs, err = s.jobs.ListJobsByRange(gctx, from, to)
		return err
	})
	g.Go(func() (err error) {
		bills, err = s.expenses.ListUnpaidExpenses(gctx, to)
		return err
	})
	g.Go(func() (err error) {
		profile, err = s.profileOrDefault(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return PaymentPlan{}, fmt.Errorf("load payment plan: %w", err)
	}

	available := core.GrossPay(core.SumJobs(jobs), profile)
	suggestions, leftover := core.SuggestBillPayments(available, bills)
	return PaymentPlan{
		WeekStart:   from,
		WeekEnd:     to,
		Available:   available,
		Suggestions: suggestions,
		Leftover:    leftover,
	}, nil
}

func (s *SummaryService) loadRange(ctx context.Context, from, to core.Date) ([]core.Job, []core.Expense, []core.WeeklyGoal, core.Profile, error) {
	var (
		jobs     []core.Job
		expenses []core.Expense
		goals    []core.WeeklyGoal
		profile  core.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		jobs, err = s.jobs.ListJobsByRange(gctx, from, to)
		return err
	})
	g.Go(func() (err error) {
		expenses, err = s.expenses.ListExpensesPaidInRange(gctx, from, to)
		return err
	})
	g.Go(func() (err error) {
		goals, err = s.goals.ListGoalsByRange(gctx, from, to)
		return err
	})
	g.Go(func() (err error) {
		profile, err = s.profileOrDefault(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, core.Profile{}, err
	}
	return jobs, expenses, goals, profile, nil
}

// profileOrDefault falls back to an owner profile so summaries work
// before the profile is first saved. An owner keeps the full gross.
func (s *SummaryService) profileOrDefault(ctx context.Context) (core.Profile, error) {
	p, err := s.profiles.GetProfile(ctx)
	if errors.Is(err, core.ErrNotFound) {
		return core.Profile{Role: core.RoleOwner}, nil
	}
	if err != nil {
		return core.Profile{}, err
	}
	return p, nil
}
