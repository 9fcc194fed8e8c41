package services

import (
	"context"
	"fmt"

	"jobledger/internal/core"
	"jobledger/internal/store"
)

// GoalService manages weekly income goals. Actual income is derived
// from paid jobs: recomputed on every read, persisted on every write.
type GoalService struct {
	goals    store.GoalStore
	jobs     store.JobStore
	expenses store.ExpenseStore
}

func NewGoalService(goals store.GoalStore, jobs store.JobStore, expenses store.ExpenseStore) *GoalService {
	return &GoalService{goals: goals, jobs: jobs, expenses: expenses}
}

func (s *GoalService) CreateGoal(ctx context.Context, g core.WeeklyGoal) (core.WeeklyGoal, error) {
	if g.WeekEnd.IsEmpty() {
		g.WeekEnd = g.WeekStart.AddDays(6)
	}
	if err := g.Validate(); err != nil {
		return core.WeeklyGoal{}, err
	}
	if err := s.refreshActual(ctx, &g); err != nil {
		return core.WeeklyGoal{}, err
	}
	created, err := s.goals.CreateGoal(ctx, g)
	if err != nil {
		return core.WeeklyGoal{}, fmt.Errorf("save goal: %w", err)
	}
	return created, nil
}

// UpdateGoal replaces the goal's scalar fields. Allocations are managed
// through their own endpoints and carry over from the stored goal.
func (s *GoalService) UpdateGoal(ctx context.Context, g core.WeeklyGoal) (core.WeeklyGoal, error) {
	existing, err := s.goals.GetGoal(ctx, g.ID)
	if err != nil {
		return core.WeeklyGoal{}, err
	}
	g.Allocations = existing.Allocations
	g.CreatedAt = existing.CreatedAt
	if g.WeekEnd.IsEmpty() {
		g.WeekEnd = g.WeekStart.AddDays(6)
	}
	if err := g.Validate(); err != nil {
		return core.WeeklyGoal{}, err
	}
	if err := s.refreshActual(ctx, &g); err != nil {
		return core.WeeklyGoal{}, err
	}
	return s.goals.UpdateGoal(ctx, g)
}

func (s *GoalService) GetGoal(ctx context.Context, id string) (core.WeeklyGoal, error) {
	g, err := s.goals.GetGoal(ctx, id)
	if err != nil {
		return core.WeeklyGoal{}, err
	}
	if err := s.refreshActual(ctx, &g); err != nil {
		return core.WeeklyGoal{}, err
	}
	return g, nil
}

// GetGoalForDate returns the goal covering the week that contains the
// given date.
func (s *GoalService) GetGoalForDate(ctx context.Context, d core.Date) (core.WeeklyGoal, error) {
	g, err := s.goals.GetGoalByWeek(ctx, core.WeekStart(d))
	if err != nil {
		return core.WeeklyGoal{}, err
	}
	if err := s.refreshActual(ctx, &g); err != nil {
		return core.WeeklyGoal{}, err
	}
	return g, nil
}

func (s *GoalService) DeleteGoal(ctx context.Context, id string) error {
	return s.goals.DeleteGoal(ctx, id)
}

// ListGoals returns the most recent goals with actual income refreshed.
// One job query covers the whole listed span.
func (s *GoalService) ListGoals(ctx context.Context, limit int) ([]core.WeeklyGoal, error) {
	goals, err := s.goals.ListGoals(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(goals) == 0 {
		return goals, nil
	}
	// Goals come back most recent first.
	from := goals[len(goals)-1].WeekStart
	to := goals[0].WeekEnd
	jobs, err := s.jobs.ListJobsByRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load jobs for goals: %w", err)
	}
	for i := range goals {
		goals[i].ActualIncome = core.ActualIncome(jobs, goals[i])
	}
	return goals, nil
}

// AllocateBill assigns a weekly slice of a bill to the goal, replacing
// any existing allocation for the same expense. The allocation keeps a
// snapshot of the bill name.
func (s *GoalService) AllocateBill(ctx context.Context, goalID, expenseID string, weekly core.Money) (core.WeeklyGoal, error) {
	if err := weekly.Validate(); err != nil {
		return core.WeeklyGoal{}, err
	}
	g, err := s.goals.GetGoal(ctx, goalID)
	if err != nil {
		return core.WeeklyGoal{}, err
	}
	e, err := s.expenses.GetExpense(ctx, expenseID)
	if err != nil {
		return core.WeeklyGoal{}, fmt.Errorf("allocate bill: %w", err)
	}

	replaced := false
	for i := range g.Allocations {
		if g.Allocations[i].ExpenseID == expenseID {
			g.Allocations[i].Name = e.Name
			g.Allocations[i].WeeklyAmount = weekly
			replaced = true
			break
		}
	}
	if !replaced {
		g.Allocations = append(g.Allocations, core.BillAllocation{
			ExpenseID:    expenseID,
			Name:         e.Name,
			WeeklyAmount: weekly,
		})
	}

	if err := s.refreshActual(ctx, &g); err != nil {
		return core.WeeklyGoal{}, err
	}
	return s.goals.UpdateGoal(ctx, g)
}

// CompleteBill marks the goal's allocation for an expense as done.
func (s *GoalService) CompleteBill(ctx context.Context, goalID, expenseID string) (core.WeeklyGoal, error) {
	g, err := s.goals.GetGoal(ctx, goalID)
	if err != nil {
		return core.WeeklyGoal{}, err
	}

	found := false
	for i := range g.Allocations {
		if g.Allocations[i].ExpenseID == expenseID {
			g.Allocations[i].IsComplete = true
			found = true
			break
		}
	}
	if !found {
		return core.WeeklyGoal{}, core.ErrNotFound
	}

	if err := s.refreshActual(ctx, &g); err != nil {
		return core.WeeklyGoal{}, err
	}
	return s.goals.UpdateGoal(ctx, g)
}

func (s *GoalService) refreshActual(ctx context.Context, g *core.WeeklyGoal) error {
	jobs, err := s.jobs.ListJobsByRange(ctx, g.WeekStart, g.WeekEnd)
	if err != nil {
		return fmt.Errorf("load jobs for goal week: %w", err)
	}
	g.ActualIncome = core.ActualIncome(jobs, *g)
	return nil
}
