package http

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"jobledger/internal/core"
	"jobledger/internal/services"
)

// Wire DTOs. Amounts travel as plain decimal strings ("125.50"),
// dates as "2006-01-02". Core types stay free of JSON concerns.

type jobPayload struct {
	Date          string            `json:"date"`
	CompanyName   string            `json:"company_name"`
	Address       string            `json:"address"`
	City          string            `json:"city"`
	Yards         float64           `json:"yards"`
	IsPaid        bool              `json:"is_paid"`
	PaymentMethod string            `json:"payment_method"`
	Amount        string            `json:"amount"`
	CheckNumber   string            `json:"check_number"`
	Notes         string            `json:"notes"`
	PaymentToMe   bool              `json:"payment_to_me"`
	Billing       *billingPayload   `json:"billing,omitempty"`
	LineItems     []lineItemPayload `json:"line_items,omitempty"`
}

type billingPayload struct {
	InvoiceNumber string `json:"invoice_number"`
	InvoiceDate   string `json:"invoice_date,omitempty"`
	DueDate       string `json:"due_date,omitempty"`
	ContactName   string `json:"contact_name,omitempty"`
	ContactEmail  string `json:"contact_email,omitempty"`
	ContactPhone  string `json:"contact_phone,omitempty"`
}

type lineItemPayload struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

type jobResponse struct {
	ID             string             `json:"id"`
	Date           string             `json:"date"`
	CompanyName    string             `json:"company_name"`
	Address        string             `json:"address"`
	City           string             `json:"city,omitempty"`
	Yards          float64            `json:"yards"`
	IsPaid         bool               `json:"is_paid"`
	PaymentMethod  string             `json:"payment_method"`
	Amount         string             `json:"amount"`
	CheckNumber    string             `json:"check_number,omitempty"`
	Notes          string             `json:"notes,omitempty"`
	PaymentToMe    bool               `json:"payment_to_me"`
	SequenceNumber int                `json:"sequence_number"`
	Billing        *billingResponse   `json:"billing,omitempty"`
	LineItems      []lineItemResponse `json:"line_items,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

type billingResponse struct {
	InvoiceNumber string `json:"invoice_number"`
	InvoiceDate   string `json:"invoice_date,omitempty"`
	DueDate       string `json:"due_date,omitempty"`
	ContactName   string `json:"contact_name,omitempty"`
	ContactEmail  string `json:"contact_email,omitempty"`
	ContactPhone  string `json:"contact_phone,omitempty"`
}

type lineItemResponse struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

func (p jobPayload) toCore() (core.Job, error) {
	date, err := core.ParseDate(p.Date)
	if err != nil {
		return core.Job{}, err
	}
	cents, err := core.ParseAmountToCents(p.Amount)
	if err != nil {
		return core.Job{}, err
	}

	j := core.Job{
		Date:          date,
		CompanyName:   sanitizeInput(p.CompanyName),
		Address:       sanitizeInput(p.Address),
		City:          sanitizeInput(p.City),
		Yards:         p.Yards,
		IsPaid:        p.IsPaid,
		PaymentMethod: core.PaymentMethod(p.PaymentMethod),
		Amount:        core.Money{Cents: cents},
		CheckNumber:   sanitizeInput(p.CheckNumber),
		Notes:         sanitizeInput(p.Notes),
		PaymentToMe:   p.PaymentToMe,
	}

	if p.Billing != nil {
		invoiceDate, err := parseOptionalDate(p.Billing.InvoiceDate)
		if err != nil {
			return core.Job{}, err
		}
		dueDate, err := parseOptionalDate(p.Billing.DueDate)
		if err != nil {
			return core.Job{}, err
		}
		j.Billing = &core.BillingDetails{
			InvoiceNumber: sanitizeInput(p.Billing.InvoiceNumber),
			InvoiceDate:   invoiceDate,
			DueDate:       dueDate,
			ContactName:   sanitizeInput(p.Billing.ContactName),
			ContactEmail:  sanitizeInput(p.Billing.ContactEmail),
			ContactPhone:  sanitizeInput(p.Billing.ContactPhone),
		}
	}

	for _, item := range p.LineItems {
		itemCents, err := core.ParseDecimalToCents(item.Amount)
		if err != nil {
			return core.Job{}, err
		}
		j.LineItems = append(j.LineItems, core.LineItem{
			Description: sanitizeInput(item.Description),
			Amount:      core.Money{Cents: itemCents},
		})
	}

	return j, nil
}

func fromCoreJob(j core.Job) jobResponse {
	resp := jobResponse{
		ID:             j.ID,
		Date:           j.Date.String(),
		CompanyName:    j.CompanyName,
		Address:        j.Address,
		City:           j.City,
		Yards:          j.Yards,
		IsPaid:         j.IsPaid,
		PaymentMethod:  string(j.PaymentMethod),
		Amount:         j.Amount.String(),
		CheckNumber:    j.CheckNumber,
		Notes:          j.Notes,
		PaymentToMe:    j.PaymentToMe,
		SequenceNumber: j.SequenceNumber,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
	if j.Billing != nil {
		resp.Billing = &billingResponse{
			InvoiceNumber: j.Billing.InvoiceNumber,
			InvoiceDate:   formatOptionalDate(j.Billing.InvoiceDate),
			DueDate:       formatOptionalDate(j.Billing.DueDate),
			ContactName:   j.Billing.ContactName,
			ContactEmail:  j.Billing.ContactEmail,
			ContactPhone:  j.Billing.ContactPhone,
		}
	}
	for _, item := range j.LineItems {
		resp.LineItems = append(resp.LineItems, lineItemResponse{
			Description: item.Description,
			Amount:      item.Amount.String(),
		})
	}
	return resp
}

func fromCoreJobs(jobs []core.Job) []jobResponse {
	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, fromCoreJob(j))
	}
	return out
}

type expensePayload struct {
	Name       string `json:"name"`
	Amount     string `json:"amount"`
	DueDate    string `json:"due_date"`
	IsPaid     bool   `json:"is_paid"`
	PaidDate   string `json:"paid_date,omitempty"`
	Category   string `json:"category"`
	Recurrence string `json:"recurrence"`
	Notes      string `json:"notes"`
}

type expenseResponse struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Amount            string    `json:"amount"`
	DueDate           string    `json:"due_date"`
	IsPaid            bool      `json:"is_paid"`
	PaidDate          string    `json:"paid_date,omitempty"`
	Category          string    `json:"category"`
	Recurrence        string    `json:"recurrence"`
	Notes             string    `json:"notes,omitempty"`
	RecurringSourceID string    `json:"recurring_source_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (p expensePayload) toCore() (core.Expense, error) {
	dueDate, err := core.ParseDate(p.DueDate)
	if err != nil {
		return core.Expense{}, err
	}
	cents, err := core.ParseDecimalToCents(p.Amount)
	if err != nil {
		return core.Expense{}, err
	}
	paidDate, err := parseOptionalDate(p.PaidDate)
	if err != nil {
		return core.Expense{}, err
	}

	return core.Expense{
		Name:       sanitizeInput(p.Name),
		Amount:     core.Money{Cents: cents},
		DueDate:    dueDate,
		IsPaid:     p.IsPaid,
		PaidDate:   paidDate,
		Category:   core.ExpenseCategory(p.Category),
		Recurrence: core.Recurrence(p.Recurrence),
		Notes:      sanitizeInput(p.Notes),
	}, nil
}

func fromCoreExpense(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:                e.ID,
		Name:              e.Name,
		Amount:            e.Amount.String(),
		DueDate:           e.DueDate.String(),
		IsPaid:            e.IsPaid,
		PaidDate:          formatOptionalDate(e.PaidDate),
		Category:          string(e.Category),
		Recurrence:        string(e.Recurrence),
		Notes:             e.Notes,
		RecurringSourceID: e.RecurringSourceID,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

func fromCoreExpenses(expenses []core.Expense) []expenseResponse {
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, fromCoreExpense(e))
	}
	return out
}

type goalPayload struct {
	WeekStart    string `json:"week_start"`
	IncomeTarget string `json:"income_target"`
	Notes        string `json:"notes"`
}

type allocationPayload struct {
	ExpenseID    string `json:"expense_id"`
	WeeklyAmount string `json:"weekly_amount"`
}

type allocationResponse struct {
	ExpenseID    string `json:"expense_id"`
	Name         string `json:"name"`
	WeeklyAmount string `json:"weekly_amount"`
	IsComplete   bool   `json:"is_complete"`
}

type goalResponse struct {
	ID           string               `json:"id"`
	WeekStart    string               `json:"week_start"`
	WeekEnd      string               `json:"week_end"`
	IncomeTarget string               `json:"income_target"`
	ActualIncome string               `json:"actual_income"`
	Allocations  []allocationResponse `json:"allocations"`
	Notes        string               `json:"notes,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

func (p goalPayload) toCore() (core.WeeklyGoal, error) {
	weekStart, err := core.ParseDate(p.WeekStart)
	if err != nil {
		return core.WeeklyGoal{}, err
	}
	cents, err := core.ParseDecimalToCents(p.IncomeTarget)
	if err != nil {
		return core.WeeklyGoal{}, err
	}
	return core.WeeklyGoal{
		WeekStart:    weekStart,
		IncomeTarget: core.Money{Cents: cents},
		Notes:        sanitizeInput(p.Notes),
	}, nil
}

func fromCoreGoal(g core.WeeklyGoal) goalResponse {
	allocations := make([]allocationResponse, 0, len(g.Allocations))
	for _, a := range g.Allocations {
		allocations = append(allocations, allocationResponse{
			ExpenseID:    a.ExpenseID,
			Name:         a.Name,
			WeeklyAmount: a.WeeklyAmount.String(),
			IsComplete:   a.IsComplete,
		})
	}
	return goalResponse{
		ID:           g.ID,
		WeekStart:    g.WeekStart.String(),
		WeekEnd:      g.WeekEnd.String(),
		IncomeTarget: g.IncomeTarget.String(),
		ActualIncome: g.ActualIncome.String(),
		Allocations:  allocations,
		Notes:        g.Notes,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
}

func fromCoreGoals(goals []core.WeeklyGoal) []goalResponse {
	out := make([]goalResponse, 0, len(goals))
	for _, g := range goals {
		out = append(out, fromCoreGoal(g))
	}
	return out
}

type profilePayload struct {
	Name           string          `json:"name"`
	Role           string          `json:"role"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	KeepsCash      bool            `json:"keeps_cash"`
	KeepsCheck     bool            `json:"keeps_check"`
}

type profileResponse struct {
	Name           string          `json:"name"`
	Role           string          `json:"role"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	KeepsCash      bool            `json:"keeps_cash"`
	KeepsCheck     bool            `json:"keeps_check"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (p profilePayload) toCore() core.Profile {
	return core.Profile{
		Name:           sanitizeInput(p.Name),
		Role:           core.Role(p.Role),
		CommissionRate: p.CommissionRate,
		KeepsCash:      p.KeepsCash,
		KeepsCheck:     p.KeepsCheck,
	}
}

func fromCoreProfile(p core.Profile) profileResponse {
	return profileResponse{
		Name:           p.Name,
		Role:           string(p.Role),
		CommissionRate: p.CommissionRate,
		KeepsCash:      p.KeepsCash,
		KeepsCheck:     p.KeepsCheck,
		UpdatedAt:      p.UpdatedAt,
	}
}

type dayTotalResponse struct {
	Date     string `json:"date"`
	JobCount int    `json:"job_count"`
	Total    string `json:"total"`
	Unpaid   string `json:"unpaid"`
}

type weekTotalResponse struct {
	From     string `json:"from"`
	To       string `json:"to"`
	JobCount int    `json:"job_count"`
	Total    string `json:"total"`
	Unpaid   string `json:"unpaid"`
}

type monthTotalResponse struct {
	Month    int    `json:"month"`
	JobCount int    `json:"job_count"`
	Total    string `json:"total"`
	Unpaid   string `json:"unpaid"`
}

type earningsResponse struct {
	Gross     string `json:"gross"`
	Unpaid    string `json:"unpaid"`
	Cash      string `json:"cash"`
	Checks    string `json:"checks"`
	OtherToMe string `json:"other_to_me"`
	JobCount  int    `json:"job_count"`
	PaidJobs  int    `json:"paid_jobs"`
	Pay       string `json:"pay"`
	Expenses  string `json:"expenses"`
	Bills     string `json:"bills"`
	Net       string `json:"net"`
}

type goalProgressResponse struct {
	GoalID    string  `json:"goal_id"`
	Target    string  `json:"target"`
	Actual    string  `json:"actual"`
	Remaining string  `json:"remaining"`
	Percent   float64 `json:"percent"`
}

type weeklySummaryResponse struct {
	WeekStart string                `json:"week_start"`
	WeekEnd   string                `json:"week_end"`
	Days      []dayTotalResponse    `json:"days"`
	Earnings  earningsResponse      `json:"earnings"`
	Goal      *goalProgressResponse `json:"goal,omitempty"`
}

type categoryAmountResponse struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
}

type monthlySummaryResponse struct {
	Year       int                      `json:"year"`
	Month      int                      `json:"month"`
	Weeks      []weekTotalResponse      `json:"weeks"`
	Earnings   earningsResponse         `json:"earnings"`
	Categories []categoryAmountResponse `json:"expense_categories"`
}

type yearlySummaryResponse struct {
	Year       int                      `json:"year"`
	Months     []monthTotalResponse     `json:"months"`
	Earnings   earningsResponse         `json:"earnings"`
	Categories []categoryAmountResponse `json:"expense_categories"`
}

type billSuggestionResponse struct {
	ExpenseID string `json:"expense_id"`
	Name      string `json:"name"`
	Amount    string `json:"amount"`
	DueDate   string `json:"due_date"`
}

type paymentPlanResponse struct {
	WeekStart   string                   `json:"week_start"`
	WeekEnd     string                   `json:"week_end"`
	Available   string                   `json:"available"`
	Suggestions []billSuggestionResponse `json:"suggestions"`
	Leftover    string                   `json:"leftover"`
}

func fromCoreEarnings(e core.EarningsFigures) earningsResponse {
	return earningsResponse{
		Gross:     e.Totals.Gross.String(),
		Unpaid:    e.Totals.Unpaid.String(),
		Cash:      e.Totals.Cash.String(),
		Checks:    e.Totals.Checks.String(),
		OtherToMe: e.Totals.OtherToMe.String(),
		JobCount:  e.Totals.JobCount,
		PaidJobs:  e.Totals.PaidJobs,
		Pay:       e.Pay.String(),
		Expenses:  e.Expenses.String(),
		Bills:     e.Bills.String(),
		Net:       e.Net.String(),
	}
}

func fromCoreWeeklySummary(s core.WeeklySummary) weeklySummaryResponse {
	days := make([]dayTotalResponse, 0, len(s.Days))
	for _, d := range s.Days {
		days = append(days, dayTotalResponse{
			Date:     d.Date.String(),
			JobCount: d.JobCount,
			Total:    d.Total.String(),
			Unpaid:   d.Unpaid.String(),
		})
	}
	resp := weeklySummaryResponse{
		WeekStart: s.WeekStart.String(),
		WeekEnd:   s.WeekEnd.String(),
		Days:      days,
		Earnings:  fromCoreEarnings(s.Earnings),
	}
	if s.Goal != nil {
		resp.Goal = &goalProgressResponse{
			GoalID:    s.Goal.GoalID,
			Target:    s.Goal.Target.String(),
			Actual:    s.Goal.Actual.String(),
			Remaining: s.Goal.Remaining.String(),
			Percent:   s.Goal.Percent,
		}
	}
	return resp
}

func fromCoreMonthlySummary(s core.MonthlySummary) monthlySummaryResponse {
	weeks := make([]weekTotalResponse, 0, len(s.Weeks))
	for _, w := range s.Weeks {
		weeks = append(weeks, weekTotalResponse{
			From:     w.From.String(),
			To:       w.To.String(),
			JobCount: w.JobCount,
			Total:    w.Total.String(),
			Unpaid:   w.Unpaid.String(),
		})
	}
	return monthlySummaryResponse{
		Year:       s.Year,
		Month:      s.Month,
		Weeks:      weeks,
		Earnings:   fromCoreEarnings(s.Earnings),
		Categories: fromCoreCategories(s.Categories),
	}
}

func fromCoreCategories(categories []core.CategoryAmount) []categoryAmountResponse {
	out := make([]categoryAmountResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryAmountResponse{
			Category: string(c.Category),
			Amount:   c.Amount.String(),
		})
	}
	return out
}

func fromCoreYearlySummary(s core.YearlySummary) yearlySummaryResponse {
	months := make([]monthTotalResponse, 0, len(s.Months))
	for _, m := range s.Months {
		months = append(months, monthTotalResponse{
			Month:    m.Month,
			JobCount: m.JobCount,
			Total:    m.Total.String(),
			Unpaid:   m.Unpaid.String(),
		})
	}
	return yearlySummaryResponse{
		Year:       s.Year,
		Months:     months,
		Earnings:   fromCoreEarnings(s.Earnings),
		Categories: fromCoreCategories(s.Categories),
	}
}

func fromCorePaymentPlan(p services.PaymentPlan) paymentPlanResponse {
	suggestions := make([]billSuggestionResponse, 0, len(p.Suggestions))
	for _, sg := range p.Suggestions {
		suggestions = append(suggestions, billSuggestionResponse{
			ExpenseID: sg.ExpenseID,
			Name:      sg.Name,
			Amount:    sg.Amount.String(),
			DueDate:   sg.DueDate.String(),
		})
	}
	return paymentPlanResponse{
		WeekStart:   p.WeekStart.String(),
		WeekEnd:     p.WeekEnd.String(),
		Available:   p.Available.String(),
		Suggestions: suggestions,
		Leftover:    p.Leftover.String(),
	}
}

func parseOptionalDate(s string) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}

func formatOptionalDate(d core.Date) string {
	if d.IsEmpty() {
		return ""
	}
	return d.String()
}
