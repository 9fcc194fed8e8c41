package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Cash   PaymentMethod = "cash"
	Check  PaymentMethod = "check"
	Zelle  PaymentMethod = "zelle"
	Square PaymentMethod = "square"
	Charge PaymentMethod = "charge"
)

const (
	Fixed    ExpenseCategory = "fixed"
	Variable ExpenseCategory = "variable"
	Business ExpenseCategory = "business"
	Personal ExpenseCategory = "personal"
	Other    ExpenseCategory = "other"
)

const (
	OneTime   Recurrence = "one_time"
	Monthly   Recurrence = "monthly"
	Quarterly Recurrence = "quarterly"
	Yearly    Recurrence = "yearly"
)

const (
	RoleOwner    Role = "owner"
	RoleEmployee Role = "employee"
)

type (
	PaymentMethod   string
	ExpenseCategory string
	Recurrence      string
	Role            string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// BillingDetails carries the invoicing info attached to a job when the
	// customer is billed instead of paying on site.
	BillingDetails struct {
		InvoiceNumber string
		InvoiceDate   Date
		DueDate       Date
		ContactName   string
		ContactEmail  string
		ContactPhone  string
	}

	// LineItem is a job-level expense (fuel, pump rental, extra labor).
	LineItem struct {
		Description string
		Amount      Money
	}

	Job struct {
		ID            string
		Date          Date
		CompanyName   string
		Address       string
		City          string
		Yards         float64
		IsPaid        bool
		PaymentMethod PaymentMethod
		Amount        Money
		CheckNumber   string
		Notes         string
		// SequenceNumber orders jobs within the same day for display.
		// It is assigned at read time and never stored.
		SequenceNumber int
		Billing        *BillingDetails
		LineItems      []LineItem
		// PaymentToMe marks payments handed directly to the worker,
		// bypassing normal remittance to the company.
		PaymentToMe bool
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	Expense struct {
		ID         string
		Name       string
		Amount     Money
		DueDate    Date
		IsPaid     bool
		PaidDate   Date
		Category   ExpenseCategory
		Recurrence Recurrence
		Notes      string
		// RecurringSourceID points at the expense this one was spawned
		// from, chaining recurring occurrences together.
		RecurringSourceID string
		CreatedAt         time.Time
		UpdatedAt         time.Time
	}

	// BillAllocation assigns a slice of a bill to a week.
	BillAllocation struct {
		ExpenseID    string
		Name         string
		WeeklyAmount Money
		IsComplete   bool
	}

	WeeklyGoal struct {
		ID           string
		WeekStart    Date
		WeekEnd      Date
		IncomeTarget Money
		// ActualIncome is derived from paid jobs dated within the week
		// and overwritten whenever the goal is recomputed.
		ActualIncome Money
		Allocations  []BillAllocation
		Notes        string
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	Profile struct {
		ID   string
		Name string
		Role Role
		// CommissionRate is the employee's share of gross, in [0, 1].
		CommissionRate decimal.Decimal
		// KeepsCash / KeepsCheck control whether direct cash/check
		// payments the worker already holds are netted out of the payout.
		KeepsCash  bool
		KeepsCheck bool
		UpdatedAt  time.Time
	}
)

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidDate          = errors.New("invalid date")
	ErrEmptyName            = errors.New("empty name")
	ErrEmptyAddress         = errors.New("empty address")
	ErrInvalidYards         = errors.New("invalid yards")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidCategory      = errors.New("invalid category")
	ErrInvalidRecurrence    = errors.New("invalid recurrence")
	ErrInvalidRole          = errors.New("invalid role")
	ErrInvalidRate          = errors.New("invalid commission rate")
	ErrInvalidWeek          = errors.New("invalid week range")
	// ErrInvalidInput covers validation failures without a dedicated
	// sentinel, like over-long fields or inconsistent paid state.
	ErrInvalidInput = errors.New("invalid input")
)

func (pm PaymentMethod) Validate() error {
	switch pm {
	case Cash, Check, Zelle, Square, Charge:
		return nil
	default:
		return ErrInvalidPaymentMethod
	}
}

func (c ExpenseCategory) Validate() error {
	switch c {
	case Fixed, Variable, Business, Personal, Other:
		return nil
	default:
		return ErrInvalidCategory
	}
}

func (r Recurrence) Validate() error {
	switch r {
	case OneTime, Monthly, Quarterly, Yearly:
		return nil
	default:
		return ErrInvalidRecurrence
	}
}

func (r Role) Validate() error {
	switch r {
	case RoleOwner, RoleEmployee:
		return nil
	default:
		return ErrInvalidRole
	}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a date in the 2006-01-02 wire format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t.UTC()}, nil
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// IsEmpty returns true if the date is zero (optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Within reports whether d falls inside [from, to], inclusive on both ends.
func (d Date) Within(from, to Date) bool {
	return !d.Before(from.Time) && !d.After(to.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

func (m Money) Sub(other Money) Money {
	return Money{Cents: m.Cents - other.Cents}
}

func (j Job) Validate() error {
	if err := j.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(j.Address)) == 0 {
		return ErrEmptyAddress
	}
	if len(j.Address) > 200 {
		return fmt.Errorf("%w: address exceeds 200 characters", ErrInvalidInput)
	}
	if j.Yards < 0 {
		return ErrInvalidYards
	}
	if err := j.PaymentMethod.Validate(); err != nil {
		return err
	}
	if j.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	for _, item := range j.LineItems {
		if len(strings.TrimSpace(item.Description)) == 0 {
			return ErrEmptyName
		}
		if err := item.Amount.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Name)) == 0 {
		return ErrEmptyName
	}
	if len(e.Name) > 200 {
		return fmt.Errorf("%w: name exceeds 200 characters", ErrInvalidInput)
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.DueDate.Validate(); err != nil {
		return err
	}
	if err := e.Category.Validate(); err != nil {
		return err
	}
	if err := e.Recurrence.Validate(); err != nil {
		return err
	}
	if e.IsPaid && e.PaidDate.IsEmpty() {
		return fmt.Errorf("%w: paid expense requires a paid date", ErrInvalidInput)
	}
	if !e.IsPaid && !e.PaidDate.IsEmpty() {
		return fmt.Errorf("%w: unpaid expense cannot have a paid date", ErrInvalidInput)
	}
	return nil
}

func (g WeeklyGoal) Validate() error {
	if err := g.WeekStart.Validate(); err != nil {
		return err
	}
	if g.WeekStart.Weekday() != time.Sunday {
		return ErrInvalidWeek
	}
	if !g.WeekEnd.Equal(g.WeekStart.AddDays(6).Time) {
		return ErrInvalidWeek
	}
	if g.IncomeTarget.Cents < 0 {
		return ErrInvalidAmount
	}
	for _, a := range g.Allocations {
		if len(strings.TrimSpace(a.Name)) == 0 {
			return ErrEmptyName
		}
		if err := a.WeeklyAmount.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (p Profile) Validate() error {
	if len(strings.TrimSpace(p.Name)) == 0 {
		return ErrEmptyName
	}
	if err := p.Role.Validate(); err != nil {
		return err
	}
	if p.CommissionRate.IsNegative() || p.CommissionRate.GreaterThan(decimal.NewFromInt(1)) {
		return ErrInvalidRate
	}
	return nil
}
