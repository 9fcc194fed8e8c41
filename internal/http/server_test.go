package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"jobledger/internal/core"
	"jobledger/internal/memory"
	"jobledger/internal/services"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st := memory.New()
	srv := NewServer(":0", Deps{
		Jobs:      services.NewJobService(st, st, nil),
		Expenses:  services.NewExpenseService(st),
		Goals:     services.NewGoalService(st, st, st),
		Profiles:  services.NewProfileService(st),
		Summaries: services.NewSummaryService(st, st, st, st),
		DB:        st,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func validJob(date string) map[string]any {
	return map[string]any{
		"date":           date,
		"company_name":   "Apex Concrete",
		"address":        "214 Quarry Rd",
		"city":           "Mesa",
		"yards":          8.5,
		"is_paid":        true,
		"payment_method": "cash",
		"amount":         "950.00",
	}
}

func TestHealthAndReadiness(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("healthz body=%s", rr.Body.String())
	}

	// The queue is nil here: export disabled is a valid configuration
	// and must not fail readiness.
	rr = doJSON(t, srv, http.MethodGet, "/readyz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	if !strings.Contains(body, `"status":"ready"`) {
		t.Fatalf("readyz body=%s", body)
	}
	if !strings.Contains(body, `"queue":"not_configured"`) {
		t.Fatalf("readyz should report queue not_configured, body=%s", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/v1/jobs", validJob("2026-03-02"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create job status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"http_requests_total",
		"jobs_created_total 1",
		"expenses_created_total 0",
		"uptime_seconds",
		"cache_entries{type=\"summary\"}",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestJobLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/v1/jobs", validJob("2026-03-02"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decode[jobResponse](t, rr)
	if created.ID == "" {
		t.Fatalf("created job has no id")
	}
	if created.Amount != "950.00" || created.Date != "2026-03-02" {
		t.Fatalf("created job = %+v", created)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/v1/jobs/"+created.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}
	got := decode[jobResponse](t, rr)
	if got.CompanyName != "Apex Concrete" || got.Address != "214 Quarry Rd" {
		t.Fatalf("get = %+v", got)
	}

	update := validJob("2026-03-02")
	update["amount"] = "1025.50"
	update["is_paid"] = false
	update["payment_method"] = "charge"
	rr = doJSON(t, srv, http.MethodPut, "/api/v1/jobs/"+created.ID, update)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	updated := decode[jobResponse](t, rr)
	if updated.Amount != "1025.50" || updated.IsPaid {
		t.Fatalf("update = %+v", updated)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/v1/jobs/"+created.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/v1/jobs/"+created.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status=%d", rr.Code)
	}
}

func TestUpdateMissingJob(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPut, "/api/v1/jobs/no-such-job", validJob("2026-03-02"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "not_found") {
		t.Fatalf("body=%s", rr.Body.String())
	}
}

func TestCreateJobValidation(t *testing.T) {
	srv := newTestServer(t)

	mutate := func(key string, value any) map[string]any {
		payload := validJob("2026-03-02")
		payload[key] = value
		return payload
	}

	cases := []struct {
		name    string
		payload map[string]any
	}{
		{"missing address", mutate("address", "")},
		{"bad payment method", mutate("payment_method", "crypto")},
		{"bad amount", mutate("amount", "abc")},
		{"negative amount", mutate("amount", "-10.00")},
		{"bad date", mutate("date", "03/02/2026")},
		{"negative yards", mutate("yards", -1.0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, srv, http.MethodPost, "/api/v1/jobs", tc.payload)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
		})
	}

	// Malformed JSON body
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("malformed json status=%d", rr.Code)
	}
}

func TestZeroAmountJobAllowed(t *testing.T) {
	srv := newTestServer(t)

	payload := validJob("2026-03-02")
	payload["amount"] = "0"
	payload["notes"] = "warranty callback"
	rr := doJSON(t, srv, http.MethodPost, "/api/v1/jobs", payload)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decode[jobResponse](t, rr)
	if created.Amount != "0.00" {
		t.Fatalf("amount=%s", created.Amount)
	}
}

func TestListJobsByDayAssignsSequenceNumbers(t *testing.T) {
	srv := newTestServer(t)

	first := validJob("2026-03-02")
	second := validJob("2026-03-02")
	second["company_name"] = "Mesa Homes"
	second["address"] = "77 Canal St"
	other := validJob("2026-03-03")

	for _, payload := range []map[string]any{first, second, other} {
		if rr := doJSON(t, srv, http.MethodPost, "/api/v1/jobs", payload); rr.Code != http.StatusCreated {
			t.Fatalf("seed status=%d body=%s", rr.Code, rr.Body.String())
		}
	}

	rr := doJSON(t, srv, http.MethodGet, "/api/v1/jobs?date=2026-03-02", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	jobs := decode[[]jobResponse](t, rr)
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].SequenceNumber != 1 || jobs[1].SequenceNumber != 2 {
		t.Fatalf("sequence numbers = %d, %d", jobs[0].SequenceNumber, jobs[1].SequenceNumber)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/v1/jobs?from=2026-03-01&to=2026-03-07", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("range status=%d", rr.Code)
	}
	if jobs := decode[[]jobResponse](t, rr); len(jobs) != 3 {
		t.Fatalf("expected 3 jobs in range, got %d", len(jobs))
	}
}

func TestListJobsRequiresRange(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/api/v1/jobs", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("no params status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/v1/jobs?from=2026-03-01", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("one-sided range status=%d", rr.Code)
	}

	// Inverted range
	rr = doJSON(t, srv, http.MethodGet, "/api/v1/jobs?from=2026-03-07&to=2026-03-01", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("inverted range status=%d", rr.Code)
	}
}

func TestUnpaidAndSearchJobs(t *testing.T) {
	srv := newTestServer(t)

	paid := validJob("2026-03-02")
	unpaid := validJob("2026-03-03")
	unpaid["company_name"] = "Riverside Builders"
	unpaid["address"] = "9 Dock Rd"
	unpaid["is_paid"] = false
	unpaid["payment_method"] = "charge"
	for _, payload := range []map[string]any{paid, unpaid} {
		if rr := doJSON(t, srv, http.MethodPost, "/api/v1/jobs", payload); rr.Code != http.StatusCreated {
			t.Fatalf("seed status=%d", rr.Code)
		}
	}

	rr := doJSON(t, srv, http.MethodGet, "/api/v1/jobs/unpaid", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("unpaid status=%d", rr.Code)
	}
	jobs := decode[[]jobResponse](t, rr)
	if len(jobs) != 1 || jobs[0].CompanyName != "Riverside Builders" {
		t.Fatalf("unpaid = %+v", jobs)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/v1/jobs/search?q=riverside", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("search status=%d", rr.Code)
	}
	if jobs := decode[[]jobResponse](t, rr); len(jobs) != 1 {
		t.Fatalf("search hits = %d", len(jobs))
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/v1/jobs/search", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("search without q status=%d", rr.Code)
	}
}

func TestJobBillingAndLineItems(t *testing.T) {
	srv := newTestServer(t)

	payload := validJob("2026-03-02")
	payload["is_paid"] = false
	payload["payment_method"] = "charge"
	payload["billing"] = map[string]any{
		"invoice_number": "INV-0042",
		"invoice_date":   "2026-03-02",
		"due_date":       "2026-04-01",
		"contact_name":   "Dana Reyes",
		"contact_email":  "dana@apexconcrete.example",
	}
	payload["line_items"] = []map[string]any{
		{"description": "Pump truck", "amount": "250.00"},
		{"description": "Fiber mesh", "amount": "75.00"},
	}

	rr := doJSON(t, srv, http.MethodPost, "/api/v1/jobs", payload)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decode[jobResponse](t, rr)
	if created.Billing == nil || created.Billing.InvoiceNumber != "INV-0042" {
		t.Fatalf("billing = %+v", created.Billing)
	}
	if len(created.LineItems) != 2 || created.LineItems[0].Amount != "250.00" {
		t.Fatalf("line items = %+v", created.LineItems)
	}

	// Line item amounts must be positive.
	payload["line_items"] = []map[string]any{{"description": "Pump truck", "amount": "0"}}
	rr = doJSON(t, srv, http.MethodPost, "/api/v1/jobs", payload)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("zero line item status=%d", rr.Code)
	}
}

func validExpense() map[string]any {
	return map[string]any{
		"name":       "Shop rent",
		"amount":     "400.00",
		"due_date":   "2026-03-20",
		"category":   "fixed",
		"recurrence": "monthly",
	}
}

func TestExpenseLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/v1/expenses", validExpense())
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decode[expenseResponse](t, rr)
	if created.ID == "" || created.IsPaid {
		t.Fatalf("created = %+v", created)
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/v1/expenses/"+created.ID+"/pay",
		map[string]any{"paid_date": "2026-03-18"})
	if rr.Code != http.StatusOK {
		t.Fatalf("pay status=%d body=%s", rr.Code, rr.Body.String())
	}
	paid := decode[expenseResponse](t, rr)
	if !paid.IsPaid || paid.PaidDate != "2026-03-18" {
		t.Fatalf("paid = %+v", paid)
	}

	update := validExpense()
	update["amount"] = "425.00"
	update["notes"] = "rent increase"
	rr = doJSON(t, srv, http.MethodPut, "/api/v1/expenses/"+created.ID, update)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	if updated := decode[expenseResponse](t, rr); updated.Amount != "425.00" {
		t.Fatalf("updated = %+v", updated)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/v1/expenses/"+created.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodGet, "/api/v1/expenses/"+created.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status=%d", rr.Code)
	}
}

func TestExpenseUnpaidFlipClearsPaidDate(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/v1/expenses", validExpense())
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decode[expenseResponse](t, rr)

	rr = doJSON(t, srv, http.MethodPost, "/api/v1/expenses/"+created.ID+"/pay",
		map[string]any{"paid_date": "2026-03-05"})
	if rr.Code != http.StatusOK {
		t.Fatalf("pay status=%d body=%s", rr.Code, rr.Body.String())
	}

	// Round-trip the paid record with is_paid flipped off, paid_date
	// still set: the server clears the date instead of rejecting.
	update := validExpense()
	update["is_paid"] = false
	update["paid_date"] = "2026-03-05"
	rr = doJSON(t, srv, http.MethodPut, "/api/v1/expenses/"+created.ID, update)
	if rr.Code != http.StatusOK {
		t.Fatalf("unpaid flip status=%d body=%s", rr.Code, rr.Body.String())
	}
	updated := decode[expenseResponse](t, rr)
	if updated.IsPaid || updated.PaidDate != "" {
		t.Fatalf("updated = %+v", updated)
	}
}

func TestExpenseValidation(t *testing.T) {
	srv := newTestServer(t)

	mutate := func(key string, value any) map[string]any {
		payload := validExpense()
		payload[key] = value
		return payload
	}

	cases := []struct {
		name    string
		payload map[string]any
	}{
		{"missing name", mutate("name", "")},
		{"zero amount", mutate("amount", "0")},
		{"bad category", mutate("category", "misc")},
		{"bad recurrence", mutate("recurrence", "weekly")},
		{"paid without paid date", mutate("is_paid", true)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, srv, http.MethodPost, "/api/v1/expenses", tc.payload)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestPayExpenseWithoutBody(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/v1/expenses", validExpense())
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d", rr.Code)
	}
	created := decode[expenseResponse](t, rr)

	// No body at all: paid today.
	rr = doJSON(t, srv, http.MethodPost, "/api/v1/expenses/"+created.ID+"/pay", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("pay status=%d body=%s", rr.Code, rr.Body.String())
	}
	paid := decode[expenseResponse](t, rr)
	if !paid.IsPaid || paid.PaidDate != core.DateOf(time.Now()).String() {
		t.Fatalf("paid = %+v", paid)
	}
}

func TestUpcomingExpenses(t *testing.T) {
	srv := newTestServer(t)

	soon := validExpense()
	soon["name"] = "Truck insurance"
	soon["due_date"] = core.DateOf(time.Now()).AddDays(5).String()
	far := validExpense()
	far["name"] = "Annual license"
	far["due_date"] = core.DateOf(time.Now()).AddDays(90).String()
	for _, payload := range []map[string]any{soon, far} {
		if rr := doJSON(t, srv, http.MethodPost, "/api/v1/expenses", payload); rr.Code != http.StatusCreated {
			t.Fatalf("seed status=%d", rr.Code)
		}
	}

	rr := doJSON(t, srv, http.MethodGet, "/api/v1/expenses/upcoming", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("upcoming status=%d", rr.Code)
	}
	upcoming := decode[[]expenseResponse](t, rr)
	if len(upcoming) != 1 || upcoming[0].Name != "Truck insurance" {
		t.Fatalf("upcoming = %+v", upcoming)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/v1/expenses/upcoming?days=120", nil)
	if upcoming := decode[[]expenseResponse](t, rr); len(upcoming) != 2 {
		t.Fatalf("upcoming 120 days = %+v", upcoming)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/v1/expenses/upcoming?days=-1", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("negative days status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodGet, "/api/v1/expenses/upcoming?days=abc", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("malformed days status=%d", rr.Code)
	}
}

func TestGoalLifecycle(t *testing.T) {
	srv := newTestServer(t)

	// 2026-03-01 is a Sunday.
	rr := doJSON(t, srv, http.MethodPost, "/api/v1/goals", map[string]any{
		"week_start":    "2026-03-01",
		"income_target": "2000.00",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	goal := decode[goalResponse](t, rr)
	if goal.WeekEnd != "2026-03-07" {
		t.Fatalf("week_end=%s", goal.WeekEnd)
	}
	if goal.IncomeTarget != "2000.00" || goal.ActualIncome != "0.00" {
		t.Fatalf("goal = %+v", goal)
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/v1/expenses", validExpense())
	if rr.Code != http.StatusCreated {
		t.Fatalf("seed expense status=%d", rr.Code)
	}
	bill := decode[expenseResponse](t, rr)

	rr = doJSON(t, srv, http.MethodPost, "/api/v1/goals/"+goal.ID+"/bills", map[string]any{
		"expense_id":    bill.ID,
		"weekly_amount": "100.00",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("allocate status=%d body=%s", rr.Code, rr.Body.String())
	}
	allocated := decode[goalResponse](t, rr)
	if len(allocated.Allocations) != 1 {
		t.Fatalf("allocations = %+v", allocated.Allocations)
	}
	a := allocated.Allocations[0]
	if a.ExpenseID != bill.ID || a.Name != "Shop rent" || a.WeeklyAmount != "100.00" || a.IsComplete {
		t.Fatalf("allocation = %+v", a)
	}

	// Reallocating the same bill replaces, not appends.
	rr = doJSON(t, srv, http.MethodPost, "/api/v1/goals/"+goal.ID+"/bills", map[string]any{
		"expense_id":    bill.ID,
		"weekly_amount": "150.00",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("reallocate status=%d", rr.Code)
	}
	allocated = decode[goalResponse](t, rr)
	if len(allocated.Allocations) != 1 || allocated.Allocations[0].WeeklyAmount != "150.00" {
		t.Fatalf("reallocation = %+v", allocated.Allocations)
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/v1/goals/"+goal.ID+"/bills/"+bill.ID+"/complete", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("complete status=%d body=%s", rr.Code, rr.Body.String())
	}
	completed := decode[goalResponse](t, rr)
	if !completed.Allocations[0].IsComplete {
		t.Fatalf("allocation not complete: %+v", completed.Allocations)
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/v1/goals/"+goal.ID+"/bills/no-such-bill/complete", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("complete unknown bill status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/v1/goals/"+goal.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodGet, "/api/v1/goals/"+goal.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status=%d", rr.Code)
	}
}

func TestGoalUpdateKeepsAllocations(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/v1/goals", map[string]any{
		"week_start":    "2026-03-01",
		"income_target": "2000.00",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	goal := decode[goalResponse](t, rr)

	rr = doJSON(t, srv, http.MethodPost, "/api/v1/expenses", validExpense())
	if rr.Code != http.StatusCreated {
		t.Fatalf("seed expense status=%d", rr.Code)
	}
	bill := decode[expenseResponse](t, rr)

	rr = doJSON(t, srv, http.MethodPost, "/api/v1/goals/"+goal.ID+"/bills", map[string]any{
		"expense_id":    bill.ID,
		"weekly_amount": "100.00",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("allocate status=%d body=%s", rr.Code, rr.Body.String())
	}

	// Bumping the target must not touch the allocations.
	rr = doJSON(t, srv, http.MethodPut, "/api/v1/goals/"+goal.ID, map[string]any{
		"week_start":    "2026-03-01",
		"income_target": "1800.00",
		"notes":         "short week",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	updated := decode[goalResponse](t, rr)
	if updated.IncomeTarget != "1800.00" || updated.Notes != "short week" {
		t.Fatalf("updated = %+v", updated)
	}
	if len(updated.Allocations) != 1 || updated.Allocations[0].ExpenseID != bill.ID {
		t.Fatalf("allocations = %+v", updated.Allocations)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/v1/goals/"+goal.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}
	fetched := decode[goalResponse](t, rr)
	if len(fetched.Allocations) != 1 || fetched.Allocations[0].WeeklyAmount != "100.00" {
		t.Fatalf("fetched allocations = %+v", fetched.Allocations)
	}
}

func TestGoalValidation(t *testing.T) {
	srv := newTestServer(t)

	// 2026-03-02 is a Monday; weeks start on Sunday.
	rr := doJSON(t, srv, http.MethodPost, "/api/v1/goals", map[string]any{
		"week_start":    "2026-03-02",
		"income_target": "2000.00",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("non-sunday status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/v1/goals", map[string]any{
		"week_start":    "2026-03-01",
		"income_target": "0",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("zero target status=%d", rr.Code)
	}
}

func TestCurrentGoal(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/api/v1/goals/current", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("current with no goal status=%d", rr.Code)
	}

	weekStart := core.WeekStart(core.DateOf(time.Now()))
	rr = doJSON(t, srv, http.MethodPost, "/api/v1/goals", map[string]any{
		"week_start":    weekStart.String(),
		"income_target": "1800.00",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}

	// A paid job this week counts toward the goal.
	job := validJob(weekStart.String())
	job["amount"] = "450.00"
	if rr := doJSON(t, srv, http.MethodPost, "/api/v1/jobs", job); rr.Code != http.StatusCreated {
		t.Fatalf("seed job status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/v1/goals/current", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("current status=%d body=%s", rr.Code, rr.Body.String())
	}
	goal := decode[goalResponse](t, rr)
	if goal.WeekStart != weekStart.String() || goal.ActualIncome != "450.00" {
		t.Fatalf("current goal = %+v", goal)
	}
}

func TestListGoals(t *testing.T) {
	srv := newTestServer(t)

	for _, weekStart := range []string{"2026-03-01", "2026-03-08", "2026-03-15"} {
		rr := doJSON(t, srv, http.MethodPost, "/api/v1/goals", map[string]any{
			"week_start":    weekStart,
			"income_target": "2000.00",
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("seed %s status=%d", weekStart, rr.Code)
		}
	}

	rr := doJSON(t, srv, http.MethodGet, "/api/v1/goals?limit=2", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	if goals := decode[[]goalResponse](t, rr); len(goals) != 2 {
		t.Fatalf("goals = %d", len(goals))
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/v1/goals?limit=0", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("zero limit status=%d", rr.Code)
	}
}

func TestProfileRoundtrip(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/api/v1/profile", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unset profile status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodPut, "/api/v1/profile", map[string]any{
		"name":            "Sal",
		"role":            "employee",
		"commission_rate": "0.35",
		"keeps_cash":      true,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("save status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/v1/profile", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}
	profile := decode[profileResponse](t, rr)
	if profile.Role != "employee" || !profile.KeepsCash {
		t.Fatalf("profile = %+v", profile)
	}
	if profile.CommissionRate.String() != "0.35" {
		t.Fatalf("commission_rate = %s", profile.CommissionRate)
	}

	rr = doJSON(t, srv, http.MethodPut, "/api/v1/profile", map[string]any{
		"name": "Sal", "role": "manager", "commission_rate": "0.35",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad role status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodPut, "/api/v1/profile", map[string]any{
		"name": "Sal", "role": "employee", "commission_rate": "1.5",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("rate above 1 status=%d", rr.Code)
	}
}

// seedWeek loads the week of 2026-03-01 with two jobs, a paid expense,
// and a goal carrying one bill allocation. The paid job's cash went
// straight to the worker.
func seedWeek(t *testing.T, srv *Server) {
	t.Helper()

	paid := validJob("2026-03-02")
	paid["amount"] = "1000.00"
	paid["payment_to_me"] = true
	unpaid := validJob("2026-03-03")
	unpaid["company_name"] = "Mesa Homes"
	unpaid["amount"] = "500.00"
	unpaid["is_paid"] = false
	unpaid["payment_method"] = "charge"
	for _, payload := range []map[string]any{paid, unpaid} {
		if rr := doJSON(t, srv, http.MethodPost, "/api/v1/jobs", payload); rr.Code != http.StatusCreated {
			t.Fatalf("seed job status=%d body=%s", rr.Code, rr.Body.String())
		}
	}

	insurance := map[string]any{
		"name":       "Insurance",
		"amount":     "200.00",
		"due_date":   "2026-03-03",
		"is_paid":    true,
		"paid_date":  "2026-03-03",
		"category":   "business",
		"recurrence": "monthly",
	}
	if rr := doJSON(t, srv, http.MethodPost, "/api/v1/expenses", insurance); rr.Code != http.StatusCreated {
		t.Fatalf("seed insurance status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr := doJSON(t, srv, http.MethodPost, "/api/v1/expenses", validExpense())
	if rr.Code != http.StatusCreated {
		t.Fatalf("seed rent status=%d", rr.Code)
	}
	rent := decode[expenseResponse](t, rr)

	rr = doJSON(t, srv, http.MethodPost, "/api/v1/goals", map[string]any{
		"week_start":    "2026-03-01",
		"income_target": "2000.00",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("seed goal status=%d", rr.Code)
	}
	goal := decode[goalResponse](t, rr)

	rr = doJSON(t, srv, http.MethodPost, "/api/v1/goals/"+goal.ID+"/bills", map[string]any{
		"expense_id":    rent.ID,
		"weekly_amount": "100.00",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("seed allocation status=%d", rr.Code)
	}
}

func TestWeeklySummary(t *testing.T) {
	srv := newTestServer(t)
	seedWeek(t, srv)

	rr := doJSON(t, srv, http.MethodGet, "/api/v1/summary/weekly?date=2026-03-04", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("weekly status=%d body=%s", rr.Code, rr.Body.String())
	}
	summary := decode[weeklySummaryResponse](t, rr)

	if summary.WeekStart != "2026-03-01" || summary.WeekEnd != "2026-03-07" {
		t.Fatalf("week = %s..%s", summary.WeekStart, summary.WeekEnd)
	}
	if len(summary.Days) != 7 {
		t.Fatalf("days = %d", len(summary.Days))
	}
	monday := summary.Days[1]
	if monday.Date != "2026-03-02" || monday.JobCount != 1 || monday.Total != "1000.00" {
		t.Fatalf("monday = %+v", monday)
	}

	e := summary.Earnings
	if e.Gross != "1500.00" || e.Unpaid != "500.00" || e.JobCount != 2 || e.PaidJobs != 1 {
		t.Fatalf("totals = %+v", e)
	}
	// No profile saved: owner by default, pay equals gross.
	if e.Pay != "1500.00" || e.Expenses != "200.00" || e.Bills != "100.00" || e.Net != "1200.00" {
		t.Fatalf("earnings = %+v", e)
	}

	if summary.Goal == nil {
		t.Fatalf("goal progress missing")
	}
	g := summary.Goal
	if g.Target != "2000.00" || g.Actual != "1000.00" || g.Remaining != "1000.00" || g.Percent != 50 {
		t.Fatalf("goal = %+v", g)
	}
}

func TestWeeklySummaryEmployeePay(t *testing.T) {
	srv := newTestServer(t)
	seedWeek(t, srv)

	// Commissioned employee at 35% who keeps cash handed to them on site:
	// 1500 * 0.35 - 1000 cash = -475. Negative pay means they owe back.
	rr := doJSON(t, srv, http.MethodPut, "/api/v1/profile", map[string]any{
		"name":            "Sal",
		"role":            "employee",
		"commission_rate": "0.35",
		"keeps_cash":      true,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("save profile status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/v1/summary/weekly?date=2026-03-04", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("weekly status=%d", rr.Code)
	}
	summary := decode[weeklySummaryResponse](t, rr)
	if summary.Earnings.Cash != "1000.00" {
		t.Fatalf("cash = %s", summary.Earnings.Cash)
	}
	if summary.Earnings.Pay != "-475.00" {
		t.Fatalf("pay = %s", summary.Earnings.Pay)
	}
}

func TestWeeklySummaryCacheFlushOnWrite(t *testing.T) {
	srv := newTestServer(t)
	seedWeek(t, srv)

	first := doJSON(t, srv, http.MethodGet, "/api/v1/summary/weekly?date=2026-03-04", nil)
	second := doJSON(t, srv, http.MethodGet, "/api/v1/summary/weekly?date=2026-03-04", nil)
	if first.Body.String() != second.Body.String() {
		t.Fatalf("cached responses differ")
	}
	// Any date inside the week maps to the same cache entry.
	alias := doJSON(t, srv, http.MethodGet, "/api/v1/summary/weekly?date=2026-03-06", nil)
	if alias.Body.String() != first.Body.String() {
		t.Fatalf("same-week responses differ")
	}

	job := validJob("2026-03-06")
	job["amount"] = "250.00"
	if rr := doJSON(t, srv, http.MethodPost, "/api/v1/jobs", job); rr.Code != http.StatusCreated {
		t.Fatalf("write status=%d", rr.Code)
	}

	third := doJSON(t, srv, http.MethodGet, "/api/v1/summary/weekly?date=2026-03-04", nil)
	summary := decode[weeklySummaryResponse](t, third)
	if summary.Earnings.Gross != "1750.00" {
		t.Fatalf("gross after write = %s", summary.Earnings.Gross)
	}
}

func TestMonthlySummary(t *testing.T) {
	srv := newTestServer(t)
	seedWeek(t, srv)

	rr := doJSON(t, srv, http.MethodGet, "/api/v1/summary/monthly?year=2026&month=3", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("monthly status=%d body=%s", rr.Code, rr.Body.String())
	}
	summary := decode[monthlySummaryResponse](t, rr)
	if summary.Year != 2026 || summary.Month != 3 {
		t.Fatalf("period = %d-%d", summary.Year, summary.Month)
	}
	if len(summary.Weeks) == 0 {
		t.Fatalf("no week rows")
	}
	// Week rows are clipped to the month: first row starts on the 1st,
	// last row ends on the 31st.
	if summary.Weeks[0].From != "2026-03-01" {
		t.Fatalf("first week from = %s", summary.Weeks[0].From)
	}
	if summary.Weeks[len(summary.Weeks)-1].To != "2026-03-31" {
		t.Fatalf("last week to = %s", summary.Weeks[len(summary.Weeks)-1].To)
	}
	if summary.Earnings.Gross != "1500.00" {
		t.Fatalf("gross = %s", summary.Earnings.Gross)
	}
	// The insurance bill is the only paid expense in the month.
	if len(summary.Categories) != 1 {
		t.Fatalf("categories = %+v", summary.Categories)
	}
	if c := summary.Categories[0]; c.Category != "business" || c.Amount != "200.00" {
		t.Fatalf("category = %+v", c)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/v1/summary/monthly?year=2026&month=13", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("month 13 status=%d", rr.Code)
	}
}

func TestYearlySummary(t *testing.T) {
	srv := newTestServer(t)
	seedWeek(t, srv)

	rr := doJSON(t, srv, http.MethodGet, "/api/v1/summary/yearly?year=2026", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("yearly status=%d body=%s", rr.Code, rr.Body.String())
	}
	summary := decode[yearlySummaryResponse](t, rr)
	if summary.Year != 2026 || len(summary.Months) != 12 {
		t.Fatalf("summary = year %d, %d months", summary.Year, len(summary.Months))
	}
	march := summary.Months[2]
	if march.Month != 3 || march.JobCount != 2 || march.Total != "1500.00" {
		t.Fatalf("march = %+v", march)
	}
	if summary.Months[0].JobCount != 0 {
		t.Fatalf("january = %+v", summary.Months[0])
	}
}

func TestBillSuggestions(t *testing.T) {
	srv := newTestServer(t)

	job := validJob("2026-03-02")
	job["amount"] = "1000.00"
	if rr := doJSON(t, srv, http.MethodPost, "/api/v1/jobs", job); rr.Code != http.StatusCreated {
		t.Fatalf("seed job status=%d", rr.Code)
	}

	bills := []map[string]any{
		{"name": "Water", "amount": "120.00", "due_date": "2026-03-03", "category": "fixed", "recurrence": "monthly"},
		{"name": "Truck note", "amount": "600.00", "due_date": "2026-03-05", "category": "fixed", "recurrence": "monthly"},
		{"name": "Insurance premium", "amount": "450.00", "due_date": "2026-03-06", "category": "business", "recurrence": "monthly"},
	}
	for _, b := range bills {
		if rr := doJSON(t, srv, http.MethodPost, "/api/v1/expenses", b); rr.Code != http.StatusCreated {
			t.Fatalf("seed bill status=%d body=%s", rr.Code, rr.Body.String())
		}
	}

	rr := doJSON(t, srv, http.MethodGet, "/api/v1/summary/suggestions?date=2026-03-04", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("suggestions status=%d body=%s", rr.Code, rr.Body.String())
	}
	plan := decode[paymentPlanResponse](t, rr)

	if plan.Available != "1000.00" {
		t.Fatalf("available = %s", plan.Available)
	}
	// Earliest due first: Water (120) and Truck note (600) fit; the
	// remaining 280 cannot cover the insurance premium in full.
	if len(plan.Suggestions) != 2 {
		t.Fatalf("suggestions = %+v", plan.Suggestions)
	}
	if plan.Suggestions[0].Name != "Water" || plan.Suggestions[1].Name != "Truck note" {
		t.Fatalf("order = %s, %s", plan.Suggestions[0].Name, plan.Suggestions[1].Name)
	}
	if plan.Leftover != "280.00" {
		t.Fatalf("leftover = %s", plan.Leftover)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/jobs/abc", nil)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestRateLimitAppliesToMutationsOnly(t *testing.T) {
	srv := newTestServer(t)

	// Exhaust the per-minute budget with mutating requests.
	var last *httptest.ResponseRecorder
	for i := 0; i < 61; i++ {
		last = doJSON(t, srv, http.MethodDelete, "/api/v1/jobs/no-such-job", nil)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d body=%s", last.Code, last.Body.String())
	}
	if last.Header().Get("Retry-After") != "60" {
		t.Fatalf("Retry-After = %q", last.Header().Get("Retry-After"))
	}

	// Reads stay unthrottled for the same client.
	rr := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("read after limit status=%d", rr.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options = %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/jobs", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("preflight status=%d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/jobs", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected Allow-Origin = %q", got)
	}
}
