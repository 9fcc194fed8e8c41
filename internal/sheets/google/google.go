package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"jobledger/internal/core"
	"jobledger/internal/sheets"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Ledger column layout, A through L.
var headerRow = []any{
	"ID", "Date", "Company", "Address", "City", "Yards",
	"Amount", "Paid", "Method", "Check #", "Invoice #", "Notes",
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	jobsBase      string

	// Row positions are cached per year tab so repeated exports skip
	// the column scan. Any write failure drops the whole cache.
	mu                 sync.Mutex
	tabRows            map[string]map[string]int // tab -> job ID -> 1-based row
	tabLastRow         map[string]int            // tab -> last occupied row
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

var _ sheets.LedgerExporter = (*Client)(nil)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID.
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON / GOOGLE_SERVICE_ACCOUNT_FILE /
// GOOGLE_APPLICATION_CREDENTIALS for a service account, or the
// GOOGLE_OAUTH_CLIENT_* and GOOGLE_OAUTH_TOKEN_* pair produced by
// cmd/oauth-init.
// Optional: GOOGLE_SHEET_NAME, the tab base name (default "Jobs");
// the year is prefixed per tab, e.g. "2025 Jobs".
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	jobsBase := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if jobsBase == "" {
		jobsBase = "Jobs"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		jobsBase:           jobsBase,
		cacheValidDuration: 2 * time.Minute,
	}, nil
}

// Indirection so tests can exercise token parsing.
var jsonUnmarshal = json.Unmarshal

// newSheetsService builds the Sheets API client. Service account
// credentials win when both auth styles are configured.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	saJSON, err := serviceAccountJSON()
	if err != nil {
		return nil, err
	}
	if saJSON != nil {
		slog.InfoContext(ctx, "Using service account credentials", "size", len(saJSON))
		svc, err := gsheet.NewService(ctx,
			goption.WithCredentialsJSON(saJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope))
		if err != nil {
			return nil, fmt.Errorf("create sheets service: %w", err)
		}
		return svc, nil
	}

	clientJSON, err := envOrFile("GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE")
	if err != nil {
		return nil, err
	}
	if clientJSON == nil {
		return nil, errors.New("missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}
	cfg, err := googleoauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}

	tokenJSON, err := envOrFile("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE")
	if err != nil {
		return nil, err
	}
	if tokenJSON == nil {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}
	var token oauth2.Token
	if err := jsonUnmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}

	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(cfg.Client(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

func serviceAccountJSON() ([]byte, error) {
	b, err := envOrFile("GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE")
	if err != nil || b != nil {
		return b, err
	}
	return envOrFile("", "GOOGLE_APPLICATION_CREDENTIALS")
}

// envOrFile returns inline JSON from envVar, or the contents of the
// file named by fileVar. Nil when neither is set.
func envOrFile(envVar, fileVar string) ([]byte, error) {
	if envVar != "" {
		if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
			return []byte(v), nil
		}
	}
	if path := strings.TrimSpace(os.Getenv(fileVar)); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return b, nil
	}
	return nil, nil
}

// UpsertJob writes the job to its year tab. A job exported before is
// rewritten in place; a new one lands on the first free row.
func (c *Client) UpsertJob(ctx context.Context, j core.Job) (string, error) {
	if err := j.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	tab := yearPrefixedName(c.jobsBase, j.Date.Year())

	row, appendRow, cached := c.cachedRow(tab, j.ID)
	if !cached {
		rows, lastRow, err := c.scanTab(ctx, tab)
		if isMissingTab(err) {
			if err := c.createTab(ctx, tab); err != nil {
				return "", err
			}
			rows, lastRow = map[string]int{}, 1
		} else if err != nil {
			return "", fmt.Errorf("scan %s: %w", tab, err)
		}
		c.storeScan(tab, rows, lastRow)
		row, appendRow = rows[j.ID], lastRow+1
	}
	if row == 0 {
		row = appendRow
	}

	rng := fmt.Sprintf("%s!A%d:L%d", tab, row, row)
	vr := &gsheet.ValueRange{Values: [][]any{jobRow(j)}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		c.InvalidateRowCache()
		return "", fmt.Errorf("write %s: %w", rng, err)
	}

	c.rememberRow(tab, j.ID, row)
	slog.InfoContext(ctx, "Job exported", "job_id", j.ID, "range", rng)
	return rng, nil
}

// RemoveJob clears the job's row. Removing a job that was never
// exported, or whose year tab does not exist, is a no-op.
func (c *Client) RemoveJob(ctx context.Context, jobID string, jobDate core.Date) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	tab := yearPrefixedName(c.jobsBase, jobDate.Year())

	row, _, cached := c.cachedRow(tab, jobID)
	if !cached {
		rows, lastRow, err := c.scanTab(ctx, tab)
		if isMissingTab(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("scan %s: %w", tab, err)
		}
		c.storeScan(tab, rows, lastRow)
		row = rows[jobID]
	}
	if row == 0 {
		return nil
	}

	rng := fmt.Sprintf("%s!A%d:L%d", tab, row, row)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		c.InvalidateRowCache()
		return fmt.Errorf("clear %s: %w", rng, err)
	}

	c.forgetRow(tab, jobID)
	slog.InfoContext(ctx, "Job removed from ledger", "job_id", jobID, "range", rng)
	return nil
}

// scanTab reads the ID column and returns job ID -> 1-based row plus
// the last occupied row.
func (c *Client) scanTab(ctx context.Context, tab string) (map[string]int, int, error) {
	rng := fmt.Sprintf("%s!A:A", tab)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, 0, err
	}
	rows := make(map[string]int, len(resp.Values))
	for i, r := range resp.Values {
		if len(r) == 0 {
			continue
		}
		id := strings.TrimSpace(fmt.Sprint(r[0]))
		if id == "" || id == "ID" {
			continue
		}
		rows[id] = i + 1
	}
	return rows, len(resp.Values), nil
}

// createTab adds a year tab with the header row.
func (c *Client) createTab(ctx context.Context, tab string) error {
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: tab},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("create tab %s: %w", tab, err)
	}
	hdr := &gsheet.ValueRange{Values: [][]any{headerRow}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, fmt.Sprintf("%s!A1:L1", tab), hdr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header for %s: %w", tab, err)
	}
	slog.InfoContext(ctx, "Created ledger tab", "tab", tab)
	return nil
}

func jobRow(j core.Job) []any {
	paid := "FALSE"
	if j.IsPaid {
		paid = "TRUE"
	}
	invoice := ""
	if j.Billing != nil {
		invoice = j.Billing.InvoiceNumber
	}
	return []any{
		j.ID,
		j.Date.String(),
		j.CompanyName,
		j.Address,
		j.City,
		j.Yards,
		j.Amount.Dollars(),
		paid,
		string(j.PaymentMethod),
		j.CheckNumber,
		invoice,
		j.Notes,
	}
}

// cachedRow returns the job's cached row and the row an append would
// land on. ok is false when the cache is cold for this tab.
func (c *Client) cachedRow(tab, jobID string) (row, appendRow int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !time.Now().Before(c.cacheExpiresAt) {
		return 0, 0, false
	}
	rows, found := c.tabRows[tab]
	if !found {
		return 0, 0, false
	}
	return rows[jobID], c.tabLastRow[tab] + 1, true
}

func (c *Client) storeScan(tab string, rows map[string]int, lastRow int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tabRows == nil {
		c.tabRows = map[string]map[string]int{}
		c.tabLastRow = map[string]int{}
	}
	c.tabRows[tab] = rows
	c.tabLastRow[tab] = lastRow
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
}

func (c *Client) rememberRow(tab, jobID string, row int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows, ok := c.tabRows[tab]
	if !ok {
		return
	}
	rows[jobID] = row
	if row > c.tabLastRow[tab] {
		c.tabLastRow[tab] = row
	}
}

func (c *Client) forgetRow(tab, jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rows, ok := c.tabRows[tab]; ok {
		delete(rows, jobID)
	}
}

// InvalidateRowCache drops all cached row positions. The next export
// rescans the sheet.
func (c *Client) InvalidateRowCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tabRows = nil
	c.tabLastRow = nil
	c.cacheExpiresAt = time.Time{}
}

func isMissingTab(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "Unable to parse range")
}

// yearPrefixedName returns "<year> <base>" unless base already starts
// with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
