package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"jobledger/internal/cache"
	"jobledger/internal/middleware/cors"
	"jobledger/internal/middleware/ratelimit"
	"jobledger/internal/middleware/security"
	"jobledger/internal/middleware/trace"
	"jobledger/internal/services"
)

// ReadyChecker reports whether a dependency can serve requests.
type ReadyChecker interface {
	Ping(ctx context.Context) error
}

// Deps carries everything the HTTP layer serves.
type Deps struct {
	Jobs      *services.JobService
	Expenses  *services.ExpenseService
	Goals     *services.GoalService
	Profiles  *services.ProfileService
	Summaries *services.SummaryService

	// DB is probed by readyz. Queue may be nil when ledger export is
	// disabled; readyz then reports it as not configured.
	DB    ReadyChecker
	Queue ReadyChecker
}

// appMetrics tracks application-level counters exposed on /metrics.
type appMetrics struct {
	uptime        time.Time
	totalJobs     int64
	totalExpenses int64
	cacheHits     int64
	cacheMisses   int64
}

type Server struct {
	http.Server

	jobs      *services.JobService
	expenses  *services.ExpenseService
	goals     *services.GoalService
	profiles  *services.ProfileService
	summaries *services.SummaryService

	db    ReadyChecker
	queue ReadyChecker

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	// Summary responses are cached as marshaled JSON and flushed on
	// every write, since any write can move the derived numbers.
	summaryCache *cache.LRUCache[[]byte]
	cacheManager *cache.Manager

	appMetrics   appMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		jobs:             deps.Jobs,
		expenses:         deps.Expenses,
		goals:            deps.Goals,
		profiles:         deps.Profiles,
		summaries:        deps.Summaries,
		db:               deps.DB,
		queue:            deps.Queue,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		securityDetector: security.NewDetector(),
		summaryCache:     cache.NewLRUCache[[]byte](100, 5*time.Minute),
		cacheManager:     cache.NewManager(),
		appMetrics:       appMetrics{uptime: time.Now()},
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP)

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/v1/jobs", s.handleCreateJob)
	mux.HandleFunc("GET /api/v1/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/v1/jobs/unpaid", s.handleUnpaidJobs)
	mux.HandleFunc("GET /api/v1/jobs/search", s.handleSearchJobs)
	mux.HandleFunc("GET /api/v1/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("PUT /api/v1/jobs/{id}", s.handleUpdateJob)
	mux.HandleFunc("DELETE /api/v1/jobs/{id}", s.handleDeleteJob)

	mux.HandleFunc("POST /api/v1/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/v1/expenses", s.handleListExpenses)
	mux.HandleFunc("GET /api/v1/expenses/upcoming", s.handleUpcomingExpenses)
	mux.HandleFunc("GET /api/v1/expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("PUT /api/v1/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/v1/expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("POST /api/v1/expenses/{id}/pay", s.handlePayExpense)

	mux.HandleFunc("POST /api/v1/goals", s.handleCreateGoal)
	mux.HandleFunc("GET /api/v1/goals", s.handleListGoals)
	mux.HandleFunc("GET /api/v1/goals/current", s.handleCurrentGoal)
	mux.HandleFunc("GET /api/v1/goals/{id}", s.handleGetGoal)
	mux.HandleFunc("PUT /api/v1/goals/{id}", s.handleUpdateGoal)
	mux.HandleFunc("DELETE /api/v1/goals/{id}", s.handleDeleteGoal)
	mux.HandleFunc("POST /api/v1/goals/{id}/bills", s.handleAllocateBill)
	mux.HandleFunc("POST /api/v1/goals/{id}/bills/{expenseID}/complete", s.handleCompleteBill)

	mux.HandleFunc("GET /api/v1/profile", s.handleGetProfile)
	mux.HandleFunc("PUT /api/v1/profile", s.handleSaveProfile)

	mux.HandleFunc("GET /api/v1/summary/weekly", s.handleWeeklySummary)
	mux.HandleFunc("GET /api/v1/summary/monthly", s.handleMonthlySummary)
	mux.HandleFunc("GET /api/v1/summary/yearly", s.handleYearlySummary)
	mux.HandleFunc("GET /api/v1/summary/suggestions", s.handleSuggestions)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	corsHandler := cors.New(cors.ConfigFromEnv())

	var handler http.Handler = mux
	handler = s.withRateLimit(handler)
	handler = corsHandler.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = s.withDetection(handler)
	handler = s.traceMiddleware.Middleware(handler)
	s.Server.Handler = handler

	return s
}

// withRateLimit limits mutating requests per client IP. Reads stay
// unthrottled so dashboards can poll freely.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			clientIP := s.securityDetector.ExtractClientIP(r)
			if !s.rateLimiter.Allow(clientIP) {
				slog.WarnContext(r.Context(), "Rate limit exceeded",
					"client_ip", clientIP, "method", r.Method, "path", r.URL.Path)
				w.Header().Set("Retry-After", "60")
				respondError(w, http.StatusTooManyRequests, "rate_limited",
					"Rate limit exceeded. Please try again later.")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// withDetection flags suspicious requests. Detection only logs and
// counts; it never blocks.
func (s *Server) withDetection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.securityDetector.DetectSuspiciousRequest(r) {
			slog.WarnContext(r.Context(), "Suspicious request detected",
				"method", r.Method,
				"path", r.URL.Path,
				"client_ip", s.securityDetector.ExtractClientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

// flushSummaries drops all cached summary responses after a write.
func (s *Server) flushSummaries() {
	s.summaryCache.Flush()
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	// Ensure shutdown logic runs only once
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
