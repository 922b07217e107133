// Package api implements the coordinator's Request Surface: the
// authenticated and unauthenticated HTTP endpoints from spec.md §6, routed
// with stdlib net/http the way the teacher repo's coordinator/api/api.go
// and internal/app/httpapi/handler.go route theirs — a plain
// http.ServeMux with hand-parsed path segments rather than a router
// framework.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vaultcrack/recoverd/internal/apperr"
	"github.com/vaultcrack/recoverd/internal/auth"
	"github.com/vaultcrack/recoverd/internal/httputil"
	"github.com/vaultcrack/recoverd/internal/latch"
	"github.com/vaultcrack/recoverd/internal/liveness"
	"github.com/vaultcrack/recoverd/internal/logging"
	"github.com/vaultcrack/recoverd/internal/metrics"
	"github.com/vaultcrack/recoverd/internal/startuptime"
	"github.com/vaultcrack/recoverd/internal/statscache"
	"github.com/vaultcrack/recoverd/internal/store"
	"github.com/vaultcrack/recoverd/internal/sweeper"
	"github.com/vaultcrack/recoverd/internal/walletdesc"
)

// cpuBatchUnit is the per-CPU batch-size multiplier from spec.md §4.1.
const cpuBatchUnit = 100

// minBatchSize is the floor on a reservation size regardless of cpu_count.
const minBatchSize = 100

// Server wires together every component the Request Surface depends on.
type Server struct {
	store    *store.Store
	latch    *latch.Latch
	liveness *liveness.Registry
	stats    *statscache.Cache
	sweeper  *sweeper.Sweeper
	auth     *auth.Checker
	metrics  *metrics.Metrics
	desc     walletdesc.Descriptor
	log      *logging.Logger

	dbName        string
	resetAllowed  bool
	startedAt     time.Time
	dashboardHTML []byte
}

// Config bundles Server's dependencies, built once at startup in cmd/coordinator.
type Config struct {
	Store         *store.Store
	Latch         *latch.Latch
	Liveness      *liveness.Registry
	Stats         *statscache.Cache
	Sweeper       *sweeper.Sweeper
	Auth          *auth.Checker
	Metrics       *metrics.Metrics
	Descriptor    walletdesc.Descriptor
	Logger        *logging.Logger
	DBName        string
	ResetAllowed  bool
	StartedAt     time.Time
	DashboardHTML []byte
}

// New builds a Server from cfg.
func New(cfg Config) *Server {
	return &Server{
		store:         cfg.Store,
		latch:         cfg.Latch,
		liveness:      cfg.Liveness,
		stats:         cfg.Stats,
		sweeper:       cfg.Sweeper,
		auth:          cfg.Auth,
		metrics:       cfg.Metrics,
		desc:          cfg.Descriptor,
		log:           cfg.Logger,
		dbName:        cfg.DBName,
		resetAllowed:  cfg.ResetAllowed,
		startedAt:     cfg.StartedAt,
		dashboardHTML: cfg.DashboardHTML,
	}
}

// Routes builds the server's http.Handler, with every handler instrumented
// for Prometheus and wrapped with a per-request trace id.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	register := func(route string, h http.HandlerFunc) {
		mux.HandleFunc(route, s.withTrace(s.metrics.Instrument(route, h)))
	}

	register("/", s.handleDashboard)
	register("/health", s.handleHealth)
	register("/count", s.handleCount)
	register("/records/random", s.handleRecordsRandom)
	register("/records/by-pwd/", s.handleRecordsByPwd)
	register("/records/", s.handleRecordsByID)
	register("/work/stats", s.handleStats)
	register("/work/request", s.auth.Require(s.handleWorkRequest))
	register("/work/result", s.auth.Require(s.handleWorkResult))
	register("/work/found", s.auth.Require(s.handleWorkFound))
	register("/work/reset-timeout", s.auth.Require(s.handleResetTimeout))
	register("/work/reset-found", s.auth.Require(s.handleResetFound))

	return mux
}

func (s *Server) withTrace(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithTraceID(r.Context(), uuid.NewString())
		next(w, r.WithContext(ctx))
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(s.dashboardHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountByStatus(r.Context())
	if err != nil {
		s.logErr(r, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"count": counts.Total})
}

func (s *Server) handleRecordsByID(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/records/")
	if idStr == "" || idStr == "random" {
		httputil.WriteError(w, apperr.ValidationError("id must be a positive integer"))
		return
	}
	id, err := store.ParsePositiveID(idStr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rec, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeRecord(w, rec)
}

func (s *Server) handleRecordsByPwd(w http.ResponseWriter, r *http.Request) {
	pwd := strings.TrimPrefix(r.URL.Path, "/records/by-pwd/")
	if pwd == "" {
		httputil.WriteError(w, apperr.ValidationError("pwd must not be empty"))
		return
	}
	rec, err := s.store.GetByPassphrase(r.Context(), pwd)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeRecord(w, rec)
}

func (s *Server) handleRecordsRandom(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetRandom(r.Context())
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusOK, "no data")
		return
	}
	writeRecord(w, rec)
}

func writeRecord(w http.ResponseWriter, rec store.Record) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":     rec.ID,
		"pwd":    rec.Pwd,
		"status": int(rec.Status),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, err := s.stats.Get(r.Context(), func(ctx context.Context) (statscache.Snapshot, error) {
		counts, err := s.store.CountByStatus(ctx)
		if err != nil {
			return statscache.Snapshot{}, err
		}
		return statscache.FromCounts(counts, time.Now()), nil
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	activeCount, activeList := s.liveness.Active()
	uptime := time.Since(s.startedAt)

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"uncheck":          snap.Unchecked,
		"checking":         snap.Checking,
		"checked":          snap.Checked,
		"timeout":          snap.Timeout,
		"total":            snap.Total,
		"progress":         snap.Progress,
		"passwordFound":    s.latch.Found(),
		"database":         s.dbName,
		"resetAllowed":     s.resetAllowed,
		"tokenRequired":    s.auth.Configured(),
		"activeClients":    activeCount,
		"activeClientsList": activeList,
		"updated_at":       snap.UpdatedAt,
		"uptime":           int64(uptime.Seconds()),
		"uptimeFormatted":  startuptime.FormatUptime(s.startedAt),
	})
}

type workRequestBody struct {
	CPUCount int    `json:"cpuCount"`
	ClientID string `json:"clientId"`
}

func (s *Server) handleWorkRequest(w http.ResponseWriter, r *http.Request) {
	var body workRequestBody
	if err := httputil.DecodeJSON(r, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if body.ClientID == "" {
		httputil.WriteError(w, apperr.ValidationError("clientId is required"))
		return
	}

	s.liveness.Touch(body.ClientID)

	if s.latch.Found() {
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"success":       false,
			"passwords":     []string{},
			"passwordFound": true,
		})
		return
	}

	cpuCount := body.CPUCount
	if cpuCount <= 0 {
		cpuCount = 1
	}
	batchSize := cpuCount * cpuBatchUnit
	if batchSize < minBatchSize {
		batchSize = minBatchSize
	}

	candidates, err := s.store.ReserveBatch(r.Context(), batchSize)
	if err != nil {
		s.logErr(r, err)
		httputil.WriteError(w, err)
		return
	}

	if len(candidates) == 0 {
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"success":   false,
			"passwords": []string{},
		})
		return
	}

	passwords := make([]string, len(candidates))
	for i, c := range candidates {
		passwords[i] = c.Pwd
	}

	batchID := body.ClientID + "-" + strconv.FormatInt(time.Now().UnixMilli(), 10)

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"passwords": passwords,
		"encrypt":   s.desc,
		"batchId":   batchID,
		"count":     len(passwords),
	})
}

type workResultBody struct {
	BatchID       string   `json:"batchId"`
	ClientID      string   `json:"clientId"`
	Success       bool     `json:"success"`
	FoundPassword string   `json:"foundPassword"`
	Passwords     []string `json:"passwords"`
}

func (s *Server) handleWorkResult(w http.ResponseWriter, r *http.Request) {
	var body workResultBody
	if err := httputil.DecodeJSON(r, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if body.ClientID == "" {
		httputil.WriteError(w, apperr.ValidationError("clientId is required"))
		return
	}

	s.liveness.Touch(body.ClientID)

	if body.Success {
		if body.FoundPassword == "" {
			httputil.WriteError(w, apperr.ValidationError("foundPassword is required when success=true"))
			return
		}
		// Latch set happens-before acknowledgment (spec.md §5b): this call
		// returns only after the marker file append has completed.
		if err := s.latch.Set(body.ClientID, body.FoundPassword); err != nil {
			s.logErr(r, err)
			httputil.WriteError(w, err)
			return
		}
		if _, err := s.store.MarkCheckedByPassphrase(r.Context(), body.Passwords); err != nil {
			s.logErr(r, err)
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"success":       true,
			"message":       "password found",
			"shouldStop":    true,
			"passwordFound": true,
		})
		return
	}

	if _, err := s.store.MarkCheckedByPassphrase(r.Context(), body.Passwords); err != nil {
		s.logErr(r, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"message":       "batch recorded",
		"passwordFound": s.latch.Found(),
	})
}

type workFoundBody struct {
	Password string `json:"password"`
	ClientID string `json:"clientId"`
}

func (s *Server) handleWorkFound(w http.ResponseWriter, r *http.Request) {
	var body workFoundBody
	if err := httputil.DecodeJSON(r, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if body.Password == "" {
		httputil.WriteError(w, apperr.ValidationError("password is required"))
		return
	}

	s.liveness.Touch(body.ClientID)

	if err := s.latch.Set(body.ClientID, body.Password); err != nil {
		s.logErr(r, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"passwordFound": true,
	})
}

func (s *Server) handleResetTimeout(w http.ResponseWriter, r *http.Request) {
	n, err := s.sweeper.Force(r.Context())
	if err != nil {
		s.logErr(r, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"resetCount": n,
	})
}

func (s *Server) handleResetFound(w http.ResponseWriter, r *http.Request) {
	if !s.resetAllowed {
		httputil.WriteError(w, apperr.PolicyDeniedErr("reset-found is only permitted on the sample store"))
		return
	}

	if _, err := s.store.ResetAll(r.Context()); err != nil {
		s.logErr(r, err)
		httputil.WriteError(w, err)
		return
	}
	if err := s.latch.Reset(); err != nil {
		s.logErr(r, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) logErr(r *http.Request, err error) {
	s.log.WithContext(r.Context()).WithError(err).WithField("path", r.URL.Path).Error("handler error")
}
