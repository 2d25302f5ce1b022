package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/checkout"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/domain"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/metrics"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/payment"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/reconcile"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/saleapi"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/service"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/store"
)

// EventStream upgrades a request into a terminal's live outcome feed.
type EventStream interface {
	ServeWS(w http.ResponseWriter, r *http.Request, terminalID string)
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	events        EventStream
	metrics       *metrics.Metrics
	allowedOrigin string
	loginLimiter  *clientLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, events EventStream, m *metrics.Metrics, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	if m == nil {
		m = metrics.New()
	}
	return &API{
		service:       svc,
		auth:          auth,
		events:        events,
		metrics:       m,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newClientLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	return a.csrfTokenForHour(time.Now().UTC().Truncate(time.Hour).Unix())
}

// validateCSRFToken accepts tokens from the current or previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	current := time.Now().UTC().Truncate(time.Hour).Unix()
	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current-3600)))
}

// clientLimiter hands out one token bucket per client address.
type clientLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	entries map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(attempts int, window time.Duration) *clientLimiter {
	if attempts < 1 {
		attempts = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &clientLimiter{
		limit:   rate.Every(window / time.Duration(attempts)),
		burst:   attempts,
		entries: make(map[string]*limiterEntry),
	}
}

func (l *clientLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) > 4096 {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > 10*time.Minute {
				delete(l.entries, k)
			}
		}
	}
	entry, ok := l.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(a.metrics.Middleware(routeTemplate))

	r.HandleFunc("/healthz", a.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", a.metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/auth/login", a.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	sessions := api.PathPrefix("/payment-sessions").Subrouter()
	sessions.HandleFunc("", a.requireAuth(a.handleOpenSession, "cashier", "admin")).Methods(http.MethodPost)
	sessions.HandleFunc("/held/{holdID}", a.requireAuth(a.handleOpenHeldSession, "cashier", "admin")).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}", a.requireAuth(a.handleGetSession, "cashier", "admin")).Methods(http.MethodGet)
	sessions.HandleFunc("/{id}", a.requireAuth(a.handleCloseSession, "cashier", "admin")).Methods(http.MethodDelete)
	sessions.HandleFunc("/{id}/discount", a.requireAuth(a.handleSetDiscount, "cashier", "admin")).Methods(http.MethodPatch)
	sessions.HandleFunc("/{id}/payments", a.requireAuth(a.handleAddPayment, "cashier", "admin")).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}/payments/{rowID:[0-9]+}", a.requireAuth(a.handleUpdatePayment, "cashier", "admin")).Methods(http.MethodPatch)
	sessions.HandleFunc("/{id}/payments/{rowID:[0-9]+}", a.requireAuth(a.handleRemovePayment, "cashier", "admin")).Methods(http.MethodDelete)
	sessions.HandleFunc("/{id}/finalize", a.requireAuth(a.handleFinalize, "cashier", "admin")).Methods(http.MethodPost)

	terminals := api.PathPrefix("/terminals/{terminal}").Subrouter()
	terminals.HandleFunc("/customer", a.requireAuth(a.handleCustomer, "cashier", "admin")).Methods(http.MethodGet, http.MethodPut, http.MethodDelete)
	terminals.HandleFunc("/flash", a.requireAuth(a.handleFlash, "cashier", "admin")).Methods(http.MethodGet)
	terminals.HandleFunc("/events", a.requireAuth(a.handleEvents, "cashier", "admin")).Methods(http.MethodGet)

	api.HandleFunc("/sales", a.requireAuth(a.handleSales, "admin")).Methods(http.MethodGet)
	api.HandleFunc("/sales/{invoice}/receipt", a.requireAuth(a.handleReceipt, "cashier", "admin")).Methods(http.MethodGet)
	api.HandleFunc("/audit-logs", a.requireAuth(a.handleAuditLogs, "admin")).Methods(http.MethodGet)
	api.HandleFunc("/users/cashiers", a.requireAuth(a.handleCashiers, "admin")).Methods(http.MethodGet, http.MethodPost)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMethodNotAllowed(w)
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("route not found"))
	})

	return a.withCORS(a.withMiddleware(r))
}

func routeTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return ""
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return ""
	}
	return tpl
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

// bearerToken reads the Authorization header. Browsers cannot set headers
// on a websocket handshake, so upgrades may pass access_token in the query.
func bearerToken(r *http.Request) (string, bool) {
	authorization := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
		return strings.TrimSpace(authorization[len("Bearer "):]), true
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		if token := strings.TrimSpace(r.URL.Query().Get("access_token")); token != "" {
			return token, true
		}
	}
	return "", false
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a token for the X-CSRF-Token header of mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	if !a.validateCSRFToken(strings.TrimSpace(r.Header.Get("X-CSRF-Token"))) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req domain.OpenSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.OpenSession(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": view})
}

func (a *API) handleOpenHeldSession(w http.ResponseWriter, r *http.Request) {
	var req domain.OpenHeldSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.OpenSessionFromHeldBill(r.Context(), mux.Vars(r)["holdID"], req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": view})
}

func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": view})
}

func (a *API) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.service.CloseSession(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "closed": true})
}

func (a *API) handleSetDiscount(w http.ResponseWriter, r *http.Request) {
	var req domain.DiscountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.SetDiscount(r.Context(), mux.Vars(r)["id"], req.Discount)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": view})
}

func (a *API) handleAddPayment(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.AddPayment(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": view})
}

func (a *API) handleUpdatePayment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	rowID, err := strconv.Atoi(vars["rowID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid payment row id"))
		return
	}
	var req domain.PaymentPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.UpdatePayment(r.Context(), vars["id"], rowID, req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": view})
}

func (a *API) handleRemovePayment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	rowID, err := strconv.Atoi(vars["rowID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid payment row id"))
		return
	}
	view, err := a.service.RemovePayment(r.Context(), vars["id"], rowID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": view})
}

type finalizeBody struct {
	domain.FinalizeResponse
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

func (a *API) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var req domain.FinalizeRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	resp, err := a.service.Finalize(r.Context(), mux.Vars(r)["id"], req)
	if err == nil {
		writeJSON(w, http.StatusOK, finalizeBody{FinalizeResponse: resp})
		return
	}
	if resp.SessionID == "" {
		writeError(w, statusFor(err), err)
		return
	}

	status, code := finalizeStatus(err)
	if status >= 500 && !errors.Is(err, saleapi.ErrSubmissionFailed) {
		log.Printf("internal error (status %d): %v", status, err)
	}
	writeJSON(w, status, finalizeBody{FinalizeResponse: resp, Error: resp.Message, Code: code})
}

// finalizeStatus maps a finalize error to its HTTP status and machine code.
// The body message is always the cashier-facing one from the presenter.
func finalizeStatus(err error) (int, string) {
	switch {
	case errors.Is(err, checkout.ErrNoItems):
		return http.StatusUnprocessableEntity, "no_items"
	case errors.Is(err, checkout.ErrNoCustomer):
		return http.StatusUnprocessableEntity, "no_customer"
	case errors.Is(err, reconcile.ErrAmountMismatch):
		return http.StatusUnprocessableEntity, "amount_mismatch"
	case errors.Is(err, saleapi.ErrSubmissionFailed):
		return http.StatusBadGateway, "submission_failed"
	case errors.Is(err, checkout.ErrSubmissionInFlight):
		return http.StatusConflict, "in_flight"
	case errors.Is(err, checkout.ErrAlreadyFinalized):
		return http.StatusConflict, "already_finalized"
	default:
		return statusFor(err), ""
	}
}

func (a *API) handleCustomer(w http.ResponseWriter, r *http.Request) {
	terminalID := mux.Vars(r)["terminal"]
	switch r.Method {
	case http.MethodGet:
		customer, err := a.service.GetCustomer(r.Context(), terminalID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
	case http.MethodPut:
		var req domain.Customer
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		customer, err := a.service.SelectCustomer(r.Context(), terminalID, req)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
	case http.MethodDelete:
		if err := a.service.ClearCustomer(r.Context(), terminalID); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"terminal_id": terminalID, "cleared": true})
	}
}

func (a *API) handleFlash(w http.ResponseWriter, r *http.Request) {
	flash, err := a.service.TakeFlash(r.Context(), mux.Vars(r)["terminal"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, flash)
}

func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	if a.events == nil {
		writeError(w, http.StatusNotFound, errors.New("event stream is disabled"))
		return
	}
	a.events.ServeWS(w, r, mux.Vars(r)["terminal"])
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	sales, err := a.service.ListSales(r.Context(), r.URL.Query().Get("date"), limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (a *API) handleReceipt(w http.ResponseWriter, r *http.Request) {
	invoice := mux.Vars(r)["invoice"]
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))) {
	case "", "escpos":
		resp, err := a.service.ReceiptESCPOS(r.Context(), invoice)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case "pdf":
		data, name, err := a.service.ReceiptPDF(r.Context(), invoice)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	default:
		writeError(w, http.StatusBadRequest, errors.New("format must be escpos or pdf"))
	}
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parsePositiveLimit(query.Get("limit"), 100, 500)
	logs, err := a.service.ListAuditLogs(r.Context(), strings.TrimSpace(query.Get("store_id")), query.Get("date"), limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) handleCashiers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"cashiers": a.auth.ListCashiers(r.Context())})
	case http.MethodPost:
		var req domain.CashierCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		cashier, err := a.auth.CreateCashier(r.Context(), req)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, store.ErrDuplicate) {
				status = http.StatusConflict
			}
			writeError(w, status, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"cashier": cashier})
	}
}

func (a *API) withCORS(next http.Handler) http.Handler {
	origins := []string{a.allowedOrigin}
	if a.allowedOrigin == "" {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-CSRF-Token", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         600,
	}).Handler(next)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")

		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		switch r.Method {
		case http.MethodPost, http.MethodPatch, http.MethodPut:
			if strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
				r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
			}
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s id=%s", r.Method, r.URL.Path, time.Since(startedAt), requestID)
	})
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, saleapi.ErrHeldBillNotFound),
		errors.Is(err, payment.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, payment.ErrUnsupportedMethod),
		errors.Is(err, payment.ErrNegativeAmount),
		errors.Is(err, payment.ErrAmountPrecision),
		errors.Is(err, payment.ErrLastEntry):
		return http.StatusBadRequest
	case errors.Is(err, checkout.ErrSessionBusy),
		errors.Is(err, checkout.ErrSubmissionInFlight),
		errors.Is(err, checkout.ErrAlreadyFinalized),
		errors.Is(err, checkout.ErrSingleMethodMode),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, saleapi.ErrBackendFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

// writeError hides the detail of 5xx errors from clients and logs it instead.
// 502 keeps its message, which comes from the sale backend.
func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	switch {
	case status == http.StatusBadGateway:
		log.Printf("upstream error (status %d): %v (%v)", status, err, errors.Unwrap(err))
	case status >= 500:
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
