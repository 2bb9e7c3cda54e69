package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/audit"
	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/config"
	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/engine"
	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/security"
	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/store"
)

// requestTimeout bounds store work per request; the NAC bridge carries
// its own deadline on top.
const requestTimeout = 5 * time.Second

func New(cfg *config.Config, eng *engine.Engine, vouchers VoucherCatalog, sessions SessionCatalog,
	pinger Pinger, issuer *security.JWTIssuer, aud *audit.Logger, adminPassword, pulseSecret string) *Server {
	return &Server{
		cfg:           cfg,
		eng:           eng,
		vouchers:      vouchers,
		sessions:      sessions,
		pinger:        pinger,
		issuer:        issuer,
		audit:         aud,
		adminPassword: adminPassword,
		pulseSecret:   pulseSecret,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the engine taxonomy onto HTTP codes. Store faults
// come back as a generic retryable message.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidVoucher):
		writeJSON(w, http.StatusNotFound, ErrorResp{Message: "invalid voucher code"})
	case errors.Is(err, engine.ErrVoucherUsed):
		writeJSON(w, http.StatusConflict, ErrorResp{Message: "voucher already used"})
	case errors.Is(err, engine.ErrNoRecentCoin):
		writeJSON(w, http.StatusPaymentRequired, ErrorResp{Message: "insert a coin and try again"})
	case errors.Is(err, engine.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Message: "temporarily unavailable, try again"})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Message: "internal error"})
	}
}

func sessionResp(sess *store.Session) SessionResp {
	if sess == nil {
		return SessionResp{Authorized: false}
	}
	code := sess.VoucherCode
	if code == store.CoinOrigin {
		code = ""
	}
	return SessionResp{
		Authorized:       true,
		MAC:              sess.MAC,
		VoucherCode:      code,
		RemainingSeconds: sess.Remaining(time.Now()),
		DurationSeconds:  sess.DurationSeconds,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(metricsMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"status": "ok", "name": s.cfg.Controller.Name})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"status": "ok"}
		if s.pinger != nil {
			err := s.pinger.Ping(r.Context())
			resp["redis_ping"] = err == nil
		}
		writeJSON(w, 200, resp)
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Post("/portal/redeem", s.portalRedeem)
	r.Post("/portal/coin", s.portalCoin)
	r.Post("/portal/probe", s.portalProbe)
	r.Post("/portal/logout", s.portalLogout)
	r.Get("/portal/status/{mac}", s.portalStatus)

	r.Post("/coinslot/pulse", s.coinslotPulse)

	r.Post("/admin/login", s.adminLogin)
	r.Group(func(r chi.Router) {
		r.Use(security.AdminAuthMiddleware(s.issuer))
		r.Post("/admin/vouchers", s.adminGenerateVouchers)
		r.Get("/admin/vouchers", s.adminListVouchers)
		r.Get("/admin/vouchers/summary", s.adminVoucherSummary)
		r.Get("/admin/sessions", s.adminListSessions)
	})

	return r
}

func (s *Server) reqCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Message: "invalid request body"})
		return false
	}
	return true
}

func (s *Server) portalRedeem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.reqCtx(r)
	defer cancel()

	var req RedeemReq
	if !decode(w, r, &req) {
		return
	}
	if req.MAC == "" || req.Code == "" {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResp{Message: "mac and code are required"})
		return
	}

	sess, err := s.eng.RedeemVoucher(ctx, req.MAC, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, sessionResp(sess))
}

func (s *Server) portalCoin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.reqCtx(r)
	defer cancel()

	var req CoinReq
	if !decode(w, r, &req) {
		return
	}
	if req.MAC == "" {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResp{Message: "mac is required"})
		return
	}

	sess, err := s.eng.RedeemCoin(ctx, req.MAC)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, sessionResp(sess))
}

func (s *Server) portalProbe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.reqCtx(r)
	defer cancel()

	var req ProbeReq
	if !decode(w, r, &req) {
		return
	}
	if req.MAC == "" {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResp{Message: "mac is required"})
		return
	}
	if err := s.eng.Probe(ctx, req.MAC); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"seen": true})
}

func (s *Server) portalStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.reqCtx(r)
	defer cancel()

	mac := chi.URLParam(r, "mac")
	sess, err := s.eng.Status(ctx, mac)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, sessionResp(sess))
}

func (s *Server) portalLogout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.reqCtx(r)
	defer cancel()

	var req LogoutReq
	if !decode(w, r, &req) {
		return
	}
	if req.MAC == "" {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResp{Message: "mac is required"})
		return
	}
	if err := s.eng.Logout(ctx, req.MAC); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, SessionResp{Authorized: false})
}

func (s *Server) coinslotPulse(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.reqCtx(r)
	defer cancel()

	if s.pulseSecret != "" {
		got := r.Header.Get("X-Coinslot-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.pulseSecret)) != 1 {
			writeJSON(w, http.StatusUnauthorized, ErrorResp{Message: "unauthorized"})
			return
		}
	}
	if err := s.eng.CoinPulse(ctx); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"pulse": "ok"})
}

func (s *Server) adminLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginReq
	if !decode(w, r, &req) {
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.adminPassword)) != 1 {
		s.audit.Write(map[string]any{"event": "admin.login", "result": "denied"})
		writeJSON(w, http.StatusUnauthorized, ErrorResp{Message: "invalid credentials"})
		return
	}
	token, expiresIn, err := s.issuer.Issue(r.Context(), "admin")
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Message: "internal error"})
		return
	}
	s.audit.Write(map[string]any{"event": "admin.login", "result": "ok"})
	writeJSON(w, 200, map[string]any{"token": token, "expires_in": expiresIn})
}

func (s *Server) adminGenerateVouchers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.reqCtx(r)
	defer cancel()

	var req GenerateReq
	if !decode(w, r, &req) {
		return
	}
	if req.Count <= 0 || req.Count > 1000 || req.DurationSeconds <= 0 {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResp{Message: "count must be 1-1000 and duration positive"})
		return
	}

	vouchers, err := s.eng.GenerateVouchers(ctx, req.Count, req.DurationSeconds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"vouchers": vouchers})
}

func (s *Server) adminListVouchers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.reqCtx(r)
	defer cancel()

	vouchers, err := s.vouchers.List(ctx)
	if err != nil {
		writeError(w, engine.ErrStoreUnavailable)
		return
	}
	if vouchers == nil {
		vouchers = []store.Voucher{}
	}
	writeJSON(w, 200, map[string]any{"vouchers": vouchers})
}

func (s *Server) adminVoucherSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.reqCtx(r)
	defer cancel()

	used, available, err := s.vouchers.Counts(ctx)
	if err != nil {
		writeError(w, engine.ErrStoreUnavailable)
		return
	}
	live, err := s.sessions.CountLive(ctx)
	if err != nil {
		writeError(w, engine.ErrStoreUnavailable)
		return
	}
	writeJSON(w, 200, map[string]any{
		"vouchers_used":      used,
		"vouchers_available": available,
		"live_sessions":      live,
	})
}

func (s *Server) adminListSessions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.reqCtx(r)
	defer cancel()

	all, err := s.sessions.All(ctx)
	if err != nil {
		writeError(w, engine.ErrStoreUnavailable)
		return
	}
	now := time.Now()
	out := make([]SessionResp, 0, len(all))
	for _, sess := range all {
		if sess.Expired(now) {
			continue
		}
		out = append(out, sessionResp(&sess))
	}
	writeJSON(w, 200, map[string]any{"sessions": out, "count": len(out)})
}
