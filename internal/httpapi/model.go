package httpapi

import (
	"context"

	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/audit"
	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/config"
	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/engine"
	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/security"
	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/store"
)

// Pinger is the health-check tap on the backing store. Nil in
// standalone mode.
type Pinger interface {
	Ping(ctx context.Context) error
}

// VoucherCatalog is the read-only voucher tap for the admin surface.
type VoucherCatalog interface {
	List(ctx context.Context) ([]store.Voucher, error)
	Counts(ctx context.Context) (used, available int, err error)
}

// SessionCatalog is the read-only session tap for the admin surface.
type SessionCatalog interface {
	All(ctx context.Context) ([]store.Session, error)
	CountLive(ctx context.Context) (int, error)
}

type Server struct {
	cfg      *config.Config
	eng      *engine.Engine
	vouchers VoucherCatalog
	sessions SessionCatalog
	pinger   Pinger
	issuer   *security.JWTIssuer
	audit    *audit.Logger

	adminPassword string
	pulseSecret   string
}

type RedeemReq struct {
	MAC  string `json:"mac"`
	Code string `json:"code"`
}

type CoinReq struct {
	MAC string `json:"mac"`
}

type ProbeReq struct {
	MAC string `json:"mac"`
}

type LogoutReq struct {
	MAC string `json:"mac"`
}

type LoginReq struct {
	Password string `json:"password"`
}

type GenerateReq struct {
	Count           int `json:"count"`
	DurationSeconds int `json:"duration_seconds"`
}

// SessionResp is the session shape every portal endpoint returns.
type SessionResp struct {
	Authorized       bool   `json:"authorized"`
	MAC              string `json:"mac,omitempty"`
	VoucherCode      string `json:"voucher_code,omitempty"`
	RemainingSeconds int    `json:"remaining_seconds"`
	DurationSeconds  int    `json:"duration_seconds,omitempty"`
}

// ErrorResp carries the user-facing message on every error path.
type ErrorResp struct {
	Message string `json:"message"`
}
