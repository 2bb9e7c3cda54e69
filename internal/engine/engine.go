// Package engine holds the authorization rules of the hotspot: voucher
// redemption, coin redemption, status, logout, and the expiry sweep.
// Per-MAC state moves Unauthenticated → Active → Expired/LoggedOut and
// back; a new grant always replaces the current state wholesale.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/audit"
	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/nac"
	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/store"
)

const (
	// CoinGrantSeconds is what one coin buys. Fixed by build, not config.
	CoinGrantSeconds = 900
)

var (
	// ErrInvalidVoucher: code unknown. Retrying the same code is useless.
	ErrInvalidVoucher = errors.New("invalid voucher code")
	// ErrVoucherUsed: code already claimed. Distinct from invalid so the
	// user knows which recourse they have.
	ErrVoucherUsed = errors.New("voucher already used")
	// ErrNoRecentCoin: no coin registered inside the tracker window.
	ErrNoRecentCoin = errors.New("no recent coin insert")
	// ErrStoreUnavailable: backend fault, retryable with backoff.
	ErrStoreUnavailable = errors.New("store unavailable, try again")
)

// VoucherStore is the slice of the voucher store the engine needs.
type VoucherStore interface {
	Claim(ctx context.Context, code string) (*store.Voucher, error)
	Create(ctx context.Context, v store.Voucher) error
}

// SessionStore is the slice of the session store the engine needs.
type SessionStore interface {
	Put(ctx context.Context, mac, voucherCode string, durationSeconds int) (*store.Session, error)
	Get(ctx context.Context, mac string) (*store.Session, error)
	Delete(ctx context.Context, mac string) error
	CountLive(ctx context.Context) (int, error)
	All(ctx context.Context) ([]store.Session, error)
}

// CoinTracker is the single-slot unauthenticated-client tracker.
type CoinTracker interface {
	RecordSeen(ctx context.Context, mac string) error
	RecordPulse(ctx context.Context) (string, error)
	ConsumeIfValid(ctx context.Context) (mac string, ok bool, err error)
}

type Engine struct {
	vouchers VoucherStore
	sessions SessionStore
	coins    CoinTracker
	bridge   nac.Bridge
	audit    *audit.Logger
}

func New(vouchers VoucherStore, sessions SessionStore, coins CoinTracker, bridge nac.Bridge, aud *audit.Logger) *Engine {
	return &Engine{
		vouchers: vouchers,
		sessions: sessions,
		coins:    coins,
		bridge:   bridge,
		audit:    aud,
	}
}

// ceilMinutes rounds a second grant up to whole minutes for the NAC.
func ceilMinutes(seconds int) int {
	return (seconds + 59) / 60
}

// RedeemVoucher claims code for mac and starts a session worth the
// voucher's full duration. The claim is the one atomic step: once it
// lands the voucher is spent, and a NAC fault afterwards is an
// enforcement problem for the sweep, never a rollback.
func (e *Engine) RedeemVoucher(ctx context.Context, mac, code string) (*store.Session, error) {
	mac = store.NormalizeMAC(mac)
	code = store.NormalizeCode(code)

	v, err := e.vouchers.Claim(ctx, code)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrVoucherNotFound):
			return nil, ErrInvalidVoucher
		case errors.Is(err, store.ErrVoucherUsed):
			return nil, ErrVoucherUsed
		default:
			log.Printf("[ENGINE] voucher claim failed mac=%s code=%s err=%v", mac, code, err)
			return nil, ErrStoreUnavailable
		}
	}

	sess, err := e.sessions.Put(ctx, mac, v.Code, v.DurationSeconds)
	if err != nil {
		// The voucher is burned but the session never landed. Surface a
		// retryable error; the claim itself is audited so the operator
		// can reissue.
		log.Printf("[ENGINE] session put failed after claim mac=%s code=%s err=%v", mac, code, err)
		e.audit.Write(map[string]any{
			"event": "voucher.redeem", "mac": mac, "code": code, "result": "session_put_failed",
		})
		return nil, ErrStoreUnavailable
	}

	voucherRedemptions.Inc()
	e.audit.Write(map[string]any{
		"event": "voucher.redeem", "mac": mac, "code": code,
		"duration": v.DurationSeconds, "result": "ok",
	})

	e.authorize(ctx, mac, v.DurationSeconds)
	return sess, nil
}

// RedeemCoin grants the fixed coin time to the requesting MAC, gated on
// the tracker holding a sighting inside its validity window. The grant
// goes to the MAC making the request, not the tracked one: the tracker
// only proves a coin landed recently. When the request carries no MAC
// (a raw hardware flow) the tracked MAC is the fallback.
func (e *Engine) RedeemCoin(ctx context.Context, mac string) (*store.Session, error) {
	mac = store.NormalizeMAC(mac)

	trackedMAC, ok, err := e.coins.ConsumeIfValid(ctx)
	if err != nil {
		log.Printf("[ENGINE] coinslot consume failed mac=%s err=%v", mac, err)
		return nil, ErrStoreUnavailable
	}
	if !ok {
		return nil, ErrNoRecentCoin
	}
	if mac == "" {
		mac = trackedMAC
	}
	if mac == "" {
		return nil, ErrNoRecentCoin
	}

	sess, err := e.sessions.Put(ctx, mac, store.CoinOrigin, CoinGrantSeconds)
	if err != nil {
		log.Printf("[ENGINE] session put failed for coin mac=%s err=%v", mac, err)
		return nil, ErrStoreUnavailable
	}

	coinRedemptions.Inc()
	e.audit.Write(map[string]any{
		"event": "coin.redeem", "mac": mac, "tracked_mac": trackedMAC,
		"duration": CoinGrantSeconds, "result": "ok",
	})

	e.authorize(ctx, mac, CoinGrantSeconds)
	return sess, nil
}

// Status returns the live session for mac, or nil. A miss doubles as a
// portal probe: the client is unauthenticated and in front of the
// portal, so it becomes the tracker's candidate for the next coin.
func (e *Engine) Status(ctx context.Context, mac string) (*store.Session, error) {
	mac = store.NormalizeMAC(mac)
	sess, err := e.sessions.Get(ctx, mac)
	if err != nil {
		log.Printf("[ENGINE] session get failed mac=%s err=%v", mac, err)
		return nil, ErrStoreUnavailable
	}
	if sess == nil && mac != "" {
		if err := e.coins.RecordSeen(ctx, mac); err != nil {
			log.Printf("[ENGINE] coinslot record failed mac=%s err=%v", mac, err)
		}
	}
	return sess, nil
}

// Probe records an unauthenticated client sighting without a status read.
func (e *Engine) Probe(ctx context.Context, mac string) error {
	mac = store.NormalizeMAC(mac)
	if mac == "" {
		return nil
	}
	if err := e.coins.RecordSeen(ctx, mac); err != nil {
		log.Printf("[ENGINE] coinslot record failed mac=%s err=%v", mac, err)
		return ErrStoreUnavailable
	}
	return nil
}

// CoinPulse ingests one detector pulse, re-arming the tracker slot.
func (e *Engine) CoinPulse(ctx context.Context) error {
	trackedMAC, err := e.coins.RecordPulse(ctx)
	if err != nil {
		log.Printf("[ENGINE] coin pulse record failed err=%v", err)
		return ErrStoreUnavailable
	}
	coinPulses.Inc()
	e.audit.Write(map[string]any{
		"event": "coin.pulse", "tracked_mac": trackedMAC,
	})
	return nil
}

// Logout drops mac's session, then its NAC authorization, in that
// order: session removal is authoritative even when the revoke fails.
// Calling it for a MAC with no session is not an error.
func (e *Engine) Logout(ctx context.Context, mac string) error {
	mac = store.NormalizeMAC(mac)
	if err := e.sessions.Delete(ctx, mac); err != nil {
		log.Printf("[ENGINE] session delete failed mac=%s err=%v", mac, err)
		return ErrStoreUnavailable
	}
	e.audit.Write(map[string]any{"event": "portal.logout", "mac": mac})
	e.revoke(ctx, mac)
	return nil
}

// CountLive is the dashboard tap on the session store.
func (e *Engine) CountLive(ctx context.Context) (int, error) {
	n, err := e.sessions.CountLive(ctx)
	if err != nil {
		return 0, ErrStoreUnavailable
	}
	return n, nil
}

// authorize pushes a grant to the enforcement tool after the session is
// committed. Failure is logged and counted; the session stands and the
// reassert pass will retry.
func (e *Engine) authorize(ctx context.Context, mac string, durationSeconds int) {
	res := e.bridge.Authorize(ctx, mac, ceilMinutes(durationSeconds))
	e.auditNAC("nac.authorize", res)
}

func (e *Engine) revoke(ctx context.Context, mac string) {
	res := e.bridge.Revoke(ctx, mac)
	e.auditNAC("nac.revoke", res)
}

func (e *Engine) auditNAC(event string, res nac.Result) {
	if !res.OK {
		nacFailures.Inc()
	}
	entry := map[string]any{
		"event": event, "mac": res.MAC, "minutes": res.Minutes, "ok": res.OK,
	}
	if res.Err != nil {
		entry["error"] = fmt.Sprintf("%v", res.Err)
	}
	e.audit.Write(entry)
}
