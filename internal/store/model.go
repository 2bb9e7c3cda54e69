package store

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrVoucherNotFound means the code has never been issued.
	ErrVoucherNotFound = errors.New("voucher not found")
	// ErrVoucherUsed means the code was already claimed once.
	ErrVoucherUsed = errors.New("voucher already used")
	// ErrVoucherExists is returned by Create on a code collision.
	ErrVoucherExists = errors.New("voucher code exists")
	// ErrUnavailable wraps backend failures (redis down, timeout).
	ErrUnavailable = errors.New("store unavailable")
)

// CoinOrigin is the synthetic voucher_code marker for coin-funded
// sessions, distinguishing them from voucher grants.
const CoinOrigin = "COIN"

// TrackerWindow is how long a coin-slot sighting stays usable for a
// coin redemption. Deliberate tolerance for the gap between a client's
// last portal probe and the physical coin drop.
const TrackerWindow = 120 * time.Second

// Voucher is a single-use code worth a fixed amount of session time.
// Vouchers are never deleted; used ones are kept for history.
type Voucher struct {
	Code            string    `json:"code"`
	DurationSeconds int       `json:"duration_seconds"`
	Used            bool      `json:"used"`
	Batch           string    `json:"batch,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Session is a time-bounded authorization for one client MAC. A MAC has
// at most one session; a new grant replaces the old one wholesale.
type Session struct {
	MAC             string    `json:"mac"`
	VoucherCode     string    `json:"voucher_code,omitempty"` // empty for coin-funded sessions
	StartTime       time.Time `json:"start_time"`
	DurationSeconds int       `json:"duration_seconds"`
}

// Remaining computes the seconds left at the given instant. Never negative.
func (s *Session) Remaining(now time.Time) int {
	elapsed := int(now.Sub(s.StartTime) / time.Second)
	left := s.DurationSeconds - elapsed
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether the session should be treated as absent.
func (s *Session) Expired(now time.Time) bool {
	return s.Remaining(now) <= 0
}

// CoinSlot is the single overwritten tracker slot bridging the hardware
// coin pulse (no MAC) to the HTTP flow (no payment signal). Last writer
// wins; there is no per-MAC history.
type CoinSlot struct {
	MAC    string    `json:"mac"`
	SeenAt time.Time `json:"seen_at"`
}

// Valid reports whether the slot is still inside the tracker window.
func (c *CoinSlot) Valid(now time.Time) bool {
	return !c.SeenAt.IsZero() && now.Sub(c.SeenAt) <= TrackerWindow
}

// NormalizeCode upper-cases and trims a voucher code. Stores call this
// themselves rather than relying on caller discipline.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeMAC lower-cases and trims a client MAC.
func NormalizeMAC(mac string) string {
	return strings.ToLower(strings.TrimSpace(mac))
}
