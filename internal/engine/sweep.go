package engine

import (
	"context"
	"log"
	"time"
)

// Sweep revokes the NAC authorization of every session whose time has
// run out, then deletes it. A status poll may have lazily deleted the
// record already; delete is idempotent so that race is harmless. The
// revoke always runs: the enforcement tool may still be forwarding for
// a MAC the store no longer knows about.
func (e *Engine) Sweep(ctx context.Context) (revoked int, err error) {
	all, err := e.sessions.All(ctx)
	if err != nil {
		return 0, ErrStoreUnavailable
	}
	now := time.Now()
	live := 0
	for _, sess := range all {
		if !sess.Expired(now) {
			live++
			continue
		}
		e.revoke(ctx, sess.MAC)
		if err := e.sessions.Delete(ctx, sess.MAC); err != nil {
			log.Printf("[SWEEP] delete failed mac=%s err=%v", sess.MAC, err)
			continue
		}
		sweepRevocations.Inc()
		e.audit.Write(map[string]any{
			"event": "session.expire", "mac": sess.MAC, "voucher_code": sess.VoucherCode,
		})
		revoked++
	}
	liveSessions.Set(float64(live))
	return revoked, nil
}

// Reassert re-authorizes every live session with its remaining minutes.
// The enforcement tool can restart and lose state independently of the
// portal, so the portal's books are periodically pushed back into it.
func (e *Engine) Reassert(ctx context.Context) (asserted int, err error) {
	all, err := e.sessions.All(ctx)
	if err != nil {
		return 0, ErrStoreUnavailable
	}
	now := time.Now()
	for _, sess := range all {
		left := sess.Remaining(now)
		if left <= 0 {
			continue
		}
		e.authorize(ctx, sess.MAC, left)
		asserted++
	}
	return asserted, nil
}

// Sweeper is the scheduled wrapper around Sweep/Reassert. Every
// reassertEvery-th tick also pushes live sessions back into the NAC.
type Sweeper struct {
	e             *Engine
	reassertEvery int
	ticks         int
}

func NewSweeper(e *Engine, reassertEvery int) *Sweeper {
	if reassertEvery <= 0 {
		reassertEvery = 10
	}
	return &Sweeper{e: e, reassertEvery: reassertEvery}
}

// Tick is the gocron job body.
func (s *Sweeper) Tick() {
	ctx := context.Background()
	revoked, err := s.e.Sweep(ctx)
	if err != nil {
		log.Printf("[SWEEP] tick failed: %v", err)
		return
	}
	if revoked > 0 {
		log.Printf("[SWEEP] revoked %d expired session(s)", revoked)
	}

	s.ticks++
	if s.ticks%s.reassertEvery != 0 {
		return
	}
	asserted, err := s.e.Reassert(ctx)
	if err != nil {
		log.Printf("[SWEEP] reassert failed: %v", err)
		return
	}
	log.Printf("[SWEEP] reasserted %d live session(s)", asserted)
}
