package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/audit"
	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/engine"
	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/nac"
	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/store"
)

type bridgeCall struct {
	op      string
	mac     string
	minutes int
}

// fakeBridge records authorize/revoke calls; fail makes every call
// report an enforcement failure.
type fakeBridge struct {
	mu    sync.Mutex
	fail  bool
	calls []bridgeCall
}

func (f *fakeBridge) Authorize(_ context.Context, mac string, minutes int) nac.Result {
	f.mu.Lock()
	f.calls = append(f.calls, bridgeCall{op: "auth", mac: mac, minutes: minutes})
	f.mu.Unlock()
	if f.fail {
		return nac.Result{MAC: mac, Minutes: minutes, Err: errors.New("tool exited 1")}
	}
	return nac.Result{MAC: mac, Minutes: minutes, OK: true, Output: "authenticated"}
}

func (f *fakeBridge) Revoke(_ context.Context, mac string) nac.Result {
	f.mu.Lock()
	f.calls = append(f.calls, bridgeCall{op: "deauth", mac: mac})
	f.mu.Unlock()
	if f.fail {
		return nac.Result{MAC: mac, Err: errors.New("tool exited 1")}
	}
	return nac.Result{MAC: mac, OK: true, Output: "deauthenticated"}
}

func (f *fakeBridge) last() (bridgeCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return bridgeCall{}, false
	}
	return f.calls[len(f.calls)-1], true
}

func newTestEngine(bridge nac.Bridge) (*engine.Engine, *store.MemVoucherStore, *store.MemSessionStore, *store.MemCoinTracker) {
	vouchers := store.NewMemVoucherStore()
	sessions := store.NewMemSessionStore()
	coins := store.NewMemCoinTracker()
	eng := engine.New(vouchers, sessions, coins, bridge, audit.New(false, ""))
	return eng, vouchers, sessions, coins
}

func TestRedeemVoucher_FullScenario(t *testing.T) {
	ctx := context.Background()
	bridge := &fakeBridge{}
	eng, vouchers, _, _ := newTestEngine(bridge)

	if err := vouchers.Create(ctx, store.Voucher{Code: "SULIT-1HR", DurationSeconds: 3600}); err != nil {
		t.Fatalf("create: %v", err)
	}

	sess, err := eng.RedeemVoucher(ctx, "AA:BB:CC:DD:EE:FF", "sulit-1hr")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if sess.MAC != "aa:bb:cc:dd:ee:ff" {
		t.Fatalf("mac not normalized: %q", sess.MAC)
	}
	if sess.VoucherCode != "SULIT-1HR" || sess.DurationSeconds != 3600 {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if got := sess.Remaining(sess.StartTime); got != 3600 {
		t.Fatalf("expected full remaining 3600, got %d", got)
	}

	call, ok := bridge.last()
	if !ok || call.op != "auth" || call.mac != "aa:bb:cc:dd:ee:ff" || call.minutes != 60 {
		t.Fatalf("expected NAC auth for 60 minutes, got %+v", call)
	}

	// same code from any mac must now fail distinctly as used
	if _, err := eng.RedeemVoucher(ctx, "00:00:00:00:00:01", "SULIT-1HR"); !errors.Is(err, engine.ErrVoucherUsed) {
		t.Fatalf("expected ErrVoucherUsed, got %v", err)
	}
}

func TestRedeemVoucher_UnknownCode(t *testing.T) {
	eng, _, _, _ := newTestEngine(&fakeBridge{})
	_, err := eng.RedeemVoucher(context.Background(), "aa:bb:cc:dd:ee:ff", "NEVER-WAS")
	if !errors.Is(err, engine.ErrInvalidVoucher) {
		t.Fatalf("expected ErrInvalidVoucher, got %v", err)
	}
}

func TestRedeemVoucher_MinuteRounding(t *testing.T) {
	ctx := context.Background()
	bridge := &fakeBridge{}
	eng, vouchers, _, _ := newTestEngine(bridge)
	_ = vouchers.Create(ctx, store.Voucher{Code: "SHORT", DurationSeconds: 90})

	if _, err := eng.RedeemVoucher(ctx, "aa:bb:cc:dd:ee:ff", "SHORT"); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	call, _ := bridge.last()
	if call.minutes != 2 {
		t.Fatalf("expected 90s rounded up to 2 minutes, got %d", call.minutes)
	}
}

func TestRedeemVoucher_NACFailureDoesNotRollBack(t *testing.T) {
	ctx := context.Background()
	eng, vouchers, _, _ := newTestEngine(&fakeBridge{fail: true})
	_ = vouchers.Create(ctx, store.Voucher{Code: "OK1", DurationSeconds: 600})

	sess, err := eng.RedeemVoucher(ctx, "aa:bb:cc:dd:ee:ff", "OK1")
	if err != nil {
		t.Fatalf("a NAC fault must not fail the redemption: %v", err)
	}
	if sess == nil {
		t.Fatalf("expected session")
	}

	got, err := eng.Status(ctx, "aa:bb:cc:dd:ee:ff")
	if err != nil || got == nil {
		t.Fatalf("session must survive NAC failure, got %v err=%v", got, err)
	}
}

func TestRedeemCoin_GrantsRequestingMAC(t *testing.T) {
	ctx := context.Background()
	eng, _, _, _ := newTestEngine(&fakeBridge{})

	// client bb probes last, but the redemption request comes from aa:
	// the grant goes to the requester, the tracker only proves payment
	if err := eng.Probe(ctx, "bb:bb:bb:bb:bb:bb"); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if err := eng.CoinPulse(ctx); err != nil {
		t.Fatalf("pulse: %v", err)
	}

	sess, err := eng.RedeemCoin(ctx, "aa:aa:aa:aa:aa:aa")
	if err != nil {
		t.Fatalf("coin redeem: %v", err)
	}
	if sess.MAC != "aa:aa:aa:aa:aa:aa" {
		t.Fatalf("grant must go to the requesting mac, got %q", sess.MAC)
	}
	if sess.DurationSeconds != engine.CoinGrantSeconds {
		t.Fatalf("expected fixed %ds grant, got %d", engine.CoinGrantSeconds, sess.DurationSeconds)
	}
}

func TestRedeemCoin_NoRecentCoin(t *testing.T) {
	ctx := context.Background()
	eng, _, _, _ := newTestEngine(&fakeBridge{})

	if _, err := eng.RedeemCoin(ctx, "aa:aa:aa:aa:aa:aa"); !errors.Is(err, engine.ErrNoRecentCoin) {
		t.Fatalf("expected ErrNoRecentCoin, got %v", err)
	}
}

func TestRedeemCoin_SlotConsumedOnce(t *testing.T) {
	ctx := context.Background()
	eng, _, _, _ := newTestEngine(&fakeBridge{})

	_ = eng.Probe(ctx, "aa:aa:aa:aa:aa:aa")
	if _, err := eng.RedeemCoin(ctx, "aa:aa:aa:aa:aa:aa"); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	if _, err := eng.RedeemCoin(ctx, "aa:aa:aa:aa:aa:aa"); !errors.Is(err, engine.ErrNoRecentCoin) {
		t.Fatalf("one coin must fund one redemption, got %v", err)
	}
}

func TestStatus_MissRecordsSighting(t *testing.T) {
	ctx := context.Background()
	eng, _, _, _ := newTestEngine(&fakeBridge{})

	sess, err := eng.Status(ctx, "cc:cc:cc:cc:cc:cc")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected no session")
	}

	// the status miss doubles as a probe, so a coin redemption can follow
	if _, err := eng.RedeemCoin(ctx, "cc:cc:cc:cc:cc:cc"); err != nil {
		t.Fatalf("expected sighting from status miss to gate the coin: %v", err)
	}
}

func TestLogout_DeletesThenRevokes(t *testing.T) {
	ctx := context.Background()
	bridge := &fakeBridge{}
	eng, vouchers, _, _ := newTestEngine(bridge)
	_ = vouchers.Create(ctx, store.Voucher{Code: "OUT1", DurationSeconds: 600})
	if _, err := eng.RedeemVoucher(ctx, "aa:bb:cc:dd:ee:ff", "OUT1"); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	if err := eng.Logout(ctx, "AA:BB:CC:DD:EE:FF"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	sess, _ := eng.Status(ctx, "aa:bb:cc:dd:ee:ff")
	if sess != nil {
		t.Fatalf("session must be gone after logout")
	}
	call, _ := bridge.last()
	if call.op != "deauth" || call.mac != "aa:bb:cc:dd:ee:ff" {
		t.Fatalf("expected NAC deauth, got %+v", call)
	}
}

func TestLogout_NoSessionIsNotAnError(t *testing.T) {
	bridge := &fakeBridge{}
	eng, _, _, _ := newTestEngine(bridge)

	if err := eng.Logout(context.Background(), "no:se:ss:io:n0:00"); err != nil {
		t.Fatalf("logout of unknown mac must not error: %v", err)
	}
	// the revoke is still attempted: the tool may be forwarding anyway
	call, ok := bridge.last()
	if !ok || call.op != "deauth" {
		t.Fatalf("expected revoke attempt, got %+v ok=%v", call, ok)
	}
}

// failingVouchers simulates a dead backend under the engine.
type failingVouchers struct{}

func (failingVouchers) Claim(context.Context, string) (*store.Voucher, error) {
	return nil, fmt.Errorf("%w: claim: connection refused", store.ErrUnavailable)
}
func (failingVouchers) Create(context.Context, store.Voucher) error {
	return fmt.Errorf("%w: create: connection refused", store.ErrUnavailable)
}

func TestRedeemVoucher_StoreFaultIsRetryable(t *testing.T) {
	sessions := store.NewMemSessionStore()
	coins := store.NewMemCoinTracker()
	eng := engine.New(failingVouchers{}, sessions, coins, &fakeBridge{}, audit.New(false, ""))

	_, err := eng.RedeemVoucher(context.Background(), "aa:bb:cc:dd:ee:ff", "ANY")
	if !errors.Is(err, engine.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestCountLive(t *testing.T) {
	ctx := context.Background()
	eng, vouchers, _, _ := newTestEngine(&fakeBridge{})
	_ = vouchers.Create(ctx, store.Voucher{Code: "C1", DurationSeconds: 600})
	_ = vouchers.Create(ctx, store.Voucher{Code: "C2", DurationSeconds: 600})
	_, _ = eng.RedeemVoucher(ctx, "aa:aa:aa:aa:aa:01", "C1")
	_, _ = eng.RedeemVoucher(ctx, "aa:aa:aa:aa:aa:02", "C2")

	n, err := eng.CountLive(ctx)
	if err != nil {
		t.Fatalf("countLive: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 live sessions, got %d", n)
	}
}
