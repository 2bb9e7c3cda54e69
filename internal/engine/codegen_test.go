package engine_test

import (
	"context"
	"strings"
	"testing"
)

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func TestGenerateVouchers(t *testing.T) {
	ctx := context.Background()
	eng, vouchers, _, _ := newTestEngine(&fakeBridge{})

	out, err := eng.GenerateVouchers(ctx, 25, 3600)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(out) != 25 {
		t.Fatalf("expected 25 vouchers, got %d", len(out))
	}

	seen := make(map[string]bool)
	batch := out[0].Batch
	for _, v := range out {
		if len(v.Code) != 10 {
			t.Fatalf("expected fixed 10-char codes, got %q", v.Code)
		}
		for _, c := range v.Code {
			if !strings.ContainsRune(codeAlphabet, c) {
				t.Fatalf("code %q uses a character outside the alphabet", v.Code)
			}
		}
		if seen[v.Code] {
			t.Fatalf("duplicate code %q in one batch", v.Code)
		}
		seen[v.Code] = true
		if v.Batch != batch {
			t.Fatalf("all vouchers of one call must share a batch id")
		}
		if v.Used {
			t.Fatalf("fresh voucher must be unused")
		}
		if v.DurationSeconds != 3600 {
			t.Fatalf("expected 3600s duration, got %d", v.DurationSeconds)
		}
	}

	// every generated code is redeemable
	if _, err := eng.RedeemVoucher(ctx, "aa:bb:cc:dd:ee:ff", out[0].Code); err != nil {
		t.Fatalf("generated code must redeem: %v", err)
	}
	_, available, _ := vouchers.Counts(ctx)
	if available != 24 {
		t.Fatalf("expected 24 unused after one redemption, got %d", available)
	}
}

func TestGenerateVouchers_RejectsBadArgs(t *testing.T) {
	eng, _, _, _ := newTestEngine(&fakeBridge{})
	if _, err := eng.GenerateVouchers(context.Background(), 0, 3600); err == nil {
		t.Fatalf("expected error for zero count")
	}
	if _, err := eng.GenerateVouchers(context.Background(), 5, 0); err == nil {
		t.Fatalf("expected error for zero duration")
	}
}
