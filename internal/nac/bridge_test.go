package nac_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/nac"
)

func TestExecBridge_AuthorizeOK(t *testing.T) {
	// echo prints its arguments, standing in for the tool's ack line
	b := nac.NewExecBridge("echo", 5*time.Second)
	res := b.Authorize(context.Background(), "aa:bb:cc:dd:ee:ff", 60)
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Output != "auth aa:bb:cc:dd:ee:ff 60" {
		t.Fatalf("unexpected output %q", res.Output)
	}
}

func TestExecBridge_NonzeroExitIsFailure(t *testing.T) {
	b := nac.NewExecBridge("false", 5*time.Second)
	res := b.Authorize(context.Background(), "aa:bb:cc:dd:ee:ff", 60)
	if res.OK {
		t.Fatalf("nonzero exit must be a failure")
	}
	if res.Err == nil {
		t.Fatalf("expected error")
	}
}

func TestExecBridge_EmptyOutputIsFailure(t *testing.T) {
	// exit 0 but no ack printed
	b := nac.NewExecBridge("true", 5*time.Second)
	res := b.Revoke(context.Background(), "aa:bb:cc:dd:ee:ff")
	if res.OK {
		t.Fatalf("missing expected output must be a failure")
	}
}

func TestExecBridge_MissingBinaryIsFailure(t *testing.T) {
	b := nac.NewExecBridge("/nonexistent/ndsctl", time.Second)
	res := b.Authorize(context.Background(), "aa:bb:cc:dd:ee:ff", 15)
	if res.OK || res.Err == nil {
		t.Fatalf("expected failure, got %+v", res)
	}
}

func TestExecBridge_Timeout(t *testing.T) {
	script := filepath.Join(t.TempDir(), "ndsctl")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nsleep 5\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	b := nac.NewExecBridge(script, 100*time.Millisecond)
	start := time.Now()
	res := b.Authorize(context.Background(), "aa:bb:cc:dd:ee:ff", 15)
	if res.OK {
		t.Fatalf("hung tool must be a failure")
	}
	if res.Err == nil {
		t.Fatalf("expected deadline error")
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("deadline did not bound the call")
	}
}
