// Package nac drives the external captive-portal enforcement tool. The
// session store is the source of truth for the portal's own accounting;
// everything here is enforcement only and must never block or roll back
// a committed session.
package nac

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Result is the outcome of one authorize/revoke invocation. Used for
// logging and retry decisions only, never persisted.
type Result struct {
	MAC     string
	Minutes int
	OK      bool
	Output  string
	Err     error
}

// Bridge issues forwarding commands to the enforcement layer.
type Bridge interface {
	// Authorize allows forwarding for mac for the given whole minutes.
	Authorize(ctx context.Context, mac string, minutes int) Result
	// Revoke drops forwarding for mac.
	Revoke(ctx context.Context, mac string) Result
}

// ExecBridge shells out to an ndsctl-style controller binary. The tool
// gives no atomicity or dedup guarantees and can hang, so every call
// runs under its own deadline.
type ExecBridge struct {
	Binary  string
	Timeout time.Duration
}

func NewExecBridge(binary string, timeout time.Duration) *ExecBridge {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ExecBridge{Binary: binary, Timeout: timeout}
}

func (b *ExecBridge) Authorize(ctx context.Context, mac string, minutes int) Result {
	out, err := b.run(ctx, "auth", mac, strconv.Itoa(minutes))
	res := Result{MAC: mac, Minutes: minutes, OK: err == nil && out != "", Output: out, Err: err}
	b.logResult("auth", res)
	return res
}

func (b *ExecBridge) Revoke(ctx context.Context, mac string) Result {
	out, err := b.run(ctx, "deauth", mac)
	res := Result{MAC: mac, OK: err == nil && out != "", Output: out, Err: err}
	b.logResult("deauth", res)
	return res
}

// run executes the binary with a bounded deadline. Nonzero exit, a hung
// process past the deadline, or empty output all come back as failure.
func (b *ExecBridge) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.Binary, args...)
	out, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(out))
	if ctx.Err() != nil {
		return text, fmt.Errorf("%s %s: %w", b.Binary, strings.Join(args, " "), ctx.Err())
	}
	if err != nil {
		return text, fmt.Errorf("%s %s: %w", b.Binary, strings.Join(args, " "), err)
	}
	return text, nil
}

func (b *ExecBridge) logResult(op string, res Result) {
	if res.OK {
		log.Printf("[NAC] %s ok mac=%s minutes=%d", op, res.MAC, res.Minutes)
		return
	}
	log.Printf("[NAC] %s FAILED mac=%s minutes=%d out=%q err=%v",
		op, res.MAC, res.Minutes, res.Output, res.Err)
}
