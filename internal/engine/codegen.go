package engine

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/Djnirds1984/SULIT-WIFI-by-AJC-sub000/internal/store"
)

// Voucher codes: fixed length, fixed alphabet. 0/O and 1/I are left out
// so codes survive being read off a paper slip.
const (
	codeLength   = 10
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// createRetries bounds collision retries per voucher. With a 32^10
	// space collisions are vanishingly rare; hitting the bound means the
	// store is misbehaving.
	createRetries = 5
)

func newCode() (string, error) {
	buf := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// GenerateVouchers creates count vouchers worth durationSeconds each,
// collision-checked against the store, tagged with one batch ID.
func (e *Engine) GenerateVouchers(ctx context.Context, count, durationSeconds int) ([]store.Voucher, error) {
	if count <= 0 || durationSeconds <= 0 {
		return nil, fmt.Errorf("count and duration must be positive")
	}

	batch := uuid.NewString()
	out := make([]store.Voucher, 0, count)
	for i := 0; i < count; i++ {
		v, err := e.createOne(ctx, batch, durationSeconds)
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}

	e.audit.Write(map[string]any{
		"event": "voucher.generate", "batch": batch,
		"count": count, "duration": durationSeconds,
	})
	return out, nil
}

func (e *Engine) createOne(ctx context.Context, batch string, durationSeconds int) (store.Voucher, error) {
	for attempt := 0; attempt < createRetries; attempt++ {
		code, err := newCode()
		if err != nil {
			return store.Voucher{}, err
		}
		v := store.Voucher{
			Code:            code,
			DurationSeconds: durationSeconds,
			Batch:           batch,
			CreatedAt:       time.Now(),
		}
		err = e.vouchers.Create(ctx, v)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, store.ErrVoucherExists) {
			continue
		}
		return store.Voucher{}, ErrStoreUnavailable
	}
	return store.Voucher{}, fmt.Errorf("voucher code space exhausted after %d attempts", createRetries)
}
