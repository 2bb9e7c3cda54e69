package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// VoucherStore keeps vouchers in redis, one JSON value per code under
// <prefix>voucher:<CODE>. The claim transition used=false → used=true
// runs server-side in a Lua script so two racing claims can never both
// succeed.
type VoucherStore struct {
	s *Store
}

func NewVoucherStore(s *Store) *VoucherStore {
	return &VoucherStore{s: s}
}

// claimScript flips used atomically. Returns:
//
//	nil   → code unknown
//	""    → already used
//	json  → the claimed voucher
var claimScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return nil end
local obj = cjson.decode(v)
if obj.used then return '' end
obj.used = true
redis.call('SET', KEYS[1], cjson.encode(obj))
return cjson.encode(obj)
`)

func (vs *VoucherStore) key(code string) string {
	return vs.s.key("voucher", NormalizeCode(code))
}

// Claim marks the voucher used and returns it. Exactly one concurrent
// caller wins; the rest get ErrVoucherUsed.
func (vs *VoucherStore) Claim(ctx context.Context, code string) (*Voucher, error) {
	res, err := claimScript.Run(ctx, vs.s.rdb, []string{vs.key(code)}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrVoucherNotFound
	}
	if err != nil {
		return nil, wrapErr("voucher claim", err)
	}
	raw, _ := res.(string)
	if raw == "" {
		return nil, ErrVoucherUsed
	}
	var v Voucher
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, wrapErr("voucher decode", err)
	}
	return &v, nil
}

// Lookup is the read-only path for admin listing. Not atomic with Claim
// and does not need to be.
func (vs *VoucherStore) Lookup(ctx context.Context, code string) (*Voucher, error) {
	raw, err := vs.s.rdb.Get(ctx, vs.key(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrVoucherNotFound
	}
	if err != nil {
		return nil, wrapErr("voucher lookup", err)
	}
	var v Voucher
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, wrapErr("voucher decode", err)
	}
	return &v, nil
}

// Create inserts a new voucher. ErrVoucherExists on a code collision,
// which the code generator retries on.
func (vs *VoucherStore) Create(ctx context.Context, v Voucher) error {
	v.Code = NormalizeCode(v.Code)
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return wrapErr("voucher encode", err)
	}
	ok, err := vs.s.rdb.SetNX(ctx, vs.key(v.Code), string(b), 0).Result()
	if err != nil {
		return wrapErr("voucher create", err)
	}
	if !ok {
		return ErrVoucherExists
	}
	return nil
}

// List returns every voucher, used and unused. Vouchers are never
// deleted so this is the full history.
func (vs *VoucherStore) List(ctx context.Context) ([]Voucher, error) {
	var out []Voucher
	iter := vs.s.rdb.Scan(ctx, 0, vs.s.key("voucher", "*"), 100).Iterator()
	for iter.Next(ctx) {
		raw, err := vs.s.rdb.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, wrapErr("voucher list", err)
		}
		var v Voucher
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	if err := iter.Err(); err != nil {
		return nil, wrapErr("voucher scan", err)
	}
	return out, nil
}

// Counts reports used / available totals for the dashboard tap.
func (vs *VoucherStore) Counts(ctx context.Context) (used, available int, err error) {
	all, err := vs.List(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, v := range all {
		if v.Used {
			used++
		} else {
			available++
		}
	}
	return used, available, nil
}
