package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// coinRecord is the redis wire shape of the single coin-slot tracker
// slot, under <prefix>coinslot.
type coinRecord struct {
	MAC      string `json:"mac"`
	SeenUnix int64  `json:"seen_unix"`
}

// CoinTracker is the single-slot store correlating the coin acceptor's
// pulse (which carries no MAC) with the portal's HTTP flow (which
// carries a MAC but no payment signal). Last writer wins: when two
// unauthenticated clients probe inside the window the grant can go to
// the wrong one. That lossiness is the contract, not an accident.
type CoinTracker struct {
	s   *Store
	now func() time.Time
}

func NewCoinTracker(s *Store) *CoinTracker {
	return &CoinTracker{s: s, now: time.Now}
}

func (ct *CoinTracker) key() string { return ct.s.key("coinslot") }

// RecordSeen overwrites the slot with mac at the current instant.
// Called on every portal probe from a client without a live session.
func (ct *CoinTracker) RecordSeen(ctx context.Context, mac string) error {
	rec := coinRecord{MAC: NormalizeMAC(mac), SeenUnix: ct.now().Unix()}
	b, _ := json.Marshal(rec)
	if err := ct.s.rdb.Set(ctx, ct.key(), string(b), TrackerWindow).Err(); err != nil {
		return wrapErr("coinslot record", err)
	}
	return nil
}

// pulseScript refreshes the slot timestamp in place, keeping whichever
// MAC was last seen. A pulse with no prior sighting still arms the slot
// (empty MAC) so the requesting client of a coin redemption can claim it.
var pulseScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
local mac = ''
if v then mac = cjson.decode(v).mac end
redis.call('SET', KEYS[1], cjson.encode({mac=mac, seen_unix=tonumber(ARGV[1])}), 'PX', ARGV[2])
return mac
`)

// RecordPulse marks a physical coin insertion, refreshing the slot's
// validity window.
func (ct *CoinTracker) RecordPulse(ctx context.Context) (string, error) {
	px := strconv.FormatInt(int64(TrackerWindow/time.Millisecond), 10)
	mac, err := pulseScript.Run(ctx, ct.s.rdb,
		[]string{ct.key()}, ct.now().Unix(), px).Text()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", wrapErr("coinslot pulse", err)
	}
	return mac, nil
}

// consumeScript reads and clears the slot in one step so a single coin
// cannot fund two redemptions.
var consumeScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return nil end
redis.call('DEL', KEYS[1])
return v
`)

// ConsumeIfValid returns the tracked MAC when the slot is inside the
// validity window, invalidating it. ok is false for a stale or absent
// slot.
func (ct *CoinTracker) ConsumeIfValid(ctx context.Context) (mac string, ok bool, err error) {
	res, err := consumeScript.Run(ctx, ct.s.rdb, []string{ct.key()}).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapErr("coinslot consume", err)
	}
	raw, _ := res.(string)
	var rec coinRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return "", false, wrapErr("coinslot decode", err)
	}
	slot := CoinSlot{MAC: rec.MAC, SeenAt: time.Unix(rec.SeenUnix, 0)}
	if !slot.Valid(ct.now()) {
		return "", false, nil
	}
	return slot.MAC, true, nil
}
