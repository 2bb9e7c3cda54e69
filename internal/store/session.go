package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// expiryGrace is added on top of the session duration for the redis key
// TTL. The TTL is a janitorial backstop only: expiry is decided from the
// stored start time, and the grace keeps expired records visible long
// enough for the sweep to revoke their NAC authorization.
const expiryGrace = time.Hour

// sessionRecord is the redis wire shape. Start time goes over as a unix
// second so the lazy-expiry Lua script can do arithmetic on it.
type sessionRecord struct {
	MAC             string `json:"mac"`
	VoucherCode     string `json:"voucher_code,omitempty"`
	StartUnix       int64  `json:"start_unix"`
	DurationSeconds int    `json:"duration_seconds"`
}

func (r sessionRecord) session() *Session {
	return &Session{
		MAC:             r.MAC,
		VoucherCode:     r.VoucherCode,
		StartTime:       time.Unix(r.StartUnix, 0),
		DurationSeconds: r.DurationSeconds,
	}
}

// SessionStore keeps one session per client MAC under
// <prefix>session:<mac>. Reads compute remaining time from the wall
// clock and lazily delete records that have run out.
type SessionStore struct {
	s   *Store
	now func() time.Time
}

func NewSessionStore(s *Store) *SessionStore {
	return &SessionStore{s: s, now: time.Now}
}

// getScript deletes-on-read when the record has no time left, so a
// status poll never sees a dead session. Concurrent sweep deletion of
// the same key is harmless: DEL on a missing key is a no-op.
var getScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return nil end
local obj = cjson.decode(v)
if tonumber(ARGV[1]) - obj.start_unix >= obj.duration_seconds then
  redis.call('DEL', KEYS[1])
  return nil
end
return v
`)

func (ss *SessionStore) key(mac string) string {
	return ss.s.key("session", NormalizeMAC(mac))
}

// Put creates the session for mac, unconditionally replacing any prior
// one. Grants never stack.
func (ss *SessionStore) Put(ctx context.Context, mac, voucherCode string, durationSeconds int) (*Session, error) {
	rec := sessionRecord{
		MAC:             NormalizeMAC(mac),
		VoucherCode:     voucherCode,
		StartUnix:       ss.now().Unix(),
		DurationSeconds: durationSeconds,
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, wrapErr("session encode", err)
	}
	ttl := time.Duration(durationSeconds)*time.Second + expiryGrace
	if err := ss.s.rdb.Set(ctx, ss.key(mac), string(b), ttl).Err(); err != nil {
		return nil, wrapErr("session put", err)
	}
	return rec.session(), nil
}

// Get returns the live session for mac, or (nil, nil) when there is
// none. An expired record counts as none and is deleted on the way out.
func (ss *SessionStore) Get(ctx context.Context, mac string) (*Session, error) {
	now := strconv.FormatInt(ss.now().Unix(), 10)
	res, err := getScript.Run(ctx, ss.s.rdb, []string{ss.key(mac)}, now).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("session get", err)
	}
	raw, _ := res.(string)
	var rec sessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, wrapErr("session decode", err)
	}
	return rec.session(), nil
}

// Delete removes the session for mac. Idempotent.
func (ss *SessionStore) Delete(ctx context.Context, mac string) error {
	if err := ss.s.rdb.Del(ctx, ss.key(mac)).Err(); err != nil {
		return wrapErr("session delete", err)
	}
	return nil
}

// CountLive counts sessions under the same liveness rule Get applies.
func (ss *SessionStore) CountLive(ctx context.Context) (int, error) {
	all, err := ss.All(ctx)
	if err != nil {
		return 0, err
	}
	now := ss.now()
	n := 0
	for _, sess := range all {
		if !sess.Expired(now) {
			n++
		}
	}
	return n, nil
}

// All enumerates raw session records, expired ones included, with no
// lazy-delete side effect. The sweep uses this to find sessions whose
// NAC authorization still needs revoking.
func (ss *SessionStore) All(ctx context.Context) ([]Session, error) {
	var out []Session
	iter := ss.s.rdb.Scan(ctx, 0, ss.s.key("session", "*"), 100).Iterator()
	for iter.Next(ctx) {
		raw, err := ss.s.rdb.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, wrapErr("session list", err)
		}
		var rec sessionRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		out = append(out, *rec.session())
	}
	if err := iter.Err(); err != nil {
		return nil, wrapErr("session scan", err)
	}
	return out, nil
}
