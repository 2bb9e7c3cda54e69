package store

import (
	"context"
	"sync"
	"time"
)

// In-memory implementations for standalone mode (no redis configured).
// A hotspot box running on its own keeps state in process memory; it is
// lost on restart, which matches what the enforcement layer does anyway.

// MemVoucherStore holds vouchers in a mutex-guarded map. The mutex is
// what makes Claim a single atomic compare-and-set.
type MemVoucherStore struct {
	mu       sync.Mutex
	vouchers map[string]*Voucher
}

func NewMemVoucherStore() *MemVoucherStore {
	return &MemVoucherStore{vouchers: make(map[string]*Voucher)}
}

func (m *MemVoucherStore) Claim(_ context.Context, code string) (*Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vouchers[NormalizeCode(code)]
	if !ok {
		return nil, ErrVoucherNotFound
	}
	if v.Used {
		return nil, ErrVoucherUsed
	}
	v.Used = true
	out := *v
	return &out, nil
}

func (m *MemVoucherStore) Lookup(_ context.Context, code string) (*Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vouchers[NormalizeCode(code)]
	if !ok {
		return nil, ErrVoucherNotFound
	}
	out := *v
	return &out, nil
}

func (m *MemVoucherStore) Create(_ context.Context, v Voucher) error {
	v.Code = NormalizeCode(v.Code)
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.vouchers[v.Code]; exists {
		return ErrVoucherExists
	}
	m.vouchers[v.Code] = &v
	return nil
}

func (m *MemVoucherStore) List(_ context.Context) ([]Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Voucher, 0, len(m.vouchers))
	for _, v := range m.vouchers {
		out = append(out, *v)
	}
	return out, nil
}

func (m *MemVoucherStore) Counts(_ context.Context) (used, available int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.vouchers {
		if v.Used {
			used++
		} else {
			available++
		}
	}
	return used, available, nil
}

// MemSessionStore holds one session per MAC. Same liveness rule as the
// redis store: a record with no time left is absent, and reads delete it.
type MemSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewMemSessionStore() *MemSessionStore {
	return &MemSessionStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

func (m *MemSessionStore) Put(_ context.Context, mac, voucherCode string, durationSeconds int) (*Session, error) {
	sess := &Session{
		MAC:             NormalizeMAC(mac),
		VoucherCode:     voucherCode,
		StartTime:       m.now(),
		DurationSeconds: durationSeconds,
	}
	m.mu.Lock()
	m.sessions[sess.MAC] = sess
	m.mu.Unlock()
	out := *sess
	return &out, nil
}

func (m *MemSessionStore) Get(_ context.Context, mac string) (*Session, error) {
	key := NormalizeMAC(mac)
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[key]
	if !ok {
		return nil, nil
	}
	if sess.Expired(m.now()) {
		delete(m.sessions, key)
		return nil, nil
	}
	out := *sess
	return &out, nil
}

func (m *MemSessionStore) Delete(_ context.Context, mac string) error {
	m.mu.Lock()
	delete(m.sessions, NormalizeMAC(mac))
	m.mu.Unlock()
	return nil
}

func (m *MemSessionStore) CountLive(_ context.Context) (int, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, sess := range m.sessions {
		if !sess.Expired(now) {
			n++
		}
	}
	return n, nil
}

func (m *MemSessionStore) All(_ context.Context) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, *sess)
	}
	return out, nil
}

// MemCoinTracker is the single-slot tracker in process memory.
type MemCoinTracker struct {
	mu   sync.Mutex
	slot CoinSlot
	now  func() time.Time
}

func NewMemCoinTracker() *MemCoinTracker {
	return &MemCoinTracker{now: time.Now}
}

func (m *MemCoinTracker) RecordSeen(_ context.Context, mac string) error {
	m.mu.Lock()
	m.slot = CoinSlot{MAC: NormalizeMAC(mac), SeenAt: m.now()}
	m.mu.Unlock()
	return nil
}

func (m *MemCoinTracker) RecordPulse(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slot.SeenAt = m.now()
	return m.slot.MAC, nil
}

func (m *MemCoinTracker) ConsumeIfValid(_ context.Context) (mac string, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot := m.slot
	m.slot = CoinSlot{}
	if !slot.Valid(m.now()) {
		return "", false, nil
	}
	return slot.MAC, true, nil
}
