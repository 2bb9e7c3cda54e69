package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// Logger writes HMAC-signed JSON audit events, one per line. With audit
// disabled every Write is a no-op, so call sites never need to guard.
type Logger struct {
	Enabled bool
	Secret  []byte

	mu  sync.Mutex
	out io.Writer
}

func New(enabled bool, secret string) *Logger {
	return &Logger{
		Enabled: enabled,
		Secret:  []byte(secret),
		out:     os.Stdout,
	}
}

func (l *Logger) Sign(payload []byte) string {
	m := hmac.New(sha256.New, l.Secret)
	m.Write(payload)
	return hex.EncodeToString(m.Sum(nil))
}

func (l *Logger) Write(event map[string]any) {
	if !l.Enabled {
		return
	}
	if _, ok := event["ts"]; !ok {
		event["ts"] = time.Now().Unix()
	}
	// serialize without sig first, then attach the signature
	tmp := make(map[string]any, len(event)+1)
	for k, v := range event {
		if k == "sig" {
			continue
		}
		tmp[k] = v
	}
	b, _ := json.Marshal(tmp)
	tmp["sig"] = l.Sign(b)

	out, _ := json.Marshal(tmp)
	l.mu.Lock()
	_, _ = l.out.Write(append(out, '\n'))
	l.mu.Unlock()
}
