package audit

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestWrite_SignedEvent(t *testing.T) {
	var buf bytes.Buffer
	l := New(true, "audit-secret")
	l.out = &buf

	l.Write(map[string]any{"event": "voucher.redeem", "mac": "aa:bb:cc:dd:ee:ff"})

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not one JSON line: %v", err)
	}
	if got["event"] != "voucher.redeem" {
		t.Fatalf("event: %v", got["event"])
	}
	if _, ok := got["ts"]; !ok {
		t.Fatalf("missing timestamp")
	}
	sig, _ := got["sig"].(string)
	if sig == "" {
		t.Fatalf("missing signature")
	}

	// signature must cover the payload without the sig field
	delete(got, "sig")
	payload, _ := json.Marshal(got)
	if l.Sign(payload) != sig {
		t.Fatalf("signature does not verify")
	}
}

func TestWrite_DisabledIsNoop(t *testing.T) {
	var buf bytes.Buffer
	l := New(false, "")
	l.out = &buf

	l.Write(map[string]any{"event": "x"})
	if buf.Len() != 0 {
		t.Fatalf("disabled logger must write nothing")
	}
}
