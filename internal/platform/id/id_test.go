package id

import (
	"encoding/base32"
	"strings"
	"testing"
)

func decodeID(t *testing.T, id string) []byte {
	t.Helper()
	decoded, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(id))
	if err != nil {
		t.Fatalf("decode id %q: %v", id, err)
	}
	return decoded
}

func TestNewIDFormat(t *testing.T) {
	id, err := NewID()
	if err != nil {
		t.Fatalf("NewID returned error: %v", err)
	}
	if len(id) != 26 {
		t.Fatalf("id length = %d, want 26", len(id))
	}
	if strings.Contains(id, "=") {
		t.Errorf("id %q contains padding", id)
	}
	for _, r := range id {
		if (r < 'a' || r > 'z') && (r < '2' || r > '7') {
			t.Fatalf("id %q contains character %q outside lowercase base32", id, r)
		}
	}
	if got := len(decodeID(t, id)); got != 16 {
		t.Fatalf("decoded bytes = %d, want 16", got)
	}
}

func TestNewIDEncodesUUIDv4(t *testing.T) {
	id, err := NewID()
	if err != nil {
		t.Fatalf("NewID returned error: %v", err)
	}
	decoded := decodeID(t, id)

	if version := decoded[6] >> 4; version != 4 {
		t.Errorf("uuid version = %d, want 4", version)
	}
	if variant := decoded[8] & 0xC0; variant != 0x80 {
		t.Errorf("uuid variant = 0x%X, want 0x80", variant)
	}
}

func TestNewIDIsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for range 64 {
		id, err := NewID()
		if err != nil {
			t.Fatalf("NewID returned error: %v", err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}
