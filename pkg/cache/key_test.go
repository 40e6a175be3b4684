package cache

import (
	"encoding/json"
	"regexp"
	"testing"
)

func TestNewKeyBuilder(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "ais", want: "ais"},
		{prefix: "ais:", want: "ais"},
		{prefix: "  staging ", want: "staging"},
		{prefix: "", want: DefaultKeyPrefix},
	}

	for _, tt := range tests {
		if got := NewKeyBuilder(tt.prefix).Prefix; got != tt.want {
			t.Errorf("NewKeyBuilder(%q).Prefix = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestKeyBuilder_Entry(t *testing.T) {
	b := NewKeyBuilder("ais")

	key, err := b.Entry("search", 3, map[string]any{"originId": 1})
	if err != nil {
		t.Fatalf("Entry() error = %v", err)
	}

	pattern := regexp.MustCompile(`^ais:search:v3:[0-9a-f]{16}$`)
	if !pattern.MatchString(key) {
		t.Errorf("Entry() = %q, want match for %s", key, pattern)
	}
}

func TestKeyBuilder_Formats(t *testing.T) {
	b := NewKeyBuilder("ais")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "version", got: b.Version("search"), want: "ais:version:search"},
		{name: "raw", got: b.Raw("session:42"), want: "ais:session:42"},
		{name: "namespace pattern", got: b.NamespacePattern("search"), want: "ais:search:v*:????????????????"},
		{name: "all pattern", got: b.AllPattern(), want: "ais:*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestKeyBuilder_VersionChangesKey(t *testing.T) {
	b := NewKeyBuilder("ais")
	params := map[string]any{"id": 7}

	v1, _ := b.Entry("flight", 1, params)
	v2, _ := b.Entry("flight", 2, params)

	if v1 == v2 {
		t.Errorf("keys for version 1 and 2 are equal: %q", v1)
	}
}

type searchParams struct {
	OriginID      int    `json:"originId"`
	DestinationID int    `json:"destinationId"`
	DepartureDate string `json:"departureDate"`
}

func TestHashParams_Deterministic(t *testing.T) {
	tests := []struct {
		name string
		a    any
		b    any
	}{
		{
			name: "top-level key order",
			a:    json.RawMessage(`{"a":1,"b":2}`),
			b:    json.RawMessage(`{"b":2,"a":1}`),
		},
		{
			name: "struct and map",
			a:    searchParams{OriginID: 1, DestinationID: 2, DepartureDate: "2026-03-01"},
			b:    map[string]any{"departureDate": "2026-03-01", "destinationId": 2, "originId": 1},
		},
		{
			name: "whitespace",
			a:    json.RawMessage(`{ "a" : 1 }`),
			b:    json.RawMessage(`{"a":1}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ha, err := HashParams(tt.a)
			if err != nil {
				t.Fatalf("HashParams(a) error = %v", err)
			}
			hb, err := HashParams(tt.b)
			if err != nil {
				t.Fatalf("HashParams(b) error = %v", err)
			}
			if ha != hb {
				t.Errorf("hashes differ: %s != %s", ha, hb)
			}
			if len(ha) != 16 {
				t.Errorf("hash length = %d, want 16", len(ha))
			}
		})
	}
}

func TestHashParams_Distinct(t *testing.T) {
	tests := []struct {
		name string
		a    any
		b    any
	}{
		{name: "different values", a: map[string]any{"a": 1}, b: map[string]any{"a": 2}},
		{name: "nil and empty object", a: nil, b: map[string]any{}},
		{name: "string and number", a: "1", b: 1},
		// Only top-level keys are sorted.
		{
			name: "nested key order",
			a:    json.RawMessage(`{"filter":{"a":1,"b":2}}`),
			b:    json.RawMessage(`{"filter":{"b":2,"a":1}}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ha, _ := HashParams(tt.a)
			hb, _ := HashParams(tt.b)
			if ha == hb {
				t.Errorf("hashes equal: %s", ha)
			}
		})
	}
}

func TestHashParams_Unencodable(t *testing.T) {
	if _, err := HashParams(map[string]any{"ch": make(chan int)}); err == nil {
		t.Error("HashParams() with a channel should fail")
	}
}
