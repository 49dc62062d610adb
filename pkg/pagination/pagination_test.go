package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	cases := []struct {
		name  string
		input int
		want  int
	}{
		{"zero falls back to default", 0, DefaultLimit},
		{"negative falls back to default", -5, DefaultLimit},
		{"in range passes through", 10, 10},
		{"above max is capped", MaxLimit + 50, MaxLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeLimit(tc.input); got != tc.want {
				t.Fatalf("NormalizeLimit(%d) = %d, want %d", tc.input, got, tc.want)
			}
		})
	}
}

func TestLimitWithBuffer(t *testing.T) {
	if got := LimitWithBuffer(10); got != 11 {
		t.Fatalf("expected 11, got %d", got)
	}
	if got := LimitWithBuffer(0); got != DefaultLimit+1 {
		t.Fatalf("expected %d, got %d", DefaultLimit+1, got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	original := Cursor{
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		ID:        uuid.New(),
	}

	encoded := EncodeCursor(original)
	decoded, err := ParseCursor(encoded)
	if err != nil {
		t.Fatalf("parse cursor: %v", err)
	}
	if decoded == nil {
		t.Fatal("expected decoded cursor")
	}
	if !decoded.CreatedAt.Equal(original.CreatedAt) {
		t.Fatalf("timestamp mismatch: %v != %v", decoded.CreatedAt, original.CreatedAt)
	}
	if decoded.ID != original.ID {
		t.Fatalf("id mismatch: %s != %s", decoded.ID, original.ID)
	}
}

func TestParseCursorEmpty(t *testing.T) {
	cursor, err := ParseCursor("  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cursor != nil {
		t.Fatal("expected nil cursor for blank input")
	}
}

func TestParseCursorMalformed(t *testing.T) {
	for _, input := range []string{"not-base64!!", "bm9wZQ==", "cGlwZXxub3BlfGV4dHJh"} {
		if _, err := ParseCursor(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}
