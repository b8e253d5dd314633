package utils

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseDecimal(t *testing.T) {
	cases := map[string]string{
		"12,500.5":  "12500.5",
		"1,234,567": "1234567",
		"-2,000":    "-2000",
		" 42 ":      "42",
		"-3.25":     "-3.25",
	}
	for in, want := range cases {
		got, err := ParseDecimal(in)
		if err != nil {
			t.Fatalf("ParseDecimal(%q): %v", in, err)
		}
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("ParseDecimal(%q): got %s want %s", in, got, want)
		}
	}
	for _, in := range []string{"", "abc", "1.2.3", "1,5", "1,,2", ",7,", "12,50", "1,2345", "1,000.5,0"} {
		if _, err := ParseDecimal(in); err == nil {
			t.Fatalf("ParseDecimal(%q): expected error", in)
		}
	}
}

func TestUniqueSliceKeepsFirstOccurrence(t *testing.T) {
	got := UniqueSlice([]string{"b", "a", "b", "c", "a"})
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestConvertToDate(t *testing.T) {
	ts := time.Date(2025, 8, 20, 20, 0, 0, 0, time.UTC)
	got, err := ConvertToDate(ts, "Asia/Kolkata")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	if got.Day() != 21 || got.Hour() != 0 {
		t.Fatalf("got %s want 2025-08-21 00:00 local", got)
	}
}

func TestJwtRoundTrip(t *testing.T) {
	t.Setenv("API_SECRET", "test-secret")
	token, err := JwtGenerate(JwtCustomClaim{ID: 3, Username: "op@site", Name: "Operator", ClientId: "client-1", Role: "operator"})
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	parsed, err := JwtValidate(token)
	if err != nil || !parsed.Valid {
		t.Fatalf("JwtValidate: %v", err)
	}
	claims, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok || claims.ClientId != "client-1" || claims.ID != 3 {
		t.Fatalf("claims: %+v", parsed.Claims)
	}

	t.Setenv("API_SECRET", "other-secret")
	if _, err := JwtValidate(token); err == nil {
		t.Fatalf("token accepted with the wrong secret")
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := SetClientIdInContext(context.Background(), "client-1")
	ctx = SetUserIdInContext(ctx, 9)
	if v, ok := GetClientIdFromContext(ctx); !ok || v != "client-1" {
		t.Fatalf("client id: %q %v", v, ok)
	}
	if v, ok := GetUserIdFromContext(ctx); !ok || v != 9 {
		t.Fatalf("user id: %d %v", v, ok)
	}
	if _, ok := GetSiteIdFromContext(ctx); ok {
		t.Fatalf("site id present without being set")
	}
}
