package graph

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestUnmarshalDecimal_AcceptsFormattedStrings(t *testing.T) {
	cases := []struct {
		in       interface{}
		expected string
	}{
		{"20000", "20000"},
		{"20,000", "20000"},
		{"1,250.5 kW", "1250.5"},
		{"  -3.25kWh ", "-3.25"},
		{json.Number("0.1"), "0.1"},
		{int64(42), "42"},
	}
	for _, tc := range cases {
		d, err := UnmarshalDecimal(tc.in)
		if err != nil {
			t.Fatalf("UnmarshalDecimal(%v) error: %v", tc.in, err)
		}
		if d.String() != tc.expected {
			t.Fatalf("UnmarshalDecimal(%v) expected %s, got %s", tc.in, tc.expected, d.String())
		}
	}
}

func TestUnmarshalDecimal_RejectsGarbage(t *testing.T) {
	for _, in := range []interface{}{"", "kW", "1,5", "abc", true} {
		if _, err := UnmarshalDecimal(in); err == nil {
			t.Fatalf("UnmarshalDecimal(%v) expected error", in)
		}
	}
}

func TestMarshalDecimal(t *testing.T) {
	var buf bytes.Buffer
	MarshalDecimal(decimal.RequireFromString("1250.50")).MarshalGQL(&buf)
	if buf.String() != "1250.5" {
		t.Fatalf("MarshalDecimal wrote %s", buf.String())
	}
}
