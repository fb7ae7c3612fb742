package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	valid := map[string]int64{
		"1":      100,
		"1.0":    100,
		"1.23":   123,
		"1,23":   123,
		"0.01":   1,
		"1.005":  101,
		"1.004":  100,
		" 2.50 ": 250,
		"0":      0,
	}
	for in, want := range valid {
		t.Run(in, func(t *testing.T) {
			got, err := ParseDecimalToCents(in)
			if err != nil || got != want {
				t.Fatalf("got %d, %v; want %d", got, err, want)
			}
		})
	}

	t.Run("upper bound", func(t *testing.T) {
		got, err := ParseDecimalToCents("92233720368547758.07")
		if err != nil || got != math.MaxInt64 {
			t.Fatalf("got %d, %v; want MaxInt64", got, err)
		}
	})

	for _, in := range []string{"-1", "+1", "1e3", "abc", "1.2.3", "", "   ", "92233720368547758.08", "184467440737095516.17"} {
		t.Run("reject "+in, func(t *testing.T) {
			if _, err := ParseDecimalToCents(in); !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("want ErrInvalidAmount, got %v", err)
			}
		})
	}
}

func TestParseMoney(t *testing.T) {
	m, err := ParseMoney("12,34")
	if err != nil {
		t.Fatal(err)
	}
	if m != Cents(1234) || m.Decimal().String() != "12.34" {
		t.Fatalf("unexpected money %+v", m)
	}
	if _, err := ParseMoney("-3"); err == nil {
		t.Fatal("negative input accepted")
	}
}

func TestMoneyArithmeticAndFormat(t *testing.T) {
	if err := Cents(0).Validate(); err != nil {
		t.Fatalf("zero rejected: %v", err)
	}
	if err := Cents(100).Sub(Cents(101)).Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative result passed validation: %v", err)
	}

	for cents, want := range map[int64]string{5: "0.05", 4850: "48.50", 100000: "1000.00"} {
		if got := Cents(cents).String(); got != want {
			t.Errorf("Cents(%d) = %q, want %q", cents, got, want)
		}
	}
	if got := Cents(1999).Add(Cents(1)).String(); got != "20.00" {
		t.Errorf("Add: %q", got)
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{Cents(123456)})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"amount":"1234.56"}` {
		t.Fatalf("encoded as %s", b)
	}

	decode := func(raw string) (Money, error) {
		m := Cents(7)
		err := json.Unmarshal([]byte(raw), &m)
		return m, err
	}
	for _, raw := range []string{`"1234.56"`, `1234.56`, `" 1234.56 "`} {
		if m, err := decode(raw); err != nil || m.Cents != 123456 {
			t.Errorf("decode %s: %+v, %v", raw, m, err)
		}
	}
	if m, err := decode(`null`); err != nil || m.Cents != 7 {
		t.Errorf("null should leave the value untouched: %+v, %v", m, err)
	}
	for _, raw := range []string{`"twelve"`, `"184467440737095516.17"`, `184467440737095516.17`, `"92233720368547758.08"`, `"-0.01"`, `-5`} {
		m, err := decode(raw)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("decode %s: want ErrInvalidAmount, got %v", raw, err)
		}
		if m.Cents != 7 {
			t.Errorf("decode %s: rejected input overwrote the value with %d", raw, m.Cents)
		}
	}
	if m, err := decode(`"92233720368547758.07"`); err != nil || m.Cents != math.MaxInt64 {
		t.Errorf("largest amount: %+v, %v", m, err)
	}
}
