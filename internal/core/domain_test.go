package core

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func validInput() TransactionInput {
	return TransactionInput{
		Amount:        Cents(1000),
		Currency:      "eur",
		Category:      CategoryFood,
		Description:   " lunch ",
		Date:          time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC),
		Type:          Expense,
		PaymentMethod: PaymentCash,
		Tags:          []string{"work", " ", "team"},
	}
}

func TestTransactionInputValidate(t *testing.T) {
	in := validInput().Normalize()
	if err := in.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if in.Currency != "EUR" || in.Description != "lunch" {
		t.Fatalf("normalize did not clean input: %+v", in)
	}
	if !reflect.DeepEqual(in.Tags, []string{"work", "team"}) {
		t.Fatalf("unexpected tags: %v", in.Tags)
	}
}

func TestTransactionInputValidateListsFields(t *testing.T) {
	in := TransactionInput{
		Amount:        Cents(-5),
		Currency:      "EURO",
		Category:      "groceries",
		Description:   "   ",
		Type:          "refund",
		PaymentMethod: "cheque",
	}
	err := in.Validate()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	want := []string{"amount", "currency", "category", "description", "date", "type", "paymentMethod"}
	if !reflect.DeepEqual(ve.Fields, want) {
		t.Fatalf("fields = %v, want %v", ve.Fields, want)
	}
	if !IsValidationError(err) {
		t.Fatalf("IsValidationError should match")
	}
}

func TestNormalizeDefaults(t *testing.T) {
	in := TransactionInput{Description: "x"}.Normalize()
	if in.Currency != DefaultCurrency {
		t.Fatalf("currency default = %q", in.Currency)
	}
	if in.PaymentMethod != PaymentOther {
		t.Fatalf("payment default = %q", in.PaymentMethod)
	}
	if in.Tags == nil {
		t.Fatalf("tags should be non-nil")
	}
}

func TestTransactionPatch(t *testing.T) {
	empty := ""
	if err := (TransactionPatch{Description: &empty}).Validate(); err == nil {
		t.Fatalf("expected error for empty description")
	}
	if !(TransactionPatch{}).IsEmpty() {
		t.Fatalf("zero patch should be empty")
	}

	tx := Transaction{ID: "a", Description: "old", Tags: []string{"x"}, Amount: Cents(1)}
	desc := "new"
	amt := Cents(42)
	TransactionPatch{Description: &desc, Amount: &amt}.Apply(&tx)
	if tx.Description != "new" || tx.Amount.Cents != 42 || tx.ID != "a" {
		t.Fatalf("unexpected merge: %+v", tx)
	}
	if len(tx.Tags) != 1 {
		t.Fatalf("nil tags must leave tags untouched")
	}
	TransactionPatch{Tags: []string{}}.Apply(&tx)
	if len(tx.Tags) != 0 {
		t.Fatalf("empty tags must clear, got %v", tx.Tags)
	}
}

func TestCalendarEventOccursOn(t *testing.T) {
	day := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		ev   CalendarEvent
		want bool
	}{
		{"timed same day", CalendarEvent{StartDate: day.Add(9 * time.Hour), EndDate: day.Add(10 * time.Hour)}, true},
		{"timed previous day", CalendarEvent{StartDate: day.Add(-5 * time.Hour), EndDate: day.Add(-4 * time.Hour)}, false},
		{"timed spanning midnight", CalendarEvent{StartDate: day.Add(-1 * time.Hour), EndDate: day.Add(1 * time.Hour)}, true},
		{"all day single", CalendarEvent{IsAllDay: true, StartDate: day, EndDate: day}, true},
		{"all day range", CalendarEvent{IsAllDay: true, StartDate: day.AddDate(0, 0, -2), EndDate: day.AddDate(0, 0, 1)}, true},
		{"all day before", CalendarEvent{IsAllDay: true, StartDate: day.AddDate(0, 0, -2), EndDate: day.AddDate(0, 0, -1)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.ev.OccursOn(day.Add(13 * time.Hour)); got != tc.want {
				t.Fatalf("OccursOn = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEventInputValidate(t *testing.T) {
	start := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
	if err := (EventInput{Title: "standup", StartDate: start, EndDate: start.Add(time.Hour)}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	err := EventInput{Title: "", StartDate: start, EndDate: start.Add(-time.Hour)}.Validate()
	var ve *ValidationError
	if !errors.As(err, &ve) || !reflect.DeepEqual(ve.Fields, []string{"title", "endDate"}) {
		t.Fatalf("unexpected validation result: %v", err)
	}
}
