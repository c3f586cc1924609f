package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseTransactionType(t *testing.T) {
	tests := []struct {
		in      string
		want    TransactionType
		wantErr bool
	}{
		{"income", Income, false},
		{" Expense ", Expense, false},
		{"transfer", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTransactionType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTransactionType(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseTransactionType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseOTPPurpose(t *testing.T) {
	if p, err := ParseOTPPurpose(""); err != nil || p != PurposeVerification {
		t.Errorf("empty purpose = %q, %v; want verification", p, err)
	}
	if p, err := ParseOTPPurpose("PASSWORD"); err != nil || p != PurposePassword {
		t.Errorf("PASSWORD = %q, %v", p, err)
	}
	if _, err := ParseOTPPurpose("login"); !errors.Is(err, ErrInvalidPurpose) {
		t.Errorf("login error = %v", err)
	}
}

func TestBudgetValidate(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		b    Budget
		want error
	}{
		{"valid", Budget{AmountLimit: NewMoney(100), StartDate: start, EndDate: start.AddDate(0, 1, 0)}, nil},
		{"zero limit", Budget{StartDate: start, EndDate: start.AddDate(0, 1, 0)}, ErrInvalidAmount},
		{"empty period", Budget{AmountLimit: NewMoney(100), StartDate: start, EndDate: start}, ErrInvalidPeriod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.b.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBudgetCoversIsHalfOpen(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	b := Budget{StartDate: start, EndDate: start.AddDate(0, 1, 0)}
	if !b.Covers(start) {
		t.Error("start instant should be covered")
	}
	if b.Covers(b.EndDate) {
		t.Error("end instant should not be covered")
	}
	if b.Covers(start.Add(-time.Nanosecond)) {
		t.Error("instant before start should not be covered")
	}
}

func TestErrorKinds(t *testing.T) {
	err := error(NotFoundf("Budget not found"))
	if KindOf(err) != KindNotFound {
		t.Errorf("KindOf = %v", KindOf(err))
	}
	if KindOf(err).HTTPStatus() != 404 {
		t.Errorf("status = %d", KindOf(err).HTTPStatus())
	}
	if MessageOf(err) != "Budget not found" {
		t.Errorf("message = %q", MessageOf(err))
	}
	plain := errors.New("boom")
	if KindOf(plain) != KindInternal || MessageOf(plain) != "Internal server error" {
		t.Error("plain errors should be internal")
	}
	wrapped := Internal("load budgets", plain)
	if !errors.Is(wrapped, plain) {
		t.Error("Internal should unwrap to its cause")
	}
}
