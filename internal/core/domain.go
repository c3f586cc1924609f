package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	ProviderGoogle Provider = "google"
	ProviderEmail  Provider = "email"
)

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
)

const (
	PurposePassword     OTPPurpose = "password"
	PurposeVerification OTPPurpose = "verification"
)

type (
	TransactionType string
	Provider        string
	Role            string
	OTPPurpose      string

	User struct {
		ID            string     `json:"id"`
		UID           string     `json:"uid,omitempty"`
		Email         string     `json:"email"`
		PasswordHash  string     `json:"-"`
		Name          string     `json:"name"`
		Provider      Provider   `json:"provider"`
		Phone         string     `json:"phone,omitempty"`
		PhotoURL      string     `json:"photoURL,omitempty"`
		Company       string     `json:"company,omitempty"`
		EmailVerified bool       `json:"emailVerified"`
		IsActive      bool       `json:"isActive"`
		Role          Role       `json:"role"`
		LastLogin     *time.Time `json:"lastLogin,omitempty"`
		CreatedAt     time.Time  `json:"createdAt"`
		UpdatedAt     time.Time  `json:"updatedAt"`
	}

	Category struct {
		ID        string          `json:"id"`
		UserID    string          `json:"userId"`
		Name      string          `json:"name"`
		Type      TransactionType `json:"type"`
		Icon      string          `json:"icon,omitempty"`
		CreatedAt time.Time       `json:"createdAt"`
		UpdatedAt time.Time       `json:"updatedAt"`
	}

	// Transaction carries the resolved category name on reads.
	Transaction struct {
		ID          string          `json:"id"`
		UserID      string          `json:"userId"`
		CategoryID  string          `json:"categoryId"`
		Category    string          `json:"category,omitempty"`
		Amount      Money           `json:"amount"`
		Type        TransactionType `json:"type"`
		Description string          `json:"description"`
		Date        time.Time       `json:"date"`
		CreatedAt   time.Time       `json:"createdAt"`
		UpdatedAt   time.Time       `json:"updatedAt"`
	}

	// Budget covers the half-open period [StartDate, EndDate).
	Budget struct {
		ID          string    `json:"id"`
		UserID      string    `json:"userId"`
		CategoryID  string    `json:"categoryId"`
		Category    string    `json:"category,omitempty"`
		AmountLimit Money     `json:"amountLimit"`
		StartDate   time.Time `json:"startDate"`
		EndDate     time.Time `json:"endDate"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	// BudgetUsage is a budget with its derived spend figures.
	BudgetUsage struct {
		Budget
		SpentAmount     Money   `json:"spentAmount"`
		RemainingAmount Money   `json:"remainingAmount"`
		Percentage      float64 `json:"percentage"`
	}

	OTP struct {
		ID        string
		Email     string
		Purpose   OTPPurpose
		CodeHash  string
		Attempts  int
		ExpiresAt time.Time
		CreatedAt time.Time
	}
)

var (
	ErrInvalidType    = errors.New("invalid transaction type")
	ErrInvalidPurpose = errors.New("invalid otp purpose")
	ErrEmptyName      = errors.New("empty name")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidPeriod  = errors.New("end date must be after start date")
)

// ParseTransactionType normalizes s and checks it names a known type.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func ParseOTPPurpose(s string) (OTPPurpose, error) {
	switch p := OTPPurpose(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PurposeVerification, nil
	case PurposePassword, PurposeVerification:
		return p, nil
	default:
		return "", ErrInvalidPurpose
	}
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (b Budget) Validate() error {
	if b.AmountLimit.Cents <= 0 {
		return ErrInvalidAmount
	}
	if !b.EndDate.After(b.StartDate) {
		return ErrInvalidPeriod
	}
	return nil
}

// Covers reports whether t falls inside the budget period.
func (b Budget) Covers(t time.Time) bool {
	return !t.Before(b.StartDate) && t.Before(b.EndDate)
}

func (o OTP) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}
