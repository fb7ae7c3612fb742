package core

import (
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	CategoryFood          Category = "food"
	CategoryTransport     Category = "transport"
	CategoryShopping      Category = "shopping"
	CategoryEntertainment Category = "entertainment"
	CategoryUtilities     Category = "utilities"
	CategoryHealth        Category = "health"
	CategoryTravel        Category = "travel"
	CategoryEducation     Category = "education"
	CategoryIncome        Category = "income"
	CategoryInvestment    Category = "investment"
	CategoryOther         Category = "other"
)

const (
	PaymentCash          PaymentMethod = "cash"
	PaymentCreditCard    PaymentMethod = "credit_card"
	PaymentDebitCard     PaymentMethod = "debit_card"
	PaymentBankTransfer  PaymentMethod = "bank_transfer"
	PaymentDigitalWallet PaymentMethod = "digital_wallet"
	PaymentOther         PaymentMethod = "other"
)

// DefaultCurrency is applied when an input leaves Currency empty.
const DefaultCurrency = "EUR"

type (
	TransactionType string
	Category        string
	PaymentMethod   string

	// Transaction is a single income or expense record owned by a ledger.
	Transaction struct {
		ID            string          `json:"id"`
		Amount        Money           `json:"amount"`
		Currency      string          `json:"currency"`
		Category      Category        `json:"category"`
		Description   string          `json:"description"`
		Date          time.Time       `json:"date"`
		Type          TransactionType `json:"type"`
		PaymentMethod PaymentMethod   `json:"paymentMethod"`
		Tags          []string        `json:"tags"`
		CreatedAt     time.Time       `json:"createdAt"`
		UpdatedAt     time.Time       `json:"updatedAt"`
		Synced        bool            `json:"synced"`
	}

	// TransactionInput is the payload accepted when creating a transaction.
	// Identity, timestamps and the sync flag are assigned by the store.
	TransactionInput struct {
		Amount        Money           `json:"amount"`
		Currency      string          `json:"currency"`
		Category      Category        `json:"category"`
		Description   string          `json:"description"`
		Date          time.Time       `json:"date"`
		Type          TransactionType `json:"type"`
		PaymentMethod PaymentMethod   `json:"paymentMethod"`
		Tags          []string        `json:"tags"`
	}

	// TransactionPatch carries the fields to replace on update. Nil fields are
	// left untouched; a non-nil empty Tags slice clears the tags.
	TransactionPatch struct {
		Amount        *Money           `json:"amount,omitempty"`
		Currency      *string          `json:"currency,omitempty"`
		Category      *Category        `json:"category,omitempty"`
		Description   *string          `json:"description,omitempty"`
		Date          *time.Time       `json:"date,omitempty"`
		Type          *TransactionType `json:"type,omitempty"`
		PaymentMethod *PaymentMethod   `json:"paymentMethod,omitempty"`
		Tags          []string         `json:"tags"`
	}
)

var (
	categories = []Category{
		CategoryFood, CategoryTransport, CategoryShopping, CategoryEntertainment,
		CategoryUtilities, CategoryHealth, CategoryTravel, CategoryEducation,
		CategoryIncome, CategoryInvestment, CategoryOther,
	}
	paymentMethods = []PaymentMethod{
		PaymentCash, PaymentCreditCard, PaymentDebitCard,
		PaymentBankTransfer, PaymentDigitalWallet, PaymentOther,
	}
)

// Categories returns the closed set of transaction categories.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// PaymentMethods returns the closed set of payment methods.
func PaymentMethods() []PaymentMethod {
	return append([]PaymentMethod(nil), paymentMethods...)
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (c Category) Valid() bool {
	for _, v := range categories {
		if c == v {
			return true
		}
	}
	return false
}

func (p PaymentMethod) Valid() bool {
	for _, v := range paymentMethods {
		if p == v {
			return true
		}
	}
	return false
}

// Validate checks the shape of a new transaction and reports every offending field.
func (in TransactionInput) Validate() error {
	ve := &ValidationError{}
	if err := in.Amount.Validate(); err != nil {
		ve.Add("amount")
	}
	if !validCurrency(in.Currency) {
		ve.Add("currency")
	}
	if !in.Category.Valid() {
		ve.Add("category")
	}
	if strings.TrimSpace(in.Description) == "" || len(in.Description) > MaxDescriptionLength {
		ve.Add("description")
	}
	if in.Date.IsZero() {
		ve.Add("date")
	}
	if !in.Type.Valid() {
		ve.Add("type")
	}
	if !in.PaymentMethod.Valid() {
		ve.Add("paymentMethod")
	}
	return ve.OrNil()
}

// Validate checks only the fields present in the patch.
func (p TransactionPatch) Validate() error {
	ve := &ValidationError{}
	if p.Amount != nil && p.Amount.Validate() != nil {
		ve.Add("amount")
	}
	if p.Currency != nil && !validCurrency(*p.Currency) {
		ve.Add("currency")
	}
	if p.Category != nil && !p.Category.Valid() {
		ve.Add("category")
	}
	if p.Description != nil && (strings.TrimSpace(*p.Description) == "" || len(*p.Description) > MaxDescriptionLength) {
		ve.Add("description")
	}
	if p.Date != nil && p.Date.IsZero() {
		ve.Add("date")
	}
	if p.Type != nil && !p.Type.Valid() {
		ve.Add("type")
	}
	if p.PaymentMethod != nil && !p.PaymentMethod.Valid() {
		ve.Add("paymentMethod")
	}
	return ve.OrNil()
}

// Apply merges the patch onto t. It does not touch identity, timestamps or the sync flag.
func (p TransactionPatch) Apply(t *Transaction) {
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Currency != nil {
		t.Currency = strings.ToUpper(strings.TrimSpace(*p.Currency))
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.PaymentMethod != nil {
		t.PaymentMethod = *p.PaymentMethod
	}
	if p.Tags != nil {
		t.Tags = CloneTags(p.Tags)
	}
}

// IsEmpty reports whether the patch changes nothing.
func (p TransactionPatch) IsEmpty() bool {
	return p.Amount == nil && p.Currency == nil && p.Category == nil &&
		p.Description == nil && p.Date == nil && p.Type == nil &&
		p.PaymentMethod == nil && p.Tags == nil
}

// Normalize fills defaults and trims free text. It is applied before validation.
func (in TransactionInput) Normalize() TransactionInput {
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = DefaultCurrency
	}
	in.Description = strings.TrimSpace(in.Description)
	if in.PaymentMethod == "" {
		in.PaymentMethod = PaymentOther
	}
	in.Tags = CloneTags(in.Tags)
	return in
}

// Clone returns a copy of t that shares no mutable state.
func (t Transaction) Clone() Transaction {
	t.Tags = CloneTags(t.Tags)
	return t
}

// CloneTags copies tags, dropping blanks. It always returns a non-nil slice.
func CloneTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		out = append(out, tag)
	}
	return out
}

// MaxDescriptionLength bounds free-text descriptions.
const MaxDescriptionLength = 200

func validCurrency(code string) bool {
	code = strings.TrimSpace(code)
	if len(code) != 3 {
		return false
	}
	for _, r := range strings.ToUpper(code) {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
