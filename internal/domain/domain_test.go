package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/uuid"
)

func TestNamespaceJoin(t *testing.T) {
	id := uuid.New()
	a := NamespaceOf(id, "gold")
	b := NewNamespace(id.String(), "gold")

	if a != b {
		t.Fatalf("namespaces with equal fields should be equal: %v != %v", a, b)
	}
	if a.Join() != b.Join() {
		t.Errorf("Join mismatch: %q != %q", a.Join(), b.Join())
	}
	if want := id.String() + ":gold"; a.Join() != want {
		t.Errorf("Join() = %q, want %q", a.Join(), want)
	}

	seen := map[Namespace]int{a: 1}
	if seen[b] != 1 {
		t.Error("namespace should work as a map key by value")
	}

	got, err := a.SubjectID()
	if err != nil || got != id {
		t.Errorf("SubjectID() = %v, %v; want %v", got, err, id)
	}
}

func TestNamespaceValidate(t *testing.T) {
	tests := []struct {
		name    string
		ns      Namespace
		wantErr bool
	}{
		{"valid", NewNamespace("owner", "gold"), false},
		{"blank owner", NewNamespace(" ", "gold"), true},
		{"blank currency", NewNamespace("owner", ""), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ns.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestResponse(t *testing.T) {
	ok := OK(42.0)
	if v, present := ok.Get(); !present || v != 42.0 {
		t.Errorf("OK.Get() = %v, %v", v, present)
	}
	if ok.Err() != nil {
		t.Errorf("OK response should have no cause, got %v", ok.Err())
	}

	empty := Empty[[]Currency]()
	if !empty.IsOK() {
		t.Error("Empty should be OK")
	}
	if _, present := empty.Get(); present {
		t.Error("Empty should carry no value")
	}

	failed := Fail[float64](nil)
	if !failed.IsError() || !errors.Is(failed.Cause, ErrStore) {
		t.Errorf("Fail(nil) should default to ErrStore, got %v", failed.Cause)
	}
	if _, err := failed.Unwrap(); err == nil {
		t.Error("Unwrap on ERROR should return the cause")
	}
	if got := failed.OrElse(7); got != 7 {
		t.Errorf("OrElse() = %v, want 7", got)
	}

	recast := Recast[bool](failed)
	if !recast.IsError() || recast.Cause != failed.Cause {
		t.Error("Recast should carry the cause over")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{Invalid("amount", "negative"), KindValidation},
		{NotFound("transaction", "x"), KindNotFound},
		{fmt.Errorf("%w: loader: %w", ErrCacheLoad, NotFound("subject", "y")), KindNotFound},
		{fmt.Errorf("%w: boom", ErrCacheLoad), KindCacheLoad},
		{fmt.Errorf("withdraw: %w", ErrInsufficientFunds), KindInsufficientFunds},
		{errors.New("connection reset"), KindStore},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestTransactionValue(t *testing.T) {
	id := uuid.New()
	tx := NewTransaction(id, "gold", 100)
	next := tx.WithAmount(60)

	if tx.Amount != 100 {
		t.Errorf("WithAmount must not mutate the receiver, got %v", tx.Amount)
	}
	if next.Amount != 60 || next.Namespace() != tx.Namespace() {
		t.Errorf("unexpected copy: %+v", next)
	}

	if err := tx.WithAmount(-5).Validate(); err != nil {
		t.Errorf("negative amounts are valid rows: %v", err)
	}
	if err := tx.WithAmount(math.NaN()).Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("NaN should be rejected, got %v", err)
	}
	if err := (Transaction{Currency: "gold"}).Validate(); err == nil {
		t.Error("nil subject id should be rejected")
	}
}

func TestCurrencySwap(t *testing.T) {
	c, err := NewCurrency("gold")
	if err != nil {
		t.Fatalf("NewCurrency() error = %v", err)
	}

	if _, present := c.SwapDisplayName("Gold").Get(); present {
		t.Error("first swap should return no previous value")
	}
	prev := c.SwapDisplayName("Gold Coin")
	if v, _ := prev.Get(); v != "Gold" {
		t.Errorf("previous display name = %q, want Gold", v)
	}
	if c.DisplayName() != "Gold Coin" {
		t.Errorf("DisplayName() = %q", c.DisplayName())
	}

	c.SwapDisplayName("   ")
	if c.DisplayName() != "" {
		t.Errorf("blank input should clear the field, got %q", c.DisplayName())
	}

	if r := c.SwapAbbreviation("GOLD"); !r.IsError() {
		t.Error("abbreviation longer than 3 should fail")
	}
	if c.Abbreviation() != "" {
		t.Error("failed swap must not change the field")
	}
	c.SwapAbbreviation("GLD")

	c.SwapSymbol('$')
	if v, _ := c.SwapSymbol('¤').Get(); v != '$' {
		t.Errorf("previous symbol = %q", v)
	}

	if _, err := NewCurrency(""); !errors.Is(err, ErrValidation) {
		t.Errorf("blank name should be rejected, got %v", err)
	}
}

func TestCurrencyJSON(t *testing.T) {
	c := RestoreCurrency("gold", "Gold", "Golds", "GLD", '¤')

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Failed to marshal currency: %v", err)
	}

	var back Currency
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Failed to unmarshal currency: %v", err)
	}
	if back != c {
		t.Errorf("round trip mismatch: %+v != %+v", back, c)
	}
}

func TestCurrencyFormat(t *testing.T) {
	c := RestoreCurrency("gold", "Gold", "Golds", "GLD", '¤')

	tests := []struct {
		amount float64
		want   string
	}{
		{1, "¤1 Gold"},
		{100, "¤100 Golds"},
		{2.5, "¤2.5 Golds"},
	}
	for _, tt := range tests {
		if got := c.Format(tt.amount); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.amount, got, tt.want)
		}
	}

	bare := RestoreCurrency("silver", "", "", "", 0)
	if got := bare.Format(3); got != "3 silver" {
		t.Errorf("Format without labels = %q", got)
	}
}

func TestSubjectNickname(t *testing.T) {
	id := uuid.New()
	s, err := NewSubject(id, "")
	if err != nil {
		t.Fatalf("NewSubject() error = %v", err)
	}

	if r := s.Nickname(); !r.IsError() || !errors.Is(r.Cause, ErrNoNickname) {
		t.Errorf("missing nickname should be an ERROR, got %+v", r)
	}

	s.SwapNickname("steve")
	if prev := s.SwapNickname("alex"); prev.OrElse("") != "steve" {
		t.Errorf("previous nickname = %q", prev.OrElse(""))
	}
	if v, _ := s.Nickname().Get(); v != "alex" {
		t.Errorf("Nickname() = %q", v)
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Failed to marshal subject: %v", err)
	}
	var back Subject
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Failed to unmarshal subject: %v", err)
	}
	if back != s {
		t.Errorf("round trip mismatch: %+v != %+v", back, s)
	}

	if _, err := NewSubject(uuid.Nil, "x"); err == nil {
		t.Error("nil id should be rejected")
	}
}
