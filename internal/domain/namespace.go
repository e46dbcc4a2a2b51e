package domain

import (
	"strings"

	"github.com/google/uuid"
)

// NamespaceSeparator joins owner and currency in Namespace.Join.
const NamespaceSeparator = ":"

// Namespace identifies one ledger row: an owner key plus a currency name.
// It is a comparable value and can be used directly as a map key.
type Namespace struct {
	Owner    string `json:"owner"`
	Currency string `json:"currency"`
}

// NewNamespace builds a namespace from its two parts.
func NewNamespace(owner, currency string) Namespace {
	return Namespace{Owner: owner, Currency: currency}
}

// NamespaceOf builds the namespace of a subject's balance in currency.
func NamespaceOf(subjectID uuid.UUID, currency string) Namespace {
	return Namespace{Owner: subjectID.String(), Currency: currency}
}

// Join returns the canonical single-string form used for cache keys and logs.
func (n Namespace) Join() string {
	return n.Owner + NamespaceSeparator + n.Currency
}

func (n Namespace) String() string { return n.Join() }

// SubjectID parses the owner key as a subject UUID.
func (n Namespace) SubjectID() (uuid.UUID, error) {
	id, err := uuid.Parse(n.Owner)
	if err != nil {
		return uuid.Nil, Invalid("owner", "not a subject id: %q", n.Owner)
	}
	return id, nil
}

// Validate rejects namespaces with a blank part.
func (n Namespace) Validate() error {
	if strings.TrimSpace(n.Owner) == "" {
		return Invalid("owner", "must not be blank")
	}
	if strings.TrimSpace(n.Currency) == "" {
		return Invalid("currency", "must not be blank")
	}
	return nil
}
