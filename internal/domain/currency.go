package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxAbbreviationLength bounds Currency.Abbreviation, in runes.
const MaxAbbreviationLength = 3

// Currency describes a virtual currency. The name is its identity and never
// changes; the descriptive fields are replaced with the Swap methods, which
// hand back the previous value.
type Currency struct {
	name         string
	displayName  string
	pluralName   string
	abbreviation string
	symbol       rune
}

// NewCurrency creates a currency with only its name set.
func NewCurrency(name string) (Currency, error) {
	if strings.TrimSpace(name) == "" {
		return Currency{}, Invalid("name", "must not be blank")
	}
	return Currency{name: name}, nil
}

func (c Currency) Name() string         { return c.name }
func (c Currency) DisplayName() string  { return c.displayName }
func (c Currency) PluralName() string   { return c.pluralName }
func (c Currency) Abbreviation() string { return c.abbreviation }
func (c Currency) Symbol() rune         { return c.symbol }

// SwapDisplayName replaces the display name. Blank input clears it.
func (c *Currency) SwapDisplayName(v string) Response[string] {
	return swapString(&c.displayName, v)
}

// SwapPluralName replaces the plural name. Blank input clears it.
func (c *Currency) SwapPluralName(v string) Response[string] {
	return swapString(&c.pluralName, v)
}

// SwapAbbreviation replaces the abbreviation, at most three runes long.
func (c *Currency) SwapAbbreviation(v string) Response[string] {
	if utf8.RuneCountInString(strings.TrimSpace(v)) > MaxAbbreviationLength {
		return Fail[string](Invalid("abbreviation", "longer than %d characters", MaxAbbreviationLength))
	}
	return swapString(&c.abbreviation, v)
}

// SwapSymbol replaces the symbol. Zero clears it.
func (c *Currency) SwapSymbol(v rune) Response[rune] {
	prev := c.symbol
	c.symbol = v
	if prev == 0 {
		return Empty[rune]()
	}
	return OK(prev)
}

// Validate checks the invariants a stored currency must hold.
func (c Currency) Validate() error {
	if strings.TrimSpace(c.name) == "" {
		return Invalid("name", "must not be blank")
	}
	if utf8.RuneCountInString(c.abbreviation) > MaxAbbreviationLength {
		return Invalid("abbreviation", "longer than %d characters", MaxAbbreviationLength)
	}
	return nil
}

// Format renders amount with the currency's symbol and name.
func (c Currency) Format(amount float64) string {
	label := c.displayName
	if amount != 1 && c.pluralName != "" {
		label = c.pluralName
	}
	if label == "" {
		label = c.name
	}
	out := strings.TrimRight(strings.TrimRight(strconv.FormatFloat(amount, 'f', 2, 64), "0"), ".")
	if c.symbol != 0 {
		out = string(c.symbol) + out
	}
	return out + " " + label
}

type currencyJSON struct {
	Name         string `json:"name"`
	DisplayName  string `json:"display_name,omitempty"`
	PluralName   string `json:"plural_name,omitempty"`
	Abbreviation string `json:"abbreviation,omitempty"`
	Symbol       string `json:"symbol,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (c Currency) MarshalJSON() ([]byte, error) {
	return json.Marshal(currencyJSON{
		Name:         c.name,
		DisplayName:  c.displayName,
		PluralName:   c.pluralName,
		Abbreviation: c.abbreviation,
		Symbol:       SymbolString(c.symbol),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Currency) UnmarshalJSON(data []byte) error {
	var w currencyJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = RestoreCurrency(w.Name, w.DisplayName, w.PluralName, w.Abbreviation, ParseSymbol(w.Symbol))
	return nil
}

// RestoreCurrency rebuilds a currency from stored columns.
func RestoreCurrency(name, displayName, pluralName, abbreviation string, symbol rune) Currency {
	return Currency{
		name:         name,
		displayName:  displayName,
		pluralName:   pluralName,
		abbreviation: abbreviation,
		symbol:       symbol,
	}
}

// SymbolString is the stored form of a symbol; zero is the empty string.
func SymbolString(r rune) string {
	if r == 0 {
		return ""
	}
	return string(r)
}

// ParseSymbol returns the first rune of s, or zero for an empty string.
func ParseSymbol(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return 0
	}
	return r
}

func swapString(field *string, v string) Response[string] {
	prev := *field
	if strings.TrimSpace(v) == "" {
		v = ""
	}
	*field = v
	if prev == "" {
		return Empty[string]()
	}
	return OK(prev)
}
