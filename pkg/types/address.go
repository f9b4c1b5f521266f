package types

import (
	"fmt"
	"strings"
)

// Address is the shipping address copied onto an order at creation time so
// later edits to the address book do not rewrite order history.
type Address struct {
	Recipient string `json:"recipient"`
	Phone     string `json:"phone"`
	Line      string `json:"line"`
	Ward      string `json:"ward,omitempty"`
	District  string `json:"district,omitempty"`
	City      string `json:"city"`
}

// Validate reports the first missing required field.
func (a Address) Validate() error {
	switch {
	case strings.TrimSpace(a.Recipient) == "":
		return fmt.Errorf("address: missing recipient")
	case strings.TrimSpace(a.Phone) == "":
		return fmt.Errorf("address: missing phone")
	case strings.TrimSpace(a.Line) == "":
		return fmt.Errorf("address: missing line")
	case strings.TrimSpace(a.City) == "":
		return fmt.Errorf("address: missing city")
	}
	return nil
}

// String renders the address on one line for payment descriptions and logs.
func (a Address) String() string {
	parts := []string{a.Line}
	for _, p := range []string{a.Ward, a.District, a.City} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
