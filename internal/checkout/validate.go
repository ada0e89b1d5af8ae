// Package checkout implements guest checkout: form validation, the
// submission state machine and clearing the cart after an order.
package checkout

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Form field names, matching the order payload keys.
const (
	FieldName    = "guest_name"
	FieldEmail   = "guest_email"
	FieldAddress = "shipping_address"
	FieldPhone   = "phone"
	FieldNotes   = "notes"
)

var (
	emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)
	phonePattern = regexp.MustCompile(`^\d{10,}$`)
)

// Form holds the guest contact fields.
type Form struct {
	GuestName       string `json:"guest_name"`
	GuestEmail      string `json:"guest_email"`
	ShippingAddress string `json:"shipping_address"`
	Phone           string `json:"phone"`
	Notes           string `json:"notes"`
}

// Set updates one field by name.
func (f *Form) Set(name, value string) error {
	switch name {
	case FieldName:
		f.GuestName = value
	case FieldEmail:
		f.GuestEmail = value
	case FieldAddress:
		f.ShippingAddress = value
	case FieldPhone:
		f.Phone = value
	case FieldNotes:
		f.Notes = value
	default:
		return fmt.Errorf("checkout: unknown field %q", name)
	}
	return nil
}

// FieldErrors maps a field name to its message. Empty means the form is valid.
type FieldErrors map[string]string

// ValidationError blocks a submission. No request is sent when it is returned.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid checkout form: " + strings.Join(parts, "; ")
}

// Validate checks the required fields. It has no side effects.
func Validate(f Form) FieldErrors {
	errs := make(FieldErrors)

	if strings.TrimSpace(f.GuestName) == "" {
		errs[FieldName] = "Name is required"
	}

	switch email := strings.TrimSpace(f.GuestEmail); {
	case email == "":
		errs[FieldEmail] = "Email is required"
	case !emailPattern.MatchString(email):
		errs[FieldEmail] = "Email is invalid"
	}

	if strings.TrimSpace(f.ShippingAddress) == "" {
		errs[FieldAddress] = "Shipping address is required"
	}

	switch phone := stripSpace(f.Phone); {
	case phone == "":
		errs[FieldPhone] = "Phone is required"
	case !phonePattern.MatchString(phone):
		errs[FieldPhone] = "Enter a valid phone number"
	}

	return errs
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
