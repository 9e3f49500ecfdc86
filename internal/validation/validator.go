package validation

import (
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

const maxOrderIDLen = 256

// New returns a configured validator with the custom "orderid" tag registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// order ids become part of the archive key, so they must be a single path segment
	_ = v.RegisterValidation("orderid", validOrderID)

	return v
}

func validOrderID(fl validatorv10.FieldLevel) bool {
	id := fl.Field().String()
	if strings.TrimSpace(id) == "" || len(id) > maxOrderIDLen {
		return false
	}
	return !strings.ContainsAny(id, "/\\") && id != "." && id != ".."
}
