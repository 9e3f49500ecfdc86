package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
)

// BindAndValidate binds JSON body into `out` and runs validation.
// If validation fails, it writes a 400 response and returns an error for the handler to short-circuit.
func BindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid_request_body",
			"msg":   err.Error(),
		})
		return err
	}

	if err := v.Struct(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation_failed",
			"fields": validationErrorsToMap(err),
		})
		return err
	}
	return nil
}

// DecodeAndValidate is the queue-side counterpart of BindAndValidate: it decodes
// a raw JSON body into out and validates it.
func DecodeAndValidate(body []byte, out interface{}, v *validatorv10.Validate) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if err := v.Struct(out); err != nil {
		return fmt.Errorf("invalid message: %v", validationErrorsToMap(err))
	}
	return nil
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.StructNamespace()] = fmt.Sprintf("failed '%s' check", fe.Tag())
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}
