package checkout

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"storefront-service/models"
)

var (
	emailPattern = regexp.MustCompile(`(?i)^[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^[0-9]{10,15}$`)
)

// Form is the checkout form as submitted by the UI.
type Form struct {
	Name          string               `json:"name" validate:"required"`
	Email         string               `json:"email" validate:"required,storefront_email"`
	Phone         string               `json:"phone" validate:"required,storefront_phone"`
	City          string               `json:"city" validate:"required"`
	Address       string               `json:"address" validate:"required"`
	Scheduled     bool                 `json:"scheduled"`
	Note          string               `json:"note" validate:"required_if=Scheduled true"`
	DeliveryDate  *time.Time           `json:"deliveryDate" validate:"required_if=Scheduled true"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod" validate:"required,oneof=online cash"`
}

// messages maps field and failed tag to the text shown next to the input.
var messages = map[string]map[string]string{
	"name":          {"required": "Name is required"},
	"email":         {"required": "Email is required", "storefront_email": "Invalid email address"},
	"phone":         {"required": "Phone number is required", "storefront_phone": "Invalid phone number"},
	"city":          {"required": "City is required"},
	"address":       {"required": "Address is required"},
	"note":          {"required_if": "Note is required for scheduled delivery"},
	"deliveryDate":  {"required_if": "Delivery date is required for scheduled delivery"},
	"paymentMethod": {"required": "Payment method is required", "oneof": "Invalid payment method"},
}

// ValidationError lists per-field messages. The order is never sent when
// the form fails validation.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidationError reports whether err is a form validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// FormValidator validates checkout forms.
type FormValidator struct {
	validate *validator.Validate
}

func NewFormValidator() *FormValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("storefront_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("storefront_phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return &FormValidator{validate: v}
}

// Validate checks f and returns a *ValidationError describing every failed
// field.
func (fv *FormValidator) Validate(f Form) error {
	err := fv.validate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := out.Fields[field]; seen {
			continue
		}
		msg, ok := messages[field][fe.Tag()]
		if !ok {
			msg = field + " is invalid"
		}
		out.Fields[field] = msg
	}
	return out
}
