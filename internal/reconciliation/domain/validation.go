package domain

import (
	"fmt"
	"strings"
)

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

func (v *ValidationErrors) Error() string {
	if v == nil || len(v.Errors) == 0 {
		return "validation error"
	}
	return "validation error: " + v.Errors[0].Field + " " + v.Errors[0].Message
}

func (v *ValidationErrors) add(field, code, message string) {
	v.Errors = append(v.Errors, FieldError{Field: field, Code: code, Message: message})
}

// ValidateAttributionData checks an order payload before any side effect.
// It returns nil or a *ValidationErrors listing every problem found.
func ValidateAttributionData(req OrderAttributionRequest) error {
	v := &ValidationErrors{}
	if strings.TrimSpace(req.OrderID) == "" {
		v.add("orderId", "required", "is required")
	}
	if len(req.Items) == 0 {
		v.add("items", "required", "must not be empty")
	}
	seen := make(map[ID]int, len(req.Items))
	for i, item := range req.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		if item.ProductID <= 0 {
			v.add(prefix+".productId", "required", "is required")
		} else if first, ok := seen[item.ProductID]; ok {
			v.add(prefix+".productId", "duplicate", fmt.Sprintf("repeats items[%d]", first))
		} else {
			seen[item.ProductID] = i
		}
		if item.Quantity <= 0 {
			v.add(prefix+".quantity", "invalid", "must be greater than 0")
		}
		if item.UnitPrice <= 0 {
			v.add(prefix+".unitPrice", "invalid", "must be greater than 0")
		}
	}
	if a := req.Attribution; a != nil {
		if a.KolID <= 0 {
			v.add("attribution.kolId", "required", "is required")
		}
		if a.AffiliateID <= 0 {
			v.add("attribution.affiliateId", "required", "is required")
		}
	}
	if len(v.Errors) > 0 {
		return v
	}
	return nil
}
