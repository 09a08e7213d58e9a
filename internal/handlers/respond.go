package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// errorBody is the error half of the API envelope. Every failure response
// is {"success": false, "error": {...}}.
type errorBody struct {
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// sendError writes the error envelope. When validationErr carries
// field-level validation failures they are included as a details map.
func sendError(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	body := errorBody{Message: message}

	var fieldErrs validator.ValidationErrors
	if errors.As(validationErr, &fieldErrs) {
		body.Details = make(map[string]string)
		for _, fieldErr := range fieldErrs {
			body.Details[fieldErr.Field()] = fmt.Sprintf("failed on '%s'", fieldErr.Tag())
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": body})
}
