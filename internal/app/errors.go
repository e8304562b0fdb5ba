package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func errUnauthenticated() *DomainError {
	return domainError(http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required", nil)
}

func errForbidden() *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

func errBanned(reason string) *DomainError {
	var details any
	if reason != "" {
		details = map[string]any{"reason": reason}
	}
	return domainError(http.StatusForbidden, "ACCOUNT_BANNED", "Account is banned", details)
}

func errNotFound(what string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", what+" not found", nil)
}

func errValidation(reason string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_FAILED", "Content failed validation", map[string]any{"reason": reason})
}

func errCapacity() *DomainError {
	return domainError(http.StatusConflict, "CAPACITY_EXCEEDED", "No seats available", nil)
}

func errConflict(message string) *DomainError {
	return domainError(http.StatusConflict, "CONFLICT", message, nil)
}
