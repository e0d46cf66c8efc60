package domain

import (
	"errors"
	"fmt"
)

type ErrCode string

const (
	CodeMalformedPayload ErrCode = "malformed_payload"
	CodeValidation       ErrCode = "validation_error"
	CodeUnauthorized     ErrCode = "unauthorized"
	CodeNotFound         ErrCode = "not_found"
	CodeStoreFailure     ErrCode = "store_failure"
)

type AppError struct {
	Code    ErrCode
	Message string
	Meta    map[string]string
	Err     error
}

func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if len(e.Meta) > 0 {
		msg = fmt.Sprintf("%s (%v)", msg, e.Meta)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AppError) Unwrap() error { return e.Err }

func ErrMalformed(msg string) error { return &AppError{Code: CodeMalformedPayload, Message: msg} }
func ErrMalformedField(field, msg string) error {
	return &AppError{Code: CodeMalformedPayload, Message: msg, Meta: map[string]string{"field": field}}
}
func ErrValidation(msg string) error { return &AppError{Code: CodeValidation, Message: msg} }
func ErrValidationMeta(msg string, meta map[string]string) error {
	return &AppError{Code: CodeValidation, Message: msg, Meta: meta}
}
func ErrUnauthorized(msg string) error { return &AppError{Code: CodeUnauthorized, Message: msg} }
func ErrNotFound(msg string) error     { return &AppError{Code: CodeNotFound, Message: msg} }

// ErrStore wraps a persistence failure. The whole ingestion has been rolled
// back when this is returned, so callers may retry.
func ErrStore(op string, err error) error {
	return &AppError{Code: CodeStoreFailure, Message: op, Err: err}
}

// CodeOf returns the AppError code carried by err, or "" when err is not one.
func CodeOf(err error) ErrCode {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
