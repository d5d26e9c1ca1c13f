// Package fhirpath2sql exports error types for programmatic error handling.
package fhirpath2sql

import (
	"errors"

	"github.com/fhirsql/fhirpath2sql/internal/fhirpatherr"
)

// TranslationError is the structured error type every translation
// operation returns on failure. Use errors.As to extract it.
//
// Example:
//
//	fragments, err := translator.Translate(root)
//	if err != nil {
//	    var tErr *fhirpath2sql.TranslationError
//	    if errors.As(err, &tErr) {
//	        fmt.Printf("code=%s path=%s: %s\n", tErr.Code, tErr.Path, tErr.Message)
//	    }
//	}
type TranslationError = fhirpatherr.TranslationError

// ErrorCode identifies a specific error condition. Codes are grouped:
//   - E0xx: structural errors (malformed AST, unbalanced scopes)
//   - E1xx: function/operator errors
//   - E2xx: type errors
//   - E3xx: argument errors
type ErrorCode = fhirpatherr.ErrorCode

// ErrorKind distinguishes why a TranslationError was raised: validation
// (the input AST is malformed), translation (the AST is well-formed but
// this dialect/oracle pair cannot express it), or evaluation (the AST is
// well-formed but FHIRPath itself defines the operation as a failure,
// e.g. iif() over a multi-item collection).
type ErrorKind = fhirpatherr.Kind

const (
	KindValidation  = fhirpatherr.KindValidation
	KindTranslation = fhirpatherr.KindTranslation
	KindEvaluation  = fhirpatherr.KindEvaluation
)

const (
	ErrUnknownNodeVariant   = fhirpatherr.ErrUnknownNodeVariant
	ErrEmptyExpression      = fhirpatherr.ErrEmptyExpression
	ErrUnbalancedScopeStack = fhirpatherr.ErrUnbalancedScopeStack
	ErrUnresolvedContainer  = fhirpatherr.ErrUnresolvedContainer
	ErrMalformedLiteral     = fhirpatherr.ErrMalformedLiteral

	ErrUnknownFunction         = fhirpatherr.ErrUnknownFunction
	ErrWrongArgumentCount      = fhirpatherr.ErrWrongArgumentCount
	ErrIifCriterionNotBoolean  = fhirpatherr.ErrIifCriterionNotBoolean
	ErrIifOnMultiItemCollection = fhirpatherr.ErrIifOnMultiItemCollection
	ErrUnsupportedOperator     = fhirpatherr.ErrUnsupportedOperator
	ErrUnboundVariable         = fhirpatherr.ErrUnboundVariable

	ErrUnknownFHIRType             = fhirpatherr.ErrUnknownFHIRType
	ErrCastToComplexTypeNoFields   = fhirpatherr.ErrCastToComplexTypeNoFields
	ErrIncompatibleBoundaryInput   = fhirpatherr.ErrIncompatibleBoundaryInput

	ErrUnparseableQuantity = fhirpatherr.ErrUnparseableQuantity
	ErrInvalidPrecision    = fhirpatherr.ErrInvalidPrecision
)

// AsTranslationError extracts a *TranslationError from err, unwrapping as
// needed. Returns ok=false if err is not, and does not wrap, one.
func AsTranslationError(err error) (tErr *TranslationError, ok bool) {
	var target *TranslationError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// IsErrorCode reports whether err is, or wraps, a TranslationError
// carrying the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	tErr, ok := AsTranslationError(err)
	if !ok {
		return false
	}
	return tErr.Code == code
}
