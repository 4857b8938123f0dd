package domain

import "fmt"

// AppError is the core domain error type: a stable machine-readable Code,
// a human Message, the HTTP status an adapter should map it to, and an
// optional wrapped Cause.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// ErrAccountNotFound reports a deposit or loan account that does not exist.
func ErrAccountNotFound(accountID string) *AppError {
	return &AppError{Code: "account_not_found", Message: fmt.Sprintf("account %s not found", accountID), Status: 404}
}

// ErrInsufficientFunds reports a withdrawal larger than the current balance.
func ErrInsufficientFunds() *AppError {
	return &AppError{Code: "insufficient_funds", Message: "insufficient funds", Status: 400}
}

// ErrOverpayment reports a loan repayment larger than the amount due, under
// the opt-in strict repayment mode (see RepayParams.RejectOverpayment).
func ErrOverpayment() *AppError {
	return &AppError{Code: "overpayment", Message: "repayment exceeds interest and principal due", Status: 400}
}

// ErrValidation reports a malformed command input (non-positive amount,
// negative rate, basis below 360, and similar).
func ErrValidation(msg string) *AppError {
	return &AppError{Code: "validation_error", Message: msg, Status: 400}
}

// ErrInternal wraps an unexpected infrastructure failure.
func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: "internal_error", Message: msg, Status: 500, Cause: cause}
}
