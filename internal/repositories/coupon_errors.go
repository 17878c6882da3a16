package repositories

import (
	"fmt"

	domain "github.com/meridianmart/api/internal/domain"
)

// CouponErrorCode enumerates repository error causes for coupon operations.
type CouponErrorCode string

const (
	// CouponErrorUnknown represents an unspecified failure.
	CouponErrorUnknown CouponErrorCode = "coupon_unknown"
	// CouponErrorRejected indicates the coupon failed eligibility at commit time.
	CouponErrorRejected CouponErrorCode = "coupon_rejected"
	// CouponErrorAlreadyExists indicates the coupon code is already defined.
	CouponErrorAlreadyExists CouponErrorCode = "coupon_already_exists"
)

// CouponError wraps coupon-specific failures with machine readable codes.
// Rejection carries the eligibility verdict when Code is CouponErrorRejected.
type CouponError struct {
	Op        string
	Code      CouponErrorCode
	Rejection domain.CouponRejection
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *CouponError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *CouponError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewCouponError constructs a typed coupon error.
func NewCouponError(code CouponErrorCode, message string, err error) *CouponError {
	if message == "" {
		message = string(code)
	}
	return &CouponError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewCouponRejection constructs a commit-time eligibility failure.
func NewCouponRejection(rejection domain.CouponRejection, message string) *CouponError {
	if message == "" {
		message = string(rejection)
	}
	return &CouponError{
		Code:      CouponErrorRejected,
		Rejection: rejection,
		Message:   message,
	}
}
