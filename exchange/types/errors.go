package types

import (
	"net/http"

	"cosmossdk.io/errors"
)

// Module error codes
var (
	ErrBadRequest             = errors.Register("exchange", 2, "bad request")
	ErrUnauthorized           = errors.Register("exchange", 3, "unauthorized")
	ErrInsufficientCollateral = errors.Register("exchange", 4, "insufficient collateral")
	ErrForbidden              = errors.Register("exchange", 5, "order not owned by caller")
	ErrNotFound               = errors.Register("exchange", 6, "not found")
	ErrConflict               = errors.Register("exchange", 7, "username already exists")
	ErrSelfMatch              = errors.Register("exchange", 8, "order would match caller's own resting order")
	ErrTooEarly               = errors.Register("exchange", 9, "trading window not yet open")
	ErrTooLate                = errors.Register("exchange", 10, "trading window closed")
	ErrInternal               = errors.Register("exchange", 11, "internal error")
)

// HTTPStatus maps a registered error (possibly wrapped) to the status
// code of the external contract.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case ErrBadRequest.Is(err):
		return http.StatusBadRequest
	case ErrUnauthorized.Is(err):
		return http.StatusUnauthorized
	case ErrInsufficientCollateral.Is(err):
		return http.StatusPaymentRequired
	case ErrForbidden.Is(err):
		return http.StatusForbidden
	case ErrNotFound.Is(err):
		return http.StatusNotFound
	case ErrConflict.Is(err):
		return http.StatusConflict
	case ErrSelfMatch.Is(err):
		return http.StatusPreconditionFailed
	case ErrTooEarly.Is(err):
		return http.StatusTooEarly
	case ErrTooLate.Is(err):
		return http.StatusUnavailableForLegalReasons
	default:
		return http.StatusInternalServerError
	}
}
