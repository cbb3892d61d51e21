package api

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"bandtest/internal/backtest"
	"bandtest/internal/domain"
)

// httpStatus maps a pipeline error to its HTTP status code.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRange),
		errors.Is(err, domain.ErrInvalidParameters),
		errors.Is(err, domain.ErrMalformedBar):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrEmptyDataset):
		return http.StatusUnprocessableEntity
	case errors.Is(err, backtest.ErrUnknownStrategy),
		errors.Is(err, backtest.ErrUnknownSource):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// grpcCode maps a pipeline error to its gRPC status code.
func grpcCode(err error) codes.Code {
	switch httpStatus(err) {
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusUnprocessableEntity:
		return codes.FailedPrecondition
	case http.StatusNotFound:
		return codes.NotFound
	default:
		return codes.Internal
	}
}
