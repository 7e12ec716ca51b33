package rpc

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/devaloi/chatrelay/internal/domain"
)

// MapToGRPCError converts a domain error into a gRPC status error.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	var code codes.Code
	switch {
	case errors.Is(err, domain.ErrInvalidName), errors.Is(err, domain.ErrIncompleteData):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrAlreadyExists):
		code = codes.AlreadyExists
	case errors.Is(err, domain.ErrUnknownSender):
		code = codes.FailedPrecondition
	case errors.Is(err, domain.ErrUnknownRecipient), errors.Is(err, domain.ErrUnknownGroup):
		code = codes.NotFound
	case errors.Is(err, domain.ErrPersistence), errors.Is(err, domain.ErrTransportLost):
		code = codes.Unavailable
	default:
		code = codes.Internal
	}
	return status.Errorf(code, "%s: %v", domain.Code(err), err)
}
