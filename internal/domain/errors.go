package domain

import "errors"

var (
	ErrInvalidName      = errors.New("invalid name")
	ErrAlreadyExists    = errors.New("already exists")
	ErrUnknownSender    = errors.New("unknown sender")
	ErrUnknownRecipient = errors.New("unknown recipient")
	ErrUnknownGroup     = errors.New("unknown group")
	ErrIncompleteData   = errors.New("incomplete data")
	ErrTransportLost    = errors.New("transport lost")
	ErrPersistence      = errors.New("persistence failure")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidName, "INVALID_NAME"},
	{ErrAlreadyExists, "ALREADY_EXISTS"},
	{ErrUnknownSender, "UNKNOWN_SENDER"},
	{ErrUnknownRecipient, "UNKNOWN_RECIPIENT"},
	{ErrUnknownGroup, "UNKNOWN_GROUP"},
	{ErrIncompleteData, "INCOMPLETE_DATA"},
	{ErrTransportLost, "TRANSPORT_LOST"},
	{ErrPersistence, "PERSISTENCE_FAILURE"},
}

// Code returns the stable wire code for err, or "INTERNAL" when err does not
// belong to the taxonomy.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL"
}

// IsValidation reports whether err is a caller mistake rather than a server fault.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrUnknownSender) ||
		errors.Is(err, ErrUnknownRecipient) ||
		errors.Is(err, ErrUnknownGroup) ||
		errors.Is(err, ErrIncompleteData)
}
