package coreaudio

import (
	"errors"
	"fmt"
)

var (
	// ErrPropertyUnavailable is returned when the platform cannot report a
	// size or value for a property address.
	ErrPropertyUnavailable = errors.New("audio object property unavailable")

	// ErrNotSystemObject is returned when a system-only property is queried
	// on a non-system object.
	ErrNotSystemObject = errors.New("property requires the system audio object")

	// ErrUnsupportedPlatform is returned by every Host call on platforms
	// without a process-tap API.
	ErrUnsupportedPlatform = errors.New("system audio capture requires macOS")
)

// StatusError wraps a platform OSStatus with the operation that produced it.
type StatusError struct {
	Op     string
	Status OSStatus
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed with status %d", e.Op, e.Status)
}

// propertyError builds the unavailable-property error for one address.
func propertyError(obj ObjectID, addr PropertyAddress, status OSStatus) error {
	return fmt.Errorf("%w: object %d selector %#08x (status %d)", ErrPropertyUnavailable, obj, uint32(addr.Selector), status)
}
