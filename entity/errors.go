package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned for malformed caller input to upload authorization.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrAuthorizationExpired is returned when a write is attempted after the grant window.
	ErrAuthorizationExpired = errors.New("upload authorization expired")
	// ErrNoMatchingImage is returned when no catalog image matches the criteria.
	ErrNoMatchingImage = errors.New("no image matches the given criteria")
	// ErrNoDatedImage is returned when matching images exist but none has a creation date.
	ErrNoDatedImage = errors.New("no matching image has a creation date")
	// ErrProvisioningFailure is returned when the compute API rejects or times out a launch.
	ErrProvisioningFailure = errors.New("provisioning failure")
	// ErrMalformedEvent is returned for change notifications missing required fields.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrUnsafeScriptValue is returned when a value cannot be embedded as a shell literal.
	ErrUnsafeScriptValue = errors.New("value cannot be safely embedded in bootstrap script")
	// ErrBootstrapTooLarge is returned when the rendered script exceeds the user-data limit.
	ErrBootstrapTooLarge = errors.New("bootstrap script exceeds user data limit")
	ErrJobNotFound       = errors.New("job not found")
)

func WrapMalformed(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedEvent, reason)
}
