package privmsg

import (
	"errors"
	"fmt"

	"github.com/rbaliyan/privmsg/store"
)

// Sentinel errors for the privmsg package.
// Use errors.Is() to check for these errors.
//
// Errors that wrap a store sentinel match both levels, so
// errors.Is(err, privmsg.ErrNotFound) and errors.Is(err, store.ErrNotFound)
// are equivalent.
var (
	// ErrNotFound is returned when a message cannot be found.
	ErrNotFound = fmt.Errorf("privmsg: %w", store.ErrNotFound)

	// ErrParentNotFound is returned when a reply names a missing parent.
	ErrParentNotFound = fmt.Errorf("privmsg: %w", store.ErrParentNotFound)

	// ErrUnauthorized is returned when the caller is neither the sender
	// nor the recipient of a message.
	ErrUnauthorized = errors.New("privmsg: unauthorized")

	// ErrInvalidMessage is returned for message validation failures.
	ErrInvalidMessage = errors.New("privmsg: invalid message")

	// ErrEmptySubject is returned when the subject is blank.
	ErrEmptySubject = errors.New("privmsg: empty subject")

	// ErrEmptyBody is returned when the body is blank.
	ErrEmptyBody = errors.New("privmsg: empty body")

	// ErrSubjectTooLong is returned when the subject exceeds the limit.
	ErrSubjectTooLong = errors.New("privmsg: subject too long")

	// ErrBodyTooLarge is returned when the body exceeds the limit.
	ErrBodyTooLarge = errors.New("privmsg: body too large")

	// ErrInvalidContent is returned for invalid UTF-8 or control characters.
	ErrInvalidContent = errors.New("privmsg: invalid content")

	// ErrInvalidPrincipal is returned for a malformed principal reference.
	ErrInvalidPrincipal = fmt.Errorf("privmsg: %w", store.ErrInvalidPrincipal)

	// ErrInvalidID is returned when an invalid message ID is provided.
	ErrInvalidID = fmt.Errorf("privmsg: %w", store.ErrInvalidID)

	// ErrFilterInvalid is returned when a filter is invalid.
	ErrFilterInvalid = fmt.Errorf("privmsg: %w", store.ErrFilterInvalid)

	// ErrStoreRequired is returned when no store is configured.
	ErrStoreRequired = errors.New("privmsg: store is required")

	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = fmt.Errorf("privmsg: %w", store.ErrNotConnected)

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = fmt.Errorf("privmsg: %w", store.ErrAlreadyConnected)

	// ErrNotInTrash is returned when restoring a message the caller has not deleted.
	ErrNotInTrash = errors.New("privmsg: message not in trash")

	// ErrAlreadyInTrash is returned when deleting a message the caller already deleted.
	ErrAlreadyInTrash = errors.New("privmsg: message already in trash")
)

// ValidationError provides details about a validation failure.
type ValidationError struct {
	Field   string // The field that failed validation
	Message string // Human-readable error message
	Err     error  // Specific sentinel (ErrEmptySubject, ErrSubjectTooLong, ...)
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("privmsg: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap matches both ErrInvalidMessage and the specific sentinel.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidMessage}
	}
	return []error{ErrInvalidMessage, e.Err}
}

// IsValidationError reports whether err is a validation failure and returns it.
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// NotificationError is handed to the notification failure handler when a
// notification could not be delivered after retries. It is never returned
// from Compose: the message is already committed.
type NotificationError struct {
	Kind      NotificationKind
	To        PrincipalRef
	MessageID string
	Err       error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("privmsg: notification %s to %s for message %s failed: %v", e.Kind, e.To, e.MessageID, e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

// IsNotificationError reports whether err is a notification failure and returns it.
func IsNotificationError(err error) (*NotificationError, bool) {
	var ne *NotificationError
	if errors.As(err, &ne) {
		return ne, true
	}
	return nil, false
}

// IsRetryableError determines if an error is retryable.
// Returns true for temporary/transient errors, false for permanent errors.
// Handles both privmsg-level and store-level errors.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	permanentErrors := []error{
		ErrInvalidMessage,
		ErrUnauthorized,
		ErrNotInTrash,
		ErrAlreadyInTrash,
		ErrStoreRequired,
		ErrUnknownPrincipalType,
		ErrPrincipalNotFound,
		ErrNoContact,
		store.ErrNotFound,
		store.ErrParentNotFound,
		store.ErrInvalidID,
		store.ErrInvalidPrincipal,
		store.ErrInvalidParty,
		store.ErrFilterInvalid,
	}
	for _, permErr := range permanentErrors {
		if errors.Is(err, permErr) {
			return false
		}
	}

	var pe *PluginError
	if errors.As(err, &pe) {
		return false
	}

	// Unknown errors default to retryable: they are most likely transient
	// network or timeout failures.
	return true
}

// storeSentinels maps store sentinels to their privmsg counterparts.
var storeSentinels = []struct {
	store error
	root  error
}{
	{store.ErrNotFound, ErrNotFound},
	{store.ErrParentNotFound, ErrParentNotFound},
	{store.ErrInvalidID, ErrInvalidID},
	{store.ErrInvalidPrincipal, ErrInvalidPrincipal},
	{store.ErrFilterInvalid, ErrFilterInvalid},
	{store.ErrNotConnected, ErrNotConnected},
}

// wrapStoreError annotates a store error with op. Known store sentinels are
// lifted to the privmsg sentinel so errors.Is matches at both levels;
// anything else is wrapped unchanged.
func wrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, s := range storeSentinels {
		if errors.Is(err, s.store) {
			return fmt.Errorf("%s: %w", op, s.root)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
