package connection

import (
	"fmt"
	"strings"

	"github.com/c360/driftview/errors"
)

const (
	handleSuffix = "_connection"
	keySeparator = "."
)

// Handle builds the stable handle under which a connection field is
// cached: "<ParentAlias>_<fieldAlias>_connection".
func Handle(parentAlias, fieldAlias string) string {
	return parentAlias + "_" + fieldAlias + handleSuffix
}

// SlotKey identifies one cache slot: a parent entity plus a connection handle.
type SlotKey struct {
	ParentID string
	Handle   string
}

// NewSlotKey builds a validated key for the connection field fieldAlias under
// parentAlias on the entity parentID.
func NewSlotKey(parentID, parentAlias, fieldAlias string) (SlotKey, error) {
	k := SlotKey{ParentID: parentID, Handle: Handle(parentAlias, fieldAlias)}
	if err := k.Validate(); err != nil {
		return SlotKey{}, err
	}
	return k, nil
}

// String renders the key as "<parentID>.<handle>".
func (k SlotKey) String() string {
	return k.ParentID + keySeparator + k.Handle
}

// Validate checks both parts are non-empty and restricted to [A-Za-z0-9_-],
// which keeps rendered keys usable as NATS KV keys.
func (k SlotKey) Validate() error {
	if err := validateToken(k.ParentID); err != nil {
		return errors.WrapInvalid(err, "SlotKey", "Validate", "parent id")
	}
	if err := validateToken(k.Handle); err != nil {
		return errors.WrapInvalid(err, "SlotKey", "Validate", "handle")
	}
	if !strings.HasSuffix(k.Handle, handleSuffix) {
		return errors.WrapInvalid(errors.ErrInvalidData, "SlotKey", "Validate",
			fmt.Sprintf("handle %q must end with %s", k.Handle, handleSuffix))
	}
	return nil
}

// ParseSlotKey is the inverse of SlotKey.String.
func ParseSlotKey(s string) (SlotKey, error) {
	parentID, handle, ok := strings.Cut(s, keySeparator)
	if !ok {
		return SlotKey{}, errors.WrapInvalid(errors.ErrInvalidData, "connection", "ParseSlotKey",
			fmt.Sprintf("missing separator in %q", s))
	}
	k := SlotKey{ParentID: parentID, Handle: handle}
	if err := k.Validate(); err != nil {
		return SlotKey{}, err
	}
	return k, nil
}

func validateToken(s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty", errors.ErrInvalidData)
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return fmt.Errorf("%w: character %q not allowed in %q", errors.ErrInvalidData, r, s)
		}
	}
	return nil
}
