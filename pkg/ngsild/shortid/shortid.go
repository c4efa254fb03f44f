// Package shortid generates short unique identifiers suitable for the local
// part of an entity URN.
package shortid

import (
	"encoding/base64"

	"github.com/google/uuid"
)

// The urlsafe base64 alphabet, with ~ in place of - so that generated
// identifiers never collide with the colon-free URN field separator
// convention used in dashed identifiers.
var encoding = base64.NewEncoding(
	"ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789~_",
).WithPadding(base64.NoPadding)

// New returns a new unique identifier, 22 characters long.
func New() string {
	return FromUUID(uuid.New())
}

// FromUUID shortens the given UUID to its 22 character representation.
func FromUUID(u uuid.UUID) string {
	return encoding.EncodeToString(u[:])
}
