// Package connid defines the opaque identity handed to every live connection.
// Identity is assigned at connect and never derived from transport details.
package connid

import "github.com/google/uuid"

// ID identifies one live connection. It is unique per connection and is not
// reused after disconnect.
type ID string

// New returns a fresh, random connection id.
func New() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string {
	return string(id)
}
