// Package ids generates short, sortable identifiers for relay consumer
// sessions and audit frame records.
package ids

import "github.com/rs/xid"

// New returns a new globally unique, lexically sortable identifier.
func New() string {
	return xid.New().String()
}
