package harness

import "fmt"

// NodeRole is a logical cluster member: a small integer id and the address of
// the host it runs on. Immutable once resolved.
type NodeRole struct {
	ID      int    `yaml:"id" json:"id"`
	Address string `yaml:"address" json:"address"`
}

// LocalAddress is the address used for roles that run on this host.
const LocalAddress = "localhost"

func (r NodeRole) String() string {
	return fmt.Sprintf("ds%d@%s", r.ID, r.Address)
}

// IsLocal reports whether the role targets the local host.
func (r NodeRole) IsLocal() bool {
	switch r.Address {
	case "", LocalAddress, "127.0.0.1", "::1":
		return true
	}
	return false
}
