package proxy

import (
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/wippyai/native-bridge/errors"
)

// Capability identifies one method of a proxied interface. Native
// dispatchers switch on ID.
type Capability struct {
	Interface string
	Method    string
	ID        uint32
}

func (c Capability) String() string {
	return c.Interface + "." + c.Method
}

// CapabilityID returns the stable identifier of iface.method: the low 32
// bits of its xxhash.
func CapabilityID(iface, method string) uint32 {
	return uint32(xxhash.Sum64String(iface + "." + method))
}

// Interface is a named set of capabilities.
type Interface struct {
	byMethod map[string]Capability
	byID     map[uint32]Capability
	name     string
}

// NewInterface builds the descriptor table for name. Method names must be
// unique and must not collide on ID.
func NewInterface(name string, methods ...string) (*Interface, error) {
	if name == "" {
		return nil, errors.InvalidInput(errors.PhaseRegister, "interface name is empty")
	}
	iface := &Interface{
		name:     name,
		byMethod: make(map[string]Capability, len(methods)),
		byID:     make(map[uint32]Capability, len(methods)),
	}
	for _, m := range methods {
		if m == "" {
			return nil, errors.InvalidInput(errors.PhaseRegister, "empty method name in "+name)
		}
		if _, ok := iface.byMethod[m]; ok {
			return nil, errors.Duplicate(errors.PhaseRegister, "method", name+"."+m)
		}
		c := Capability{Interface: name, Method: m, ID: CapabilityID(name, m)}
		if prev, ok := iface.byID[c.ID]; ok {
			return nil, errors.New(errors.PhaseRegister, errors.KindDuplicate).
				Path(name, m).
				Detail("capability id 0x%08x already used by %s", c.ID, prev.Method).
				Build()
		}
		iface.byMethod[m] = c
		iface.byID[c.ID] = c
	}
	return iface, nil
}

// MustInterface is like NewInterface but panics on error.
func MustInterface(name string, methods ...string) *Interface {
	iface, err := NewInterface(name, methods...)
	if err != nil {
		panic(err)
	}
	return iface
}

// Name returns the interface name.
func (i *Interface) Name() string {
	return i.name
}

// Lookup returns the capability for method.
func (i *Interface) Lookup(method string) (Capability, bool) {
	c, ok := i.byMethod[method]
	return c, ok
}

// ByID returns the capability with the given identifier.
func (i *Interface) ByID(id uint32) (Capability, bool) {
	c, ok := i.byID[id]
	return c, ok
}

// Capabilities returns every capability sorted by method name.
func (i *Interface) Capabilities() []Capability {
	out := make([]Capability, 0, len(i.byMethod))
	for _, c := range i.byMethod {
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Method < out[b].Method })
	return out
}
