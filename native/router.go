package native

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	cmap "github.com/orcaman/concurrent-map/v2"
	"go.uber.org/multierr"

	"github.com/wippyai/native-bridge/broadcast"
)

// Router delivers broadcast request codes to the handlers registered for
// them. Codes nobody registered are ignored.
type Router struct {
	routes cmap.ConcurrentMap[int32, []broadcast.Handler]
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		routes: cmap.NewWithCustomShardingFunction[int32, []broadcast.Handler](shardCode),
	}
}

func shardCode(code int32) uint32 {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(code))
	return uint32(xxhash.Sum64(b[:]))
}

// Handle adds a handler for code.
func (r *Router) Handle(code int32, h broadcast.Handler) {
	r.routes.Upsert(code, []broadcast.Handler{h}, func(exist bool, cur, add []broadcast.Handler) []broadcast.Handler {
		if !exist {
			return add
		}
		next := make([]broadcast.Handler, 0, len(cur)+len(add))
		next = append(next, cur...)
		return append(next, add...)
	})
}

// HandleFunc adds a function handler for code.
func (r *Router) HandleFunc(code int32, fn func(code int32) error) {
	r.Handle(code, broadcast.HandlerFunc(fn))
}

// Remove drops every handler for code.
func (r *Router) Remove(code int32) {
	r.routes.Remove(code)
}

// Codes returns the codes that have handlers.
func (r *Router) Codes() []int32 {
	return r.routes.Keys()
}

// BroadcastReceived runs every handler for code in registration order. A
// failing handler does not stop the others; their errors are combined.
func (r *Router) BroadcastReceived(code int32) error {
	handlers, ok := r.routes.Get(code)
	if !ok {
		return nil
	}
	var errs error
	for _, h := range handlers {
		errs = multierr.Append(errs, h.BroadcastReceived(code))
	}
	return errs
}
