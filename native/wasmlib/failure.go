package wasmlib

import "fmt"

// Failure is an error raised by guest code while dispatching a capability.
type Failure struct {
	Message string `json:"message"`
	Code    int32  `json:"code"`
}

func (f *Failure) Error() string {
	if f.Code == 0 {
		return "native failure: " + f.Message
	}
	return fmt.Sprintf("native failure %d: %s", f.Code, f.Message)
}

type envelope struct {
	Value any      `json:"value,omitempty"`
	Error *Failure `json:"error,omitempty"`
}

type permissionsPayload struct {
	Permissions  []string `json:"permissions"`
	GrantResults []int32  `json:"grant_results"`
}
