// Package scenario runs scripted bridge sessions against a native side.
//
// A script declares overlays and proxies bound to native handles and a list
// of steps driving them the way a managed runtime would. Each step may state
// how many forwards it expects to reach native code and what result a proxy
// call should return. Scripts without a native library run against a
// recorder that answers proxy calls from the script itself.
package scenario

import (
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/native-bridge/errors"
	"github.com/wippyai/native-bridge/payload"
)

// Script is a parsed scenario.
type Script struct {
	Overlays    map[string]OverlaySpec `yaml:"overlays"`
	Proxies     map[string]ProxySpec   `yaml:"proxies"`
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Steps       []Step                 `yaml:"steps"`
}

// OverlaySpec declares an overlay. A zero handle leaves it unbound.
type OverlaySpec struct {
	Handle uint64 `yaml:"handle"`
}

// ProxySpec declares a proxy and, for dry runs, what its methods return.
type ProxySpec struct {
	Results   map[string]any    `yaml:"results"`
	Errors    map[string]string `yaml:"errors"`
	Interface string            `yaml:"interface"`
	Methods   []string          `yaml:"methods"`
	Handle    uint64            `yaml:"handle"`
}

// Action names.
const (
	ActionCreate         = "create"
	ActionStart          = "start"
	ActionPermissions    = "permissions"
	ActionActivityResult = "activity_result"
	ActionClose          = "close"
	ActionInvoke         = "invoke"
	ActionClear          = "clear"
	ActionFinalize       = "finalize"
	ActionRelease        = "release"
	ActionBroadcast      = "broadcast"
)

// Step is one scripted call. Exactly one action field is set; it names the
// overlay or proxy acted on, or carries the request code for broadcast.
type Step struct {
	ExpectResult   yaml.Node       `yaml:"expect_result"`
	State          payload.Bundle  `yaml:"state"`
	Data           *payload.Intent `yaml:"data"`
	Broadcast      *int32          `yaml:"broadcast"`
	ExpectForwards *int            `yaml:"expect_forwards"`
	ExpectError    *bool           `yaml:"expect_error"`
	Create         string          `yaml:"create"`
	Start          string          `yaml:"start"`
	Permissions    string          `yaml:"permissions"`
	ActivityResult string          `yaml:"activity_result"`
	Close          string          `yaml:"close"`
	Invoke         string          `yaml:"invoke"`
	Clear          string          `yaml:"clear"`
	Finalize       string          `yaml:"finalize"`
	Release        string          `yaml:"release"`
	Method         string          `yaml:"method"`
	Args           []any           `yaml:"args"`
	Perms          []string        `yaml:"perms"`
	Grants         []int32         `yaml:"grants"`
	RequestCode    int32           `yaml:"request_code"`
	ResultCode     int32           `yaml:"result_code"`
}

// Action returns the step's action and target. ok is false unless exactly
// one action is set.
func (s *Step) Action() (action, target string, ok bool) {
	n := 0
	set := func(a, t string) {
		if t != "" {
			action, target = a, t
			n++
		}
	}
	set(ActionCreate, s.Create)
	set(ActionStart, s.Start)
	set(ActionPermissions, s.Permissions)
	set(ActionActivityResult, s.ActivityResult)
	set(ActionClose, s.Close)
	set(ActionInvoke, s.Invoke)
	set(ActionClear, s.Clear)
	set(ActionFinalize, s.Finalize)
	set(ActionRelease, s.Release)
	if s.Broadcast != nil {
		action, target = ActionBroadcast, ""
		n++
	}
	return action, target, n == 1
}

// HasExpectedResult reports whether expect_result was given, null included.
func (s *Step) HasExpectedResult() bool {
	return s.ExpectResult.Kind != 0
}

// ExpectedResult decodes expect_result.
func (s *Step) ExpectedResult() (any, error) {
	var v any
	if err := s.ExpectResult.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Parse decodes and validates a script.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.ParseFailed(errors.PhaseScenario, "script", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and parses the script at path.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseScenario, errors.KindNotFound, err, "read "+path)
	}
	return Parse(data)
}

// Validate checks that every step has one action with a declared target.
func (s *Script) Validate() error {
	for name, p := range s.Proxies {
		if p.Interface == "" {
			return errors.New(errors.PhaseScenario, errors.KindInvalidInput).
				Path("proxies", name, "interface").
				Detail("interface is required").
				Build()
		}
	}
	for i := range s.Steps {
		step := &s.Steps[i]
		action, target, ok := step.Action()
		if !ok {
			return errors.New(errors.PhaseScenario, errors.KindInvalidInput).
				Path("steps", strconv.Itoa(i)).
				Detail("step needs exactly one action").
				Build()
		}
		switch action {
		case ActionCreate, ActionStart, ActionPermissions, ActionActivityResult, ActionClose:
			if _, ok := s.Overlays[target]; !ok {
				return errors.NotFound(errors.PhaseScenario, "overlay", target)
			}
		case ActionInvoke, ActionClear, ActionFinalize, ActionRelease:
			if _, ok := s.Proxies[target]; !ok {
				return errors.NotFound(errors.PhaseScenario, "proxy", target)
			}
			if action == ActionInvoke && step.Method == "" {
				return errors.New(errors.PhaseScenario, errors.KindInvalidInput).
					Path("steps", strconv.Itoa(i), "method").
					Detail("invoke needs a method").
					Build()
			}
		}
	}
	return nil
}

// OverlayNames returns declared overlay names, sorted.
func (s *Script) OverlayNames() []string {
	return sortedKeys(s.Overlays)
}

// ProxyNames returns declared proxy names, sorted.
func (s *Script) ProxyNames() []string {
	return sortedKeys(s.Proxies)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
