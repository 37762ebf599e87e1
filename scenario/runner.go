package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	nativebridge "github.com/wippyai/native-bridge"
	"github.com/wippyai/native-bridge/broadcast"
	"github.com/wippyai/native-bridge/errors"
	"github.com/wippyai/native-bridge/handle"
	"github.com/wippyai/native-bridge/native"
	"github.com/wippyai/native-bridge/overlay"
	"github.com/wippyai/native-bridge/payload"
	"github.com/wippyai/native-bridge/proxy"
)

// StepResult is the outcome of one step.
type StepResult struct {
	Result   any
	Err      error
	Action   string
	Target   string
	Failures []string
	Index    int
	Forwards int
}

// OK reports whether every expectation of the step held.
func (r StepResult) OK() bool {
	return len(r.Failures) == 0
}

func (r StepResult) String() string {
	s := fmt.Sprintf("#%d %s", r.Index, r.Action)
	if r.Target != "" {
		s += " " + r.Target
	}
	return fmt.Sprintf("%s: forwards=%d", s, r.Forwards)
}

// Report collects the outcome of a run.
type Report struct {
	Name  string
	Steps []StepResult
}

// Failed returns the number of steps with failed expectations.
func (r *Report) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if !s.OK() {
			n++
		}
	}
	return n
}

// OK reports whether no step failed.
func (r *Report) OK() bool {
	return r.Failed() == 0
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithObserver reports handle events of every bridge the runner creates.
func WithObserver(obs handle.Observer) RunnerOption {
	return func(r *Runner) {
		r.observer = obs
	}
}

// Runner executes a script step by step.
type Runner struct {
	script   *Script
	rec      *native.Recorder
	observer handle.Observer
	overlays map[string]*overlay.Overlay
	proxies  map[string]*proxy.Proxy
	byRef    map[proxy.Ref]string
	receiver *broadcast.Receiver
	next     int
}

// NewRunner binds the script's overlays and proxies to lib. A nil lib runs
// dry: proxy calls are answered from the script's results and errors.
func NewRunner(script *Script, lib nativebridge.Library, opts ...RunnerOption) (*Runner, error) {
	r := &Runner{
		script:   script,
		overlays: make(map[string]*overlay.Overlay, len(script.Overlays)),
		proxies:  make(map[string]*proxy.Proxy, len(script.Proxies)),
		byRef:    make(map[proxy.Ref]string, len(script.Proxies)),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.rec = native.NewRecorder(lib)
	if lib == nil {
		r.rec.Respond(r.dryRun)
	}

	for _, name := range script.OverlayNames() {
		spec := script.Overlays[name]
		args := payload.Bundle{}
		if spec.Handle != 0 {
			args[overlay.OwnerHandleKey] = spec.Handle
		}
		r.overlays[name] = overlay.New(args, r.rec, overlay.WithObserver(r.observer))
	}

	for _, name := range script.ProxyNames() {
		spec := script.Proxies[name]
		iface, err := proxy.NewInterface(spec.Interface, spec.Methods...)
		if err != nil {
			return nil, err
		}
		ih := proxy.NewInvocationHandler(handle.Handle(spec.Handle), r.rec, proxy.WithObserver(r.observer))
		p := proxy.New(iface, ih)
		r.proxies[name] = p
		r.byRef[p.Ref()] = name
	}

	r.receiver = broadcast.NewReceiver(r.rec, broadcast.WithObserver(r.observer))
	return r, nil
}

func (r *Runner) dryRun(_ handle.Handle, ref proxy.Ref, c proxy.Capability, _ []any) (any, error) {
	spec := r.script.Proxies[r.byRef[ref]]
	if msg, ok := spec.Errors[c.Method]; ok {
		return nil, errors.New(errors.PhaseScenario, errors.KindInvalidInput).
			Path(c.Interface, c.Method).
			Detail("%s", msg).
			Build()
	}
	return spec.Results[c.Method], nil
}

// Recorder returns the tap counting forwards.
func (r *Runner) Recorder() *native.Recorder {
	return r.rec
}

// Overlay returns the overlay declared as name.
func (r *Runner) Overlay(name string) *overlay.Overlay {
	return r.overlays[name]
}

// Proxy returns the proxy declared as name.
func (r *Runner) Proxy(name string) *proxy.Proxy {
	return r.proxies[name]
}

// Done reports whether every step has run.
func (r *Runner) Done() bool {
	return r.next >= len(r.script.Steps)
}

// Position returns the index of the next step.
func (r *Runner) Position() int {
	return r.next
}

// Next runs the next step. ok is false when no steps remain.
func (r *Runner) Next() (res StepResult, ok bool) {
	if r.Done() {
		return StepResult{}, false
	}
	i := r.next
	r.next++
	step := &r.script.Steps[i]

	action, target, _ := step.Action()
	res = StepResult{Index: i, Action: action, Target: target}

	before := r.rec.Count("")
	res.Result, res.Err = r.exec(action, target, step)
	res.Forwards = r.rec.Count("") - before

	res.Failures = r.check(step, res)
	return res, true
}

// Run executes the remaining steps. It stops early when ctx is done.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{Name: r.script.Name}
	for !r.Done() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, _ := r.Next()
		report.Steps = append(report.Steps, res)
	}
	return report, nil
}

func (r *Runner) exec(action, target string, step *Step) (any, error) {
	switch action {
	case ActionCreate:
		return nil, r.overlays[target].OnCreate(step.State)
	case ActionStart:
		return nil, r.overlays[target].OnStart()
	case ActionPermissions:
		return nil, r.overlays[target].OnRequestPermissionsResult(step.RequestCode, step.Perms, step.Grants)
	case ActionActivityResult:
		return nil, r.overlays[target].OnActivityResult(step.RequestCode, step.ResultCode, step.Data)
	case ActionClose:
		r.overlays[target].Close()
		return nil, nil
	case ActionInvoke:
		return r.proxies[target].Call(step.Method, step.Args...)
	case ActionClear:
		r.proxies[target].Handler().Clear()
		return nil, nil
	case ActionFinalize:
		return nil, r.proxies[target].Handler().Finalize()
	case ActionRelease:
		return nil, r.proxies[target].Release()
	case ActionBroadcast:
		return nil, r.receiver.OnReceive(broadcast.Intent("scenario", *step.Broadcast))
	default:
		return nil, errors.InvalidInput(errors.PhaseScenario, "unknown action "+action)
	}
}

func (r *Runner) check(step *Step, res StepResult) []string {
	var failures []string
	if step.ExpectForwards != nil && *step.ExpectForwards != res.Forwards {
		failures = append(failures, fmt.Sprintf("expected %d forwards, got %d", *step.ExpectForwards, res.Forwards))
	}
	if step.ExpectError != nil && *step.ExpectError != (res.Err != nil) {
		if res.Err != nil {
			failures = append(failures, "unexpected error: "+res.Err.Error())
		} else {
			failures = append(failures, "expected an error")
		}
	}
	if step.ExpectError == nil && res.Err != nil {
		failures = append(failures, "error: "+res.Err.Error())
	}
	if step.HasExpectedResult() {
		want, err := step.ExpectedResult()
		if err != nil {
			failures = append(failures, "decode expect_result: "+err.Error())
		} else if !sameValue(want, res.Result) {
			failures = append(failures, fmt.Sprintf("expected result %v, got %v", want, res.Result))
		}
	}
	return failures
}

// sameValue compares values after normalizing both through JSON, so 1 from
// YAML equals 1.0 from a JSON guest.
func sameValue(a, b any) bool {
	na, errA := normalize(a)
	nb, errB := normalize(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return reflect.DeepEqual(na, nb)
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
