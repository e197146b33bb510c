package reconcile

import "fmt"

// Result is the outcome of a reconcile operation.
type Result struct {
	Changed bool   `json:"changed" yaml:"changed"`
	Msg     string `json:"msg,omitempty" yaml:"msg,omitempty"`
}

// Outcome reports the changed flag and message. Typed results embed
// Result, so every operation outcome exposes it.
func (r Result) Outcome() (bool, string) {
	return r.Changed, r.Msg
}

func resultf(changed bool, format string, args ...any) Result {
	return Result{Changed: changed, Msg: fmt.Sprintf(format, args...)}
}
