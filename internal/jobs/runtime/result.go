package runtime

import "fmt"

// Status classifies a step outcome so the worker can route it: retry with
// backoff, dead-letter, or just keep going.
type Status int

const (
	Ok Status = iota
	Skipped
	Transient
	Terminal
)

func (s Status) String() string {
	switch s {
	case Ok:
		return "ok"
	case Skipped:
		return "skipped"
	case Transient:
		return "transient"
	case Terminal:
		return "terminal"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the tagged outcome of one pipeline step.
type Result struct {
	Status Status
	Reason string
	Err    error
}

func OK() Result                  { return Result{Status: Ok} }
func Skip(reason string) Result   { return Result{Status: Skipped, Reason: reason} }
func TransientErr(err error) Result { return Result{Status: Transient, Err: err} }
func TerminalErr(err error) Result  { return Result{Status: Terminal, Err: err} }

// Failed reports whether the result should stop the pipeline.
func (r Result) Failed() bool {
	return r.Status == Transient || r.Status == Terminal
}

func (r Result) ErrorString() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.Reason
}
