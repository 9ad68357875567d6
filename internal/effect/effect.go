package effect

import "fmt"

// Effect is the declared side-effect class of a function. The concrete
// classes form the chain Pure < IO < Net < Any; Infer is a marker asking the
// checker to compute the effect from the body.
type Effect int

const (
	Pure Effect = iota
	IO
	Net
	Any
	Infer
)

func (e Effect) String() string {
	switch e {
	case Pure:
		return "!Pure"
	case IO:
		return "!IO"
	case Net:
		return "!Net"
	case Any:
		return "!Any"
	case Infer:
		return "!Infer"
	default:
		return fmt.Sprintf("!Effect(%d)", int(e))
	}
}

// Parse accepts both the bang-prefixed and the bare spelling.
func Parse(s string) (Effect, error) {
	switch s {
	case "!Pure", "Pure":
		return Pure, nil
	case "!IO", "IO":
		return IO, nil
	case "!Net", "Net":
		return Net, nil
	case "!Any", "Any":
		return Any, nil
	case "!Infer", "Infer":
		return Infer, nil
	}
	return Pure, fmt.Errorf("unknown effect %q", s)
}

func (e Effect) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *Effect) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// order places Infer below Pure so that it never raises a requirement.
func (e Effect) order() int {
	if e == Infer {
		return -1
	}
	return int(e)
}

// Join returns the least upper bound of two effects. Any Infer operand
// collapses the result to Pure.
func Join(a, b Effect) Effect {
	if a == Infer || b == Infer {
		return Pure
	}
	if a > b {
		return a
	}
	return b
}

// JoinAll folds Join over effs starting from Pure.
func JoinAll(effs ...Effect) Effect {
	out := Pure
	for _, e := range effs {
		out = Join(out, e)
	}
	return out
}

// Accepts reports whether a body whose effect is required may be declared
// with effect declared.
func Accepts(declared, required Effect) bool {
	switch declared {
	case Any, Infer:
		return true
	case Net:
		return required == Pure || required == IO || required == Net || required == Infer
	case IO:
		return required == Pure || required == IO || required == Infer
	case Pure:
		return required == Pure
	}
	return required.order() <= declared.order()
}

// AtCallSite is the effect a caller accumulates for calling a function
// declared with e. A callee that still says Infer is treated as Any.
func AtCallSite(e Effect) Effect {
	if e == Infer {
		return Any
	}
	return e
}

// Suspends reports whether a function with this effect runs on the
// suspending walker rather than the trampoline.
func (e Effect) Suspends() bool {
	return e != Pure && e != IO
}
