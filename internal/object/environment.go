package object

// Environment is an immutable chain of bindings. The nil *Environment is the
// empty environment, so callers can extend it directly.
type Environment struct {
	name  string
	value Object
	outer *Environment
}

// Extend returns a new environment with name bound in front of e.
func (e *Environment) Extend(name string, value Object) *Environment {
	return &Environment{name: name, value: value, outer: e}
}

// Get looks name up innermost first.
func (e *Environment) Get(name string) (Object, bool) {
	for cur := e; cur != nil; cur = cur.outer {
		if cur.name == name {
			return cur.value, true
		}
	}
	return nil, false
}

// Bind extends e with names bound positionally to values.
func (e *Environment) Bind(names []string, values []Object) *Environment {
	env := e
	for i, n := range names {
		env = env.Extend(n, values[i])
	}
	return env
}
