package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"iris/internal/object"
)

// ToolFunc implements one tool.
type ToolFunc func(ctx context.Context, args []object.Object) (object.Object, error)

// ToolRegistry is a ToolHost backed by Go functions.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]ToolFunc
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]ToolFunc)}
}

func (r *ToolRegistry) Register(name string, fn ToolFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = fn
}

// RegisterFunc registers a plain Go function; arguments and the result
// are converted with ToGo and FromGo.
func (r *ToolRegistry) RegisterFunc(name string, fn func(args ...interface{}) (interface{}, error)) {
	r.Register(name, func(ctx context.Context, args []object.Object) (object.Object, error) {
		in := make([]interface{}, len(args))
		for i, a := range args {
			in[i] = ToGo(a)
		}
		out, err := fn(in...)
		if err != nil {
			return nil, err
		}
		return FromGo(out), nil
	})
}

func (r *ToolRegistry) CallTool(ctx context.Context, name string, args []object.Object) (object.Object, error) {
	r.mu.RLock()
	fn, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return fn(ctx, args)
}

// Tools chains hosts: each is tried in order until one knows the tool.
type Tools []ToolHost

func (t Tools) CallTool(ctx context.Context, name string, args []object.Object) (object.Object, error) {
	for _, h := range t {
		out, err := h.CallTool(ctx, name, args)
		if errors.Is(err, ErrToolNotFound) {
			continue
		}
		return out, err
	}
	return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
}
