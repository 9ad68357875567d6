package evaluator

import (
	"context"
	"errors"

	"iris/internal/ast"
	"iris/internal/host"
	"iris/internal/object"
)

// callTool delegates a DefTool to the host. Unknown tools and host
// failures are runtime errors.
func (in *Interpreter) callTool(t *task, def *ast.DefTool, args []object.Object) (object.Object, error) {
	tools := in.rt.opts.Tools
	if tools == nil {
		return nil, newError("Tool not implemented: %s", def.Name)
	}
	out, callErr, err := await(in, t, "tool "+def.Name, func(ctx context.Context) (object.Object, error) {
		return tools.CallTool(ctx, def.Name, args)
	})
	switch {
	case err != nil:
		return nil, err
	case errors.Is(callErr, host.ErrToolNotFound):
		return nil, newError("Tool not found: %s", def.Name)
	case callErr != nil:
		return nil, newError("Tool %s failed: %s", def.Name, callErr)
	}
	return out, nil
}
