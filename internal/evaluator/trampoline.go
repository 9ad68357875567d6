package evaluator

import (
	"iris/internal/ast"
	"iris/internal/object"
)

// evalTrampoline is the strategy for Pure and IO functions. Tail positions
// (a let body, an if branch, a match arm, the body of a called function)
// become the next iteration of the loop instead of a native call, so tail
// recursion runs in constant host stack.
func (in *Interpreter) evalTrampoline(t *task, e ast.Expr, env *object.Environment) (object.Object, error) {
	if err := t.enter(); err != nil {
		return nil, err
	}
	defer t.leave()

	cur := in
	for {
		switch node := e.(type) {
		case *ast.Let:
			val, err := cur.evalTrampoline(t, node.Value, env)
			if err != nil {
				return nil, err
			}
			e, env = node.Body, env.Extend(node.Name, val)

		case *ast.If:
			branch, err := cur.branch(t, node, env, cur.evalTrampoline)
			if err != nil {
				return nil, err
			}
			e = branch

		case *ast.Match:
			target, err := cur.evalTrampoline(t, node.Target, env)
			if err != nil {
				return nil, err
			}
			body, bound, err := matchCase(node, target, env)
			if err != nil {
				return nil, err
			}
			e, env = body, bound

		case *ast.Call:
			args, err := cur.evalAll(t, node.Args, env, cur.evalTrampoline)
			if err != nil {
				return nil, err
			}
			c, err := cur.resolveCall(t, node.Fn, env)
			if err != nil {
				return nil, err
			}
			if c.intrinsic || c.tool != nil {
				return c.apply(t, args)
			}
			body, bound, eff, err := c.bind(args)
			if err != nil {
				return nil, err
			}
			if eff.Suspends() {
				return c.owner.eval(t, body, bound)
			}
			cur, e, env = c.owner, body, bound

		default:
			return cur.evalLeaf(t, e, env, cur.evalTrampoline)
		}
	}
}
