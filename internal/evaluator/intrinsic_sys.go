package evaluator

import (
	"context"
	"fmt"
	"time"

	"iris/internal/object"
	"iris/internal/process"
)

var sysIntrinsics = map[string]intrinsicFn{
	"sys.self":  arity(0, sysSelf),
	"sys.args":  arity(0, sysArgs),
	"sys.spawn": arity(1, sysSpawn),
	"sys.send":  arity(2, sysSend),
	"sys.recv":  arity(0, sysRecv),
	"sys.sleep": arity(1, sysSleep),
}

func sysSelf(in *Interpreter, t *task, args []object.Object) (object.Object, error) {
	return object.NewI64(int64(t.pid)), nil
}

func sysArgs(in *Interpreter, t *task, args []object.Object) (object.Object, error) {
	items := make([]object.Object, len(in.rt.opts.Args))
	for i, a := range in.rt.opts.Args {
		items[i] = object.NewString(a)
	}
	return object.NewList(items...), nil
}

func sysSpawn(in *Interpreter, t *task, args []object.Object) (object.Object, error) {
	name, err := asStr("sys.spawn", args[0])
	if err != nil {
		return nil, err
	}
	pid, err := in.rt.spawn(t, in, name)
	if err != nil {
		return nil, newError("sys.spawn: %s", err)
	}
	return object.NewI64(int64(pid)), nil
}

// sysSend never blocks: the message is handed to a parked receiver or
// buffered.
func sysSend(in *Interpreter, t *task, args []object.Object) (object.Object, error) {
	to, err := asSmallInt("sys.send", args[0])
	if err != nil {
		return nil, err
	}
	msg, err := asStr("sys.send", args[1])
	if err != nil {
		return nil, err
	}
	return object.NativeBool(in.rt.registry.Send(process.Pid(to), msg)), nil
}

// sysRecv only yields when the mailbox is empty.
func sysRecv(in *Interpreter, t *task, args []object.Object) (object.Object, error) {
	msg, ok, err := in.rt.registry.TryRecv(t.pid)
	if err != nil {
		return nil, newError("%s", err)
	}
	if ok {
		return object.NewString(msg), nil
	}
	err = in.rt.suspend(t, "recv", func(ctx context.Context) error {
		var rerr error
		msg, rerr = in.rt.registry.Recv(ctx, t.pid)
		return rerr
	})
	if err != nil {
		return nil, err
	}
	return object.NewString(msg), nil
}

func sysSleep(in *Interpreter, t *task, args []object.Object) (object.Object, error) {
	ms, err := asSmallInt("sys.sleep", args[0])
	if err != nil {
		return nil, err
	}
	err = in.rt.suspend(t, fmt.Sprintf("sleep %dms", ms), func(ctx context.Context) error {
		timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		return nil, err
	}
	return object.TRUE, nil
}
