package evaluator

import (
	"context"
	"fmt"

	"iris/internal/object"
	"iris/internal/util/future"
)

var netIntrinsics = map[string]intrinsicFn{
	"net.listen":  arity(1, netListen),
	"net.accept":  arity(1, netAccept),
	"net.read":    arity(1, netRead),
	"net.write":   arity(2, netWrite),
	"net.close":   arity(1, netClose),
	"net.connect": arity(2, netConnect),
}

// await runs a blocking host call in its own goroutine while the process
// is suspended. The host call's own failure is returned separately from
// the error that ends the process.
func await[T any](in *Interpreter, t *task, reason string, call func(ctx context.Context) (T, error)) (T, error, error) {
	var out T
	var callErr error
	err := in.rt.suspend(t, reason, func(ctx context.Context) error {
		v, err := future.New(func() (T, error) { return call(ctx) }).AwaitContext(ctx)
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		out, callErr = v, err
		return nil
	})
	return out, callErr, err
}

func netListen(in *Interpreter, t *task, args []object.Object) (object.Object, error) {
	port, err := asSmallInt("net.listen", args[0])
	if err != nil {
		return nil, err
	}
	h, callErr, err := await(in, t, fmt.Sprintf("listen :%d", port), func(ctx context.Context) (int64, error) {
		return in.rt.opts.Net.Listen(ctx, int(port))
	})
	return handleResult(h, callErr, err, "Listen failed")
}

func netAccept(in *Interpreter, t *task, args []object.Object) (object.Object, error) {
	handle, err := asSmallInt("net.accept", args[0])
	if err != nil {
		return nil, err
	}
	h, callErr, err := await(in, t, "accept", func(ctx context.Context) (int64, error) {
		return in.rt.opts.Net.Accept(ctx, handle)
	})
	return handleResult(h, callErr, err, "Accept failed")
}

func netRead(in *Interpreter, t *task, args []object.Object) (object.Object, error) {
	handle, err := asSmallInt("net.read", args[0])
	if err != nil {
		return nil, err
	}
	data, callErr, err := await(in, t, "read", func(ctx context.Context) (string, error) {
		return in.rt.opts.Net.Read(ctx, handle)
	})
	if err != nil {
		return nil, err
	}
	if callErr != nil {
		return object.ErrString("Read failed"), nil
	}
	return object.Ok(object.NewString(data)), nil
}

func netWrite(in *Interpreter, t *task, args []object.Object) (object.Object, error) {
	handle, err := asSmallInt("net.write", args[0])
	if err != nil {
		return nil, err
	}
	data, err := asStr("net.write", args[1])
	if err != nil {
		return nil, err
	}
	_, callErr, err := await(in, t, "write", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, in.rt.opts.Net.Write(ctx, handle, data)
	})
	if err != nil {
		return nil, err
	}
	if callErr != nil {
		return object.ErrString("Write failed"), nil
	}
	return object.Ok(object.NewI64(1)), nil
}

func netClose(in *Interpreter, t *task, args []object.Object) (object.Object, error) {
	handle, err := asSmallInt("net.close", args[0])
	if err != nil {
		return nil, err
	}
	_, callErr, err := await(in, t, "close", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, in.rt.opts.Net.Close(ctx, handle)
	})
	if err != nil {
		return nil, err
	}
	if callErr != nil {
		return object.ErrString("Close failed"), nil
	}
	return object.Ok(object.TRUE), nil
}

func netConnect(in *Interpreter, t *task, args []object.Object) (object.Object, error) {
	hostname, err := asStr("net.connect", args[0])
	if err != nil {
		return nil, err
	}
	port, err := asSmallInt("net.connect", args[1])
	if err != nil {
		return nil, err
	}
	h, callErr, err := await(in, t, fmt.Sprintf("connect %s:%d", hostname, port), func(ctx context.Context) (int64, error) {
		return in.rt.opts.Net.Connect(ctx, hostname, int(port))
	})
	return handleResult(h, callErr, err, "Connect failed")
}

func handleResult(h int64, callErr, err error, failure string) (object.Object, error) {
	if err != nil {
		return nil, err
	}
	if callErr != nil {
		return object.ErrString(failure), nil
	}
	return object.Ok(object.NewI64(h)), nil
}
