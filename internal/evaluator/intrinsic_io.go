package evaluator

import (
	"iris/internal/object"
)

// io.* run on the caller's turn; filesystem access never yields the baton.
var ioIntrinsics = map[string]intrinsicFn{
	"io.read_file":   arity(1, ioReadFile),
	"io.write_file":  arity(2, ioWriteFile),
	"io.file_exists": arity(1, ioFileExists),
	"io.read_dir":    arity(1, ioReadDir),
	"io.print":       arity(1, ioPrint),
}

func ioReadFile(in *Interpreter, t *task, args []object.Object) (object.Object, error) {
	path, err := asStr("io.read_file", args[0])
	if err != nil {
		return nil, err
	}
	content, ok := in.rt.opts.FS.ReadFile(path)
	if !ok {
		return object.ErrString("ENOENT"), nil
	}
	return object.Ok(object.NewString(content)), nil
}

func ioWriteFile(in *Interpreter, t *task, args []object.Object) (object.Object, error) {
	path, err := asStr("io.write_file", args[0])
	if err != nil {
		return nil, err
	}
	content, err := asStr("io.write_file", args[1])
	if err != nil {
		return nil, err
	}
	if !in.rt.opts.FS.WriteFile(path, content) {
		return object.ErrString("Write failed"), nil
	}
	return object.Ok(object.NewI64(int64(len(content)))), nil
}

func ioFileExists(in *Interpreter, t *task, args []object.Object) (object.Object, error) {
	path, err := asStr("io.file_exists", args[0])
	if err != nil {
		return nil, err
	}
	return object.NativeBool(in.rt.opts.FS.Exists(path)), nil
}

func ioReadDir(in *Interpreter, t *task, args []object.Object) (object.Object, error) {
	path, err := asStr("io.read_dir", args[0])
	if err != nil {
		return nil, err
	}
	names, ok := in.rt.opts.FS.ReadDir(path)
	if !ok {
		return object.ErrString("Directory not found or error"), nil
	}
	items := make([]object.Object, len(names))
	for i, n := range names {
		items[i] = object.NewString(n)
	}
	return object.Ok(object.NewList(items...)), nil
}

// ioPrint writes strings raw and everything else in inspect form.
func ioPrint(in *Interpreter, t *task, args []object.Object) (object.Object, error) {
	in.rt.print(object.Display(args[0]))
	return object.NewI64(0), nil
}
