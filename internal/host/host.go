// Package host holds the collaborators an interpreter reaches the outside
// world through: a filesystem, a network and a tool host.
package host

import (
	"context"
	"errors"

	"iris/internal/object"
)

// FileSystem backs the io.* intrinsics. Missing files and directories
// report ok=false rather than an error.
type FileSystem interface {
	ReadFile(path string) (string, bool)
	WriteFile(path, content string) bool
	Exists(path string) bool
	ReadDir(path string) ([]string, bool)
}

// Network backs the net.* intrinsics. Handles are opaque positive
// integers owned by the implementation. Every call may block.
type Network interface {
	Listen(ctx context.Context, port int) (int64, error)
	Accept(ctx context.Context, handle int64) (int64, error)
	Read(ctx context.Context, handle int64) (string, error)
	Write(ctx context.Context, handle int64, data string) error
	Close(ctx context.Context, handle int64) error
	Connect(ctx context.Context, host string, port int) (int64, error)
}

// ErrToolNotFound is wrapped by every ToolHost that does not know a tool.
var ErrToolNotFound = errors.New("tool not found")

// ToolHost executes DefTool declarations.
type ToolHost interface {
	CallTool(ctx context.Context, name string, args []object.Object) (object.Object, error)
}
