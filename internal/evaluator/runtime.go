package evaluator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"iris/internal/ast"
	"iris/internal/host"
	"iris/internal/logger"
	"iris/internal/object"
	"iris/internal/process"
)

// Options are the collaborators of one run. Zero values get in-memory
// defaults so tests only set what they exercise.
type Options struct {
	// Entry names the function Run starts; it defaults to "main".
	Entry    string
	Resolver ast.Resolver
	FS       host.FileSystem
	Net      host.Network
	Tools    host.ToolHost
	HTTP     *http.Client
	Args     []string
	Stdout   io.Writer
	Logger   *logger.Logger
}

type siblingKey struct {
	pid  process.Pid
	path string
}

// Runtime owns everything a single top-level run shares between its
// processes: the registry, the scheduler baton and the collaborators.
type Runtime struct {
	opts      Options
	registry  *process.Registry
	scheduler *process.Scheduler
	log       *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	started  bool
	siblings map[siblingKey]*Interpreter
}

func NewRuntime(opts Options) (*Runtime, error) {
	if opts.Entry == "" {
		opts.Entry = "main"
	}
	if opts.FS == nil {
		opts.FS = host.NewMemFS(nil)
	}
	if opts.Net == nil {
		opts.Net = &host.MockNetwork{}
	}
	if opts.HTTP == nil {
		opts.HTTP = http.DefaultClient
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	registry, err := process.NewRegistry()
	if err != nil {
		return nil, err
	}
	return &Runtime{
		opts:      opts,
		registry:  registry,
		scheduler: process.NewScheduler(),
		log:       opts.Logger,
		siblings:  make(map[siblingKey]*Interpreter),
	}, nil
}

// Processes lists every process the run created, ordered by pid.
func (rt *Runtime) Processes() []process.Info {
	return rt.registry.Table().All()
}

// Run executes the entry function of p as pid 1. Spawned processes keep
// running after it returns; the run ends once every remaining process is
// parked in recv with nobody left to wake it, and those are cancelled.
func (rt *Runtime) Run(ctx context.Context, p *ast.Program) (object.Object, error) {
	rt.mu.Lock()
	if rt.started {
		rt.mu.Unlock()
		return nil, errors.New("runtime already used; create one per run")
	}
	rt.started = true
	rt.ctx, rt.cancel = context.WithCancel(ctx)
	rt.mu.Unlock()

	pid, err := rt.registry.Spawn(0, rt.opts.Entry)
	if err != nil {
		rt.cancel()
		return nil, err
	}
	if err := rt.scheduler.Acquire(rt.ctx); err != nil {
		rt.cancel()
		return nil, err
	}
	rt.transition(pid, process.Running, "")

	main := rt.NewInterpreter(p, p.Module.Name)
	t := &task{rt: rt, pid: pid}
	out, err := guard(func() (object.Object, error) { return main.evalMain(t) })
	rt.finish(pid, err)
	rt.registry.Exit(pid)
	rt.scheduler.Release()

	if werr := rt.registry.AwaitIdle(rt.ctx); werr != nil {
		rt.log.Debugf("run interrupted before its processes settled: %s", werr)
	}
	rt.cancel()
	rt.wg.Wait()
	return out, err
}

// suspend hands the baton on while wait blocks. The process is marked
// suspended for the duration; a finished run surfaces as ctx.Err().
func (rt *Runtime) suspend(t *task, reason string, wait func(ctx context.Context) error) error {
	rt.transition(t.pid, process.Suspended, reason)
	err := rt.scheduler.Suspend(func() error { return wait(rt.ctx) })
	rt.transition(t.pid, process.Running, "")
	if cerr := rt.ctx.Err(); cerr != nil {
		return cerr
	}
	return err
}

// spawn starts fnName of in's program as a new process. It does not wait
// for the child to run; the child gets the baton when the spawner next
// suspends or finishes, even if that is the end of main.
func (rt *Runtime) spawn(parent *task, in *Interpreter, fnName string) (process.Pid, error) {
	pid, err := rt.registry.Spawn(parent.pid, fnName)
	if err != nil {
		return 0, err
	}
	child := rt.NewInterpreter(in.program, in.path)

	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		defer rt.registry.Exit(pid)
		if err := rt.scheduler.Acquire(rt.ctx); err != nil {
			rt.transition(pid, process.Completed, "never scheduled")
			return
		}
		defer rt.scheduler.Release()

		rt.transition(pid, process.Running, "")
		t := &task{rt: rt, pid: pid}
		_, err := guard(func() (object.Object, error) { return child.CallFunction(t, fnName, nil) })
		rt.finish(pid, err)
	}()
	rt.log.Debugf("process %d spawned %s as process %d", parent.pid, fnName, pid)
	return pid, nil
}

func (rt *Runtime) finish(pid process.Pid, err error) {
	switch {
	case err == nil:
		rt.transition(pid, process.Completed, "")
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		rt.transition(pid, process.Completed, err.Error())
	default:
		rt.transition(pid, process.Crashed, err.Error())
		if pid != 1 {
			rt.log.Errorf("Process %d crashed: %s", pid, err)
		}
	}
}

func (rt *Runtime) transition(pid process.Pid, state process.State, reason string) {
	if err := rt.registry.Table().Transition(pid, state, reason); err != nil {
		rt.log.Warnf("process %d: %s", pid, err)
	}
}

// sibling returns the interpreter pid uses for the module at path,
// instantiating it on first use. Each process links its own instances so
// module constants stay private to it.
func (rt *Runtime) sibling(pid process.Pid, path string) (*Interpreter, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	key := siblingKey{pid: pid, path: path}
	if in, ok := rt.siblings[key]; ok {
		return in, true
	}
	if rt.opts.Resolver == nil {
		return nil, false
	}
	p, ok := rt.opts.Resolver.Resolve(path)
	if !ok {
		return nil, false
	}
	in := rt.NewInterpreter(p, path)
	rt.siblings[key] = in
	rt.log.Debugf("process %d linked module %s", pid, path)
	return in, true
}

// guard turns a panic inside evaluation into an error so one process can
// never take the whole run down.
func guard(fn func() (object.Object, error)) (out object.Object, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, newError("panic: %v", r)
		}
	}()
	return fn()
}

func (rt *Runtime) print(s string) {
	fmt.Fprintln(rt.opts.Stdout, s)
}
