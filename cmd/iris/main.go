package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"iris"
	"iris/internal/ast"
	"iris/internal/host"
	"iris/internal/host/sqltool"
	"iris/internal/linker"
	"iris/internal/logger"
	"iris/internal/util"
)

const (
	DefaultRootPath = "."
)

var (
	Version   = "dev"
	BuildDate = "unknown"
	Commit    = "unknown"
	help      bool
	version   bool
	checkOnly bool
	// logging
	logLevel string
	logFile  string
	// config vars
	configFile string
	rootPath   string
	entry      string
	toolDSN    string
	debugAST   bool
)

func init() {
	flag.BoolVar(&help, "help", false, "Display help information and exit")
	flag.BoolVar(&help, "h", false, "Display help information and exit")
	flag.BoolVar(&version, "version", false, "Display version information and exit")
	flag.BoolVar(&version, "v", false, "Display version information and exit")
	flag.BoolVar(&checkOnly, "check", false, "Type check every file argument and exit")
	flag.StringVar(&configFile, "config", "", "Read settings from a TOML file; flags override it")
	// evaluator config
	flag.StringVar(&rootPath, "root", DefaultRootPath, "Set the root context for the program (used for imports)")
	flag.StringVar(&entry, "entry", "main", "Function to run")
	flag.StringVar(&toolDSN, "tools", "", "Database DSN exposed as the sql_query and sql_exec tools")
	flag.BoolVar(&debugAST, "debug-ast", false, "Write the normalised AST of every loaded file as JSON")
	// log config
	flag.StringVar(&logLevel, "log-level", "error", "Log level: debug, info, warn, error")
	flag.StringVar(&logFile, "log-file", "", "Log file path (if not set, logs to stderr)")
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if version {
		printVersion()
		return 0
	}
	if help || flag.NArg() == 0 {
		printHelp()
		return 0
	}

	config := util.Configuration{
		Version:   Version,
		BuildDate: BuildDate,
		Commit:    Commit,
		RootPath:  rootPath,
		IrisHome:  os.Getenv("IRIS_HOME"),
		LogLevel:  logLevel,
		LogFile:   logFile,
		Entry:     entry,
		ToolDSN:   toolDSN,
		DebugAST:  debugAST,
	}
	if !checkOnly {
		config.Args = flag.Args()[1:]
	}
	if configFile != "" {
		fc, err := util.LoadFileConfig(configFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		set := make(map[string]bool)
		flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
		fc.Merge(&config, func(name string) bool { return set[name] })
	}

	logWriter := configureLogWriter(config.LogFile)
	slog.SetDefault(slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		AddSource: false,
		Level:     logLevelFromString(config.LogLevel),
	})))
	logger.SetOutput(logWriter)
	logger.SetLevel(logger.ParseLevel(config.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	resolver, err := linker.NewCachingResolver(&linker.FileResolver{
		Root:     config.RootPath,
		Home:     config.IrisHome,
		DebugAST: config.DebugAST,
	}, 0)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer resolver.Close()

	if checkOnly {
		return checkFiles(ctx, resolver, flag.Args())
	}
	return runFile(ctx, config, resolver, flag.Arg(0))
}

func loadProgram(path string, debug bool) (*ast.Program, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("File not found: %s", path)
	}
	p, err := linker.DecodeFile(path, source)
	if err != nil {
		return nil, err
	}
	if debug {
		linker.WriteDebugAST(path, p)
	}
	return p, nil
}

// checkFiles type checks files concurrently and reports each outcome in
// argument order.
func checkFiles(ctx context.Context, resolver ast.Resolver, files []string) int {
	results := make([]string, len(files))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, file := range files {
		g.Go(func() error {
			p, err := loadProgram(file, debugAST)
			if err != nil {
				results[i] = err.Error()
				return err
			}
			if err := iris.Check(p, resolver); err != nil {
				results[i] = iris.Describe(err)
				return err
			}
			results[i] = "ok"
			return nil
		})
	}
	failed := g.Wait() != nil

	for i, file := range files {
		fmt.Printf("%s: %s\n", file, results[i])
	}
	if failed {
		return 1
	}
	return 0
}

func runFile(ctx context.Context, config util.Configuration, resolver ast.Resolver, file string) int {
	p, err := loadProgram(file, config.DebugAST)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return 2
	}

	network := host.NewTCPNetwork()
	defer network.CloseAll()

	opts := iris.Options{
		Resolver: resolver,
		Entry:    config.Entry,
		FS:       host.OSFileSystem{Root: config.RootPath},
		Net:      network,
		Args:     config.Args,
		Stdout:   os.Stdout,
	}
	if config.ToolDSN != "" {
		db, err := sqltool.Open(ctx, config.ToolDSN, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			return 2
		}
		defer db.Close()
		opts.Tools = db
	}

	out, err := iris.Execute(ctx, p, opts)
	if err != nil {
		fmt.Println(iris.Describe(err))
		return 1
	}
	fmt.Println(out.Inspect())
	return 0
}

func configureLogWriter(logFile string) *os.File {
	if logFile == "" {
		return os.Stderr
	}
	// Create parent directories if they don't exist
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory for '%s': %v; falling back to stderr\n", logFile, err)
		return os.Stderr
	}
	logWriter, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file '%s': %v; falling back to stderr\n", logFile, err)
		return os.Stderr
	}
	return logWriter
}

func printVersion() {
	fmt.Printf("iris version 'v%s' %s %s\n", Version, BuildDate, Commit)
}

func printHelp() {
	fmt.Printf(`Usage: iris [options] program.json [args...]
       iris -check [options] a.json [b.json ...]

Options:
  -root <path>       Set the root context for the program (used for imports). Default is '.'
  -entry <name>      Function to run. Default is 'main'.
  -tools <dsn>       Expose a database as tools (sqlite:path, mysql://..., postgres://...).
  -config <file>     Read settings from a TOML file. Flags win over the file.
  -check             Type check the given files and exit.
  -debug-ast         Write the normalised AST of every loaded file as JSON.
  -help              Display this help information and exit.
  -version           Display version information and exit.
  -log-level <level> Set the log level: debug, info, warn, error. Default is 'error'.
  -log-file <path>   Specify a log file to write logs. Default is stderr.

Details:
Programs are read in the JSON interchange format produced by the parser.
Imports are looked up under -root, then under $IRIS_HOME/lib.

Version Information:
  Version:    %s
  Build Date: %s
  Commit:     %s
`, Version, BuildDate, Commit)
}

func logLevelFromString(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
