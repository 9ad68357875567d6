package util

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

type Configuration struct {
	Version   string
	BuildDate string
	Commit    string
	// RootPath and IrisHome are searched, in that order, for imported
	// module files.
	RootPath string
	IrisHome string
	LogLevel string
	LogFile  string
	Entry    string
	Args     []string
	// ToolDSN opens a SQL database as a tool host when set.
	ToolDSN  string
	DebugAST bool
}

// FileConfig is the optional TOML configuration file.
//
//	root  = "./modules"
//	entry = "main"
//	args  = ["a", "b"]
//
//	[log]
//	level = "debug"
//	file  = "/var/log/iris.log"
//
//	[tools]
//	dsn = "sqlite:tools.db"
type FileConfig struct {
	Root  string   `toml:"root"`
	Entry string   `toml:"entry"`
	Args  []string `toml:"args"`
	Log   struct {
		Level string `toml:"level"`
		File  string `toml:"file"`
	} `toml:"log"`
	Tools struct {
		DSN string `toml:"dsn"`
	} `toml:"tools"`
}

func LoadFileConfig(path string) (*FileConfig, error) {
	var fc FileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config %s: unknown key %s", path, undecoded[0])
	}
	return &fc, nil
}

// Merge fills c from the file for every setting the command line did not
// set explicitly. flagSet reports whether the flag with that name was
// given.
func (fc *FileConfig) Merge(c *Configuration, flagSet func(name string) bool) {
	apply := func(flag, value string, dst *string) {
		if value != "" && !flagSet(flag) {
			*dst = value
		}
	}
	apply("root", fc.Root, &c.RootPath)
	apply("entry", fc.Entry, &c.Entry)
	apply("log-level", fc.Log.Level, &c.LogLevel)
	apply("log-file", fc.Log.File, &c.LogFile)
	apply("tools", fc.Tools.DSN, &c.ToolDSN)
	if len(c.Args) == 0 {
		c.Args = fc.Args
	}
}
