package linker

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"iris/internal/ast"
	"iris/internal/util"
)

// FileResolver loads modules stored as JSON-encoded programs. An import
// path "geo.shapes" names geo/shapes.json, looked up under Root first and
// then under Home/lib.
type FileResolver struct {
	Root string
	Home string
	// DebugAST writes the normalised program next to each loaded file.
	DebugAST bool
}

func (r *FileResolver) Resolve(path string) (*ast.Program, bool) {
	p, _, err := r.Load(path)
	if err != nil {
		slog.Warn("Error loading module",
			slog.String("name", path),
			slog.Any("error", err))
		return nil, false
	}
	return p, true
}

// Load returns the program for an import path and the file it came from.
func (r *FileResolver) Load(path string) (*ast.Program, string, error) {
	relPath := filepath.Join(strings.Split(path, ".")...) + ".json"

	fullPath := filepath.Join(r.Root, relPath)
	source, errFirst := os.ReadFile(fullPath)
	if errFirst != nil {
		if r.Home == "" {
			return nil, "", fmt.Errorf("could not load module %s: %v (IRIS_HOME not set)", path, errFirst)
		}
		var err error
		fullPath = filepath.Join(r.Home, "lib", relPath)
		source, err = os.ReadFile(fullPath)
		if err != nil {
			return nil, "", fmt.Errorf("could not load module %s: local error: %v, lib error: %v", path, errFirst, err)
		}
	}

	p, err := DecodeFile(fullPath, source)
	if err != nil {
		return nil, "", err
	}
	slog.Debug("module loaded", slog.String("name", path), slog.String("fullPath", fullPath))

	if r.DebugAST {
		WriteDebugAST(fullPath, p)
	}
	return p, fullPath, nil
}

// DecodeFile decodes a program file. JSON syntax errors are reported with
// the surrounding source lines.
func DecodeFile(name string, source []byte) (*ast.Program, error) {
	p, err := ast.DecodeProgram(source)
	if err == nil {
		return p, nil
	}
	var syntax *json.SyntaxError
	if errors.As(err, &syntax) {
		line, col := util.GetLineAndColumn(string(source), int(syntax.Offset)-1)
		return nil, fmt.Errorf("%s:%d:%d: %w\n%s", name, line, col, err,
			util.GetContextLines(string(source), line, col))
	}
	return nil, fmt.Errorf("%s: %w", name, err)
}

// WriteDebugAST stores the re-encoded program at path + ".ast.json".
func WriteDebugAST(path string, p *ast.Program) {
	data, err := ast.EncodeProgram(p)
	if err != nil {
		slog.Error("Failed to render AST as JSON", slog.Any("error", err))
		return
	}
	if err := os.WriteFile(path+".ast.json", data, 0o644); err != nil {
		slog.Error("Failed to write AST as JSON", slog.Any("error", err))
	}
}
