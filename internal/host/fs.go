package host

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// OSFileSystem reads and writes the real filesystem. Relative paths are
// resolved against Root when it is set.
type OSFileSystem struct {
	Root string
}

func (f OSFileSystem) path(p string) string {
	if f.Root == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(f.Root, p)
}

func (f OSFileSystem) ReadFile(path string) (string, bool) {
	data, err := os.ReadFile(f.path(path))
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (f OSFileSystem) WriteFile(path, content string) bool {
	full := f.path(path)
	if dir := filepath.Dir(full); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false
		}
	}
	return os.WriteFile(full, []byte(content), 0o644) == nil
}

func (f OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(f.path(path))
	return err == nil
}

func (f OSFileSystem) ReadDir(path string) ([]string, bool) {
	entries, err := os.ReadDir(f.path(path))
	if err != nil {
		return nil, false
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, true
}

// MemFS is an in-memory FileSystem keyed by path.
type MemFS struct {
	mu    sync.RWMutex
	files map[string]string
}

func NewMemFS(files map[string]string) *MemFS {
	m := &MemFS{files: make(map[string]string, len(files))}
	for k, v := range files {
		m.files[k] = v
	}
	return m
}

func (m *MemFS) ReadFile(path string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.files[path]
	return content, ok
}

func (m *MemFS) WriteFile(path, content string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
	return true
}

func (m *MemFS) Exists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[path]
	return ok
}

// ReadDir lists every stored path under path; "." lists everything.
func (m *MemFS) ReadDir(path string) ([]string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := strings.TrimSuffix(path, "/") + "/"
	var out []string
	for k := range m.files {
		if path == "." || strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, true
}
