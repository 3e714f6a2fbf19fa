// Package capability implements the built-in tool capabilities: workspace
// file access, shell command execution, and managed background processes.
// Everything here is instantiated and injected by the host; nothing is a
// package-level singleton.
package capability

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirEntry is one entry of a directory listing.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size,omitempty"`
}

// Workspace provides file operations rooted at a project directory.
// Relative paths resolve against the root; absolute paths are used as-is.
type Workspace struct {
	root string
}

// NewWorkspace creates a workspace rooted at dir. An empty dir means the
// current working directory.
func NewWorkspace(dir string) *Workspace {
	if dir == "" {
		dir, _ = os.Getwd()
	}
	return &Workspace{root: dir}
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string { return w.root }

// Init ensures the root directory exists.
func (w *Workspace) Init() error {
	return os.MkdirAll(w.root, 0755)
}

func (w *Workspace) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(w.root, path)
}

// ReadFile returns line-numbered file content. offset is a 1-based start
// line; limit caps the number of lines. Zero values mean "from the top" and
// "no cap".
func (w *Workspace) ReadFile(path string, offset, limit int) (string, error) {
	data, err := os.ReadFile(w.resolve(path))
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}

	lines := strings.Split(string(data), "\n")

	start := 0
	if offset > 0 {
		start = offset - 1
	}
	if start >= len(lines) {
		return "", nil
	}

	end := len(lines)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	var sb strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&sb, "%d | %s\n", i+1, lines[i])
	}
	return sb.String(), nil
}

// ReadRaw returns file content without line numbering.
func (w *Workspace) ReadRaw(path string) (string, error) {
	data, err := os.ReadFile(w.resolve(path))
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}
	return string(data), nil
}

// WriteFile writes content to a file, creating parent directories as needed.
func (w *Workspace) WriteFile(path string, content string) error {
	resolved := w.resolve(path)
	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return fmt.Errorf("write_file: failed to create directory: %w", err)
	}
	return os.WriteFile(resolved, []byte(content), 0644)
}

// EditFile replaces an occurrence of oldString with newString. When the
// string appears more than once, the edit is rejected unless replaceAll is
// set; a silently wrong edit is worse than a retry.
func (w *Workspace) EditFile(path, oldString, newString string, replaceAll bool) (int, error) {
	content, err := w.ReadRaw(path)
	if err != nil {
		return 0, err
	}

	count := strings.Count(content, oldString)
	if count == 0 {
		return 0, fmt.Errorf("edit_file: old_string not found in %s", path)
	}
	if count > 1 && !replaceAll {
		return 0, fmt.Errorf("edit_file: old_string found %d times in %s; provide more context or set replace_all", count, path)
	}

	replaced := 1
	if replaceAll {
		content = strings.ReplaceAll(content, oldString, newString)
		replaced = count
	} else {
		content = strings.Replace(content, oldString, newString, 1)
	}
	return replaced, w.WriteFile(path, content)
}

// Exists reports whether a path exists in the workspace.
func (w *Workspace) Exists(path string) bool {
	_, err := os.Stat(w.resolve(path))
	return err == nil
}

// ListDirectory lists the immediate entries of a directory.
func (w *Workspace) ListDirectory(path string) ([]DirEntry, error) {
	entries, err := os.ReadDir(w.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("list_directory: %w", err)
	}

	result := make([]DirEntry, 0, len(entries))
	for _, entry := range entries {
		de := DirEntry{Name: entry.Name(), IsDir: entry.IsDir()}
		if info, err := entry.Info(); err == nil {
			de.Size = info.Size()
		}
		result = append(result, de)
	}
	return result, nil
}

// Glob returns paths matching pattern under dir, relative to the workspace
// root where possible.
func (w *Workspace) Glob(pattern, dir string) ([]string, error) {
	base := w.root
	if dir != "" {
		base = w.resolve(dir)
	}

	matches, err := filepath.Glob(filepath.Join(base, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob: %w", err)
	}

	result := make([]string, len(matches))
	for i, m := range matches {
		if rel, err := filepath.Rel(w.root, m); err == nil {
			result[i] = rel
		} else {
			result[i] = m
		}
	}
	return result, nil
}
