package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"forkcrawl/pkg/projects"
)

// Manager writes and reads result files, one per completed project
type Manager struct {
	outputDir string
	written   map[string]bool
	mu        sync.RWMutex
}

// NewManager creates outputDir if needed and indexes existing results
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manager := &Manager{
		outputDir: outputDir,
		written:   make(map[string]bool),
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return manager, nil
}

// scanExistingFiles records which file names already hold a result
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			m.written[entry.Name()] = true
		}
	}
	return nil
}

// Path returns the result file of project
func (m *Manager) Path(project string) string {
	return filepath.Join(m.outputDir, projects.FileName(project))
}

// Exists reports whether a result has been written for project
func (m *Manager) Exists(project string) bool {
	name := projects.FileName(project)

	m.mu.RLock()
	known := m.written[name]
	m.mu.RUnlock()
	if known {
		return true
	}

	if _, err := os.Stat(m.Path(project)); err == nil {
		m.mu.Lock()
		m.written[name] = true
		m.mu.Unlock()
		return true
	}
	return false
}

// Save writes r atomically: temp file, fsync, rename
func (m *Manager) Save(r *Result) error {
	if r.Project == "" {
		return fmt.Errorf("result has no project")
	}
	filename := m.Path(r.Project)
	tempFile := filename + ".tmp"

	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	err = encoder.Encode(r)
	if err == nil {
		err = out.Sync()
	}
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write result: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.written[projects.FileName(r.Project)] = true
	m.mu.Unlock()
	return nil
}

// Load reads the result of project
func (m *Manager) Load(project string) (*Result, error) {
	data, err := os.ReadFile(m.Path(project))
	if err != nil {
		return nil, fmt.Errorf("failed to read result: %w", err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &r, nil
}

// List loads every result in the output directory, ordered by project
func (m *Manager) List() ([]*Result, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var out []*Result
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.outputDir, entry.Name()))
		if err != nil {
			continue
		}
		var r Result
		if err := json.Unmarshal(data, &r); err != nil || r.Project == "" {
			continue
		}
		out = append(out, &r)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Project < out[j].Project })
	return out, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// Count returns the number of results known to exist
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.written)
}
