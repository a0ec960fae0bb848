package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"forkcrawl/pkg/logger"
	"forkcrawl/pkg/projects"
)

// FileStore keeps one JSON checkpoint per project in a directory
type FileStore struct {
	dir    string
	logger logger.Logger
}

// NewFileStore creates dir if needed
func NewFileStore(dir string, log logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &FileStore{dir: dir, logger: log}, nil
}

// Dir returns the checkpoint directory
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the checkpoint file of project
func (s *FileStore) Path(project string) string {
	return filepath.Join(s.dir, projects.FileName(project))
}

// Load returns the checkpoint of project. A missing, unreadable or invalid
// checkpoint yields a zero checkpoint; invalid files are kept aside with a
// .corrupt suffix.
func (s *FileStore) Load(project string) *Checkpoint {
	path := s.Path(project)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WarnWithFields("failed to read checkpoint, starting fresh", map[string]interface{}{
				"project": project,
				"path":    path,
				"error":   err.Error(),
			})
		}
		return New(project)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		s.quarantine(project, path, err)
		return New(project)
	}

	repairs, err := cp.Validate(project)
	if err != nil {
		s.quarantine(project, path, err)
		return New(project)
	}
	for _, r := range repairs {
		s.logger.WarnWithFields("repaired checkpoint", map[string]interface{}{
			"project": project,
			"repair":  r,
		})
	}

	s.logger.DebugWithFields("checkpoint loaded", map[string]interface{}{
		"project":            project,
		"last_page":          cp.LastPage,
		"total_records_seen": cp.TotalRecordsSeen,
		"completed":          cp.Completed,
	})
	return &cp
}

func (s *FileStore) quarantine(project, path string, cause error) {
	fields := map[string]interface{}{
		"project": project,
		"path":    path,
		"error":   cause.Error(),
	}
	if err := os.Rename(path, path+".corrupt"); err != nil {
		fields["backup_error"] = err.Error()
	}
	s.logger.WarnWithFields("discarding invalid checkpoint, starting fresh", fields)
}

// Save writes cp atomically: temp file, fsync, rename
func (s *FileStore) Save(cp *Checkpoint) error {
	if cp.Project == "" {
		return fmt.Errorf("checkpoint has no project")
	}
	cp.UpdatedAt = time.Now().UTC()
	cp.Version = CurrentVersion
	cp.DailyForks = cp.DayTotals()

	path := s.Path(cp.Project)
	tempPath := path + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cp); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}
	return nil
}

// Exists reports whether project has a checkpoint file
func (s *FileStore) Exists(project string) bool {
	_, err := os.Stat(s.Path(project))
	return err == nil
}

// Delete removes the checkpoint of project
func (s *FileStore) Delete(project string) error {
	if err := os.Remove(s.Path(project)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// List loads every valid checkpoint in the directory, ordered by project
func (s *FileStore) List() ([]*Checkpoint, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	var out []*Checkpoint
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		var cp Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil || cp.Project == "" {
			continue
		}
		if _, err := cp.Validate(cp.Project); err != nil {
			continue
		}
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Project < out[j].Project })
	return out, nil
}
