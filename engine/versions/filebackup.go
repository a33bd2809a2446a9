package versions

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/n8nkit/n8nctl/engine/workflow"
	"github.com/spf13/afero"
)

// FileBackup is the fallback snapshot store used when the version database
// cannot be opened: one timestamped JSON file per backup under a directory.
type FileBackup struct {
	fs  afero.Fs
	dir string
	now func() time.Time
}

// NewFileBackup builds a file-based backup store rooted at dir.
func NewFileBackup(fs afero.Fs, dir string) *FileBackup {
	return &FileBackup{fs: fs, dir: dir, now: time.Now}
}

// Save writes one snapshot and returns the file path.
func (f *FileBackup) Save(workflowID string, snapshot *workflow.Workflow) (string, error) {
	dir := filepath.Join(f.dir, workflowID)
	if err := f.fs.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("versions: create backup dir: %w", err)
	}
	encoded, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("versions: encode backup: %w", err)
	}
	name := f.now().UTC().Format("20060102T150405.000000000Z") + ".json"
	path := filepath.Join(dir, name)
	if err := afero.WriteFile(f.fs, path, encoded, 0o600); err != nil {
		return "", fmt.Errorf("versions: write backup: %w", err)
	}
	return path, nil
}

// List returns the workflow's backup file paths, newest first.
func (f *FileBackup) List(workflowID string) ([]string, error) {
	dir := filepath.Join(f.dir, workflowID)
	exists, err := afero.DirExists(f.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("versions: stat backup dir: %w", err)
	}
	if !exists {
		return nil, nil
	}
	entries, err := afero.ReadDir(f.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("versions: read backup dir: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	return paths, nil
}

// Load reads one snapshot back from a backup file.
func (f *FileBackup) Load(path string) (*workflow.Workflow, error) {
	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		return nil, fmt.Errorf("versions: read backup: %w", err)
	}
	var w workflow.Workflow
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("versions: decode backup %s: %w", path, err)
	}
	return &w, nil
}
