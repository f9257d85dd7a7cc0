package aggregate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// datasetVersion is bumped when the file layout changes.
	datasetVersion = 1

	datasetFileName = "dataset.json"
	appDirName      = "nixkart"
)

// FileStore loads and saves a Dataset as JSON on disk.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir. The directory is created on
// the first Save. Pass an empty string to use the default XDG state path.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = defaultDataDir()
	}
	return &FileStore{dir: dir}
}

// Path returns the full path to the dataset file.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, datasetFileName)
}

// Load reads the dataset from disk. The boolean reports whether the file
// existed; a missing file is not an error.
func (s *FileStore) Load() (*Dataset, bool, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return &Dataset{Version: datasetVersion}, false, nil
		}
		return nil, false, fmt.Errorf("reading dataset: %w", err)
	}

	var d Dataset
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, true, fmt.Errorf("parsing dataset: %w", err)
	}
	if d.Version == 0 {
		d.Version = datasetVersion
	}
	return &d, true, nil
}

// Save writes d using a temp-file-then-rename so readers never observe a
// partial file.
func (s *FileStore) Save(d *Dataset) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	cp := d.clone()
	cp.Version = datasetVersion
	cp.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling dataset: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, ".dataset-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		return fmt.Errorf("renaming dataset file: %w", err)
	}
	committed = true

	return nil
}

// defaultDataDir returns ~/.local/state/nixkart, respecting XDG_STATE_HOME.
func defaultDataDir() string {
	if base := os.Getenv("XDG_STATE_HOME"); base != "" {
		return filepath.Join(base, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".local", "state", appDirName)
}
