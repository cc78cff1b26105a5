package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pulsegrid/biometric_replay_server/internal/logging"
)

// Uploads is the database-backed source for scenarios uploaded at runtime.
// The data directory takes precedence; uploads are the fallback.
type Uploads interface {
	ScenarioContent(name string) (string, error)
	ScenarioNames() ([]string, error)
}

// Store provides read-only access to named scenario definitions, loading them
// on demand from the data directory or, failing that, the upload store.
type Store struct {
	dataDir  string
	uploads  Uploads // may be nil
	logStore *logging.LogStore
}

// NewStore creates a scenario store over a data directory and an optional
// upload store.
func NewStore(dataDir string, uploads Uploads, logStore *logging.LogStore) *Store {
	return &Store{
		dataDir:  dataDir,
		uploads:  uploads,
		logStore: logStore,
	}
}

// Load reads and parses the named scenario. A missing or corrupt scenario
// returns an error without side effects.
func (s *Store) Load(name string) (*Definition, error) {
	data, err := s.Raw(name)
	if err != nil {
		return nil, err
	}

	def, err := Parse(name, data)
	if err != nil {
		return nil, err
	}
	s.logStore.LogAndStore("info", "Loaded %d events for scenario %s", len(def.Events), name)
	return def, nil
}

// Raw returns the raw JSON content of the named scenario.
func (s *Store) Raw(name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	path := filepath.Join(s.dataDir, name+".json")
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	if s.uploads != nil {
		content, dbErr := s.uploads.ScenarioContent(name)
		if dbErr == nil {
			return []byte(content), nil
		}
	}
	return nil, fmt.Errorf("scenario %q not found", name)
}

// Names lists all available scenarios from the data directory and the upload
// store, sorted and de-duplicated.
func (s *Store) Names() ([]string, error) {
	seen := make(map[string]bool)

	entries, err := os.ReadDir(s.dataDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read data dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		seen[strings.TrimSuffix(e.Name(), ".json")] = true
	}

	if s.uploads != nil {
		uploaded, err := s.uploads.ScenarioNames()
		if err != nil {
			return nil, err
		}
		for _, n := range uploaded {
			seen[n] = true
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return fmt.Errorf("invalid scenario name %q", name)
	}
	return nil
}
