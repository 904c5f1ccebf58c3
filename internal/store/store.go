// Package store provides the persistence backends: a YAML file store for
// counterparty mappings and keyword groups, an in-memory store and a SQL
// store for SQLite or PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"fjacquet/recon-ledger/internal/fileutils"
	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/textutils"

	"gopkg.in/yaml.v3"
)

// Default file names looked up by FindConfigFile.
const (
	DefaultOverridesFile     = "overrides.yaml"
	DefaultKeywordGroupsFile = "keyword_groups.yaml"
)

// MappingStore keeps learned counterparty overrides and keyword groups in
// YAML files. It implements repository.OverrideRepository.
type MappingStore struct {
	OverridesFile     string
	KeywordGroupsFile string

	logger logging.Logger
	mu     sync.Mutex
}

// NewMappingStore creates a store for the given files. Empty names select
// the defaults.
func NewMappingStore(overridesFile, keywordGroupsFile string, logger logging.Logger) *MappingStore {
	if overridesFile == "" {
		overridesFile = DefaultOverridesFile
	}
	if keywordGroupsFile == "" {
		keywordGroupsFile = DefaultKeywordGroupsFile
	}
	return &MappingStore{
		OverridesFile:     overridesFile,
		KeywordGroupsFile: keywordGroupsFile,
		logger:            logging.OrDefault(logger),
	}
}

// FindConfigFile looks for a configuration file in standard locations:
// the path itself, ./config, ./database and ~/.config/recon-ledger.
func (s *MappingStore) FindConfigFile(filename string) (string, error) {
	if filepath.IsAbs(filename) {
		if _, err := os.Stat(filename); err == nil {
			return filename, nil
		}
		return "", os.ErrNotExist
	}

	locations := []string{
		filename,
		filepath.Join("config", filename),
		filepath.Join("database", filename),
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(homeDir, ".config", "recon-ledger", filename))
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location, nil
		}
	}
	return "", os.ErrNotExist
}

// OverrideKey is the normalized form under which an override is stored.
func OverrideKey(counterparty string) string {
	return textutils.Fold(counterparty)
}

func (s *MappingStore) readOverrides() (map[string]models.AccountMapping, string, error) {
	path, err := s.FindConfigFile(s.OverridesFile)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]models.AccountMapping{}, "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("error reading overrides file: %w", err)
	}
	raw := map[string]models.AccountMapping{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, "", fmt.Errorf("error parsing overrides file %s: %w", path, err)
	}
	out := make(map[string]models.AccountMapping, len(raw))
	for k, v := range raw {
		out[OverrideKey(k)] = v
	}
	return out, path, nil
}

// GetOverride returns the mapping saved for counterpartyID, or nil.
func (s *MappingStore) GetOverride(_ context.Context, counterpartyID string) (*models.AccountMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	overrides, _, err := s.readOverrides()
	if err != nil {
		return nil, err
	}
	m, ok := overrides[OverrideKey(counterpartyID)]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// ListOverrides returns all saved overrides keyed by normalized counterparty.
func (s *MappingStore) ListOverrides(_ context.Context) (map[string]models.AccountMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	overrides, _, err := s.readOverrides()
	return overrides, err
}

// SaveOverride stores mapping for counterpartyID, creating the file under
// ./database when it does not exist yet.
func (s *MappingStore) SaveOverride(_ context.Context, counterpartyID string, mapping models.AccountMapping) error {
	if OverrideKey(counterpartyID) == "" {
		return fmt.Errorf("counterparty is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	overrides, path, err := s.readOverrides()
	if err != nil {
		return err
	}
	overrides[OverrideKey(counterpartyID)] = mapping

	if path == "" {
		path = s.OverridesFile
		if !filepath.IsAbs(path) {
			path = filepath.Join("database", path)
		}
	}
	data, err := yaml.Marshal(overrides)
	if err != nil {
		return fmt.Errorf("error marshaling overrides: %w", err)
	}
	if err := fileutils.WriteFile(path, data, fileutils.PermissionFile); err != nil {
		return fmt.Errorf("error writing overrides: %w", err)
	}

	s.logger.Debug("Saved counterparty override",
		logging.F(logging.FieldCounterparty, counterpartyID),
		logging.F(logging.FieldAccount, mapping.Account),
		logging.F(logging.FieldOutputFile, path))
	return nil
}

// LoadKeywordGroups reads the ordered keyword groups. A missing file yields
// no groups and no error; the classifier then uses its built-in groups.
// Both a top-level "groups:" key and a bare list are accepted.
func (s *MappingStore) LoadKeywordGroups() ([]models.KeywordGroup, error) {
	path, err := s.FindConfigFile(s.KeywordGroupsFile)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Debug("Keyword groups file not found, using built-in groups",
			logging.F(logging.FieldInputFile, s.KeywordGroupsFile))
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading keyword groups file: %w", err)
	}

	var wrapped models.KeywordGroupsConfig
	if err := yaml.Unmarshal(data, &wrapped); err == nil && len(wrapped.Groups) > 0 {
		return wrapped.Groups, nil
	}
	var groups []models.KeywordGroup
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("error parsing keyword groups file %s: %w", path, err)
	}
	return groups, nil
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
