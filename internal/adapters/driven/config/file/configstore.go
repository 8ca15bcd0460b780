package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
)

// ConfigStore holds one configuration document flattened to dot-notation
// keys ("rag.top_k"). YAML and TOML documents are supported.
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	data     map[string]any
}

// NewConfigStore reads the document at path. The format is chosen by
// extension: .yaml, .yml or .toml.
func NewConfigStore(path string) (*ConfigStore, error) {
	s := &ConfigStore{
		filePath: path,
		data:     make(map[string]any),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load re-reads the configuration file.
func (s *ConfigStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", s.filePath, domain.ErrConfig)
	}

	var loaded map[string]any
	switch ext := strings.ToLower(filepath.Ext(s.filePath)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &loaded)
	case ".toml":
		err = toml.Unmarshal(data, &loaded)
	default:
		return fmt.Errorf("unsupported config format %q: %w", ext, domain.ErrConfig)
	}
	if err != nil {
		return fmt.Errorf("parsing config %s: %v: %w", s.filePath, err, domain.ErrConfig)
	}

	if loaded == nil {
		loaded = make(map[string]any)
	}

	// Flatten nested maps into dot-notation keys for easier access
	s.data = flattenMap(loaded, "")
	return nil
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}

// Get retrieves a configuration value by key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.data[key]
	return val, ok && val != nil
}

// Has reports whether key is set.
func (s *ConfigStore) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// GetString retrieves a string configuration value.
func (s *ConfigStore) GetString(key string) string {
	val, ok := s.Get(key)
	if !ok {
		return ""
	}

	str, ok := val.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(str)
}

// GetInt retrieves an integer configuration value.
func (s *ConfigStore) GetInt(key string) int {
	val, ok := s.Get(key)
	if !ok {
		return 0
	}

	// YAML integers decode as int, TOML integers as int64
	switch v := val.(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	default:
		return 0
	}
}

// GetFloat retrieves a floating point configuration value.
func (s *ConfigStore) GetFloat(key string) float64 {
	val, ok := s.Get(key)
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f
	default:
		return 0
	}
}

// GetDuration retrieves a duration. Numbers are seconds; strings use
// time.ParseDuration syntax ("90s", "2m").
func (s *ConfigStore) GetDuration(key string) time.Duration {
	val, ok := s.Get(key)
	if !ok {
		return 0
	}

	if str, ok := val.(string); ok {
		d, err := time.ParseDuration(strings.TrimSpace(str))
		if err != nil {
			return 0
		}
		return d
	}
	return time.Duration(s.GetFloat(key) * float64(time.Second))
}

// flattenMap converts nested maps to dot-notation keys.
// E.g., {"a": {"b": 1}} becomes {"a.b": 1}.
func flattenMap(m map[string]any, prefix string) map[string]any {
	result := make(map[string]any)

	for key, value := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		if nested, ok := value.(map[string]any); ok {
			// Recursively flatten nested maps
			for k, v := range flattenMap(nested, fullKey) {
				result[k] = v
			}
		} else {
			result[fullKey] = value
		}
	}

	return result
}
