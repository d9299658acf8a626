package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for wadlib.
type Config struct {
	BaseDir  string         `toml:"base_dir"`
	LogDir   string         `toml:"log_dir"`
	LogLevel string         `toml:"log_level"` // stderr threshold: debug, info, warn or error
	DataDir  string         `toml:"data_dir"`
	WadDir   string         `toml:"wad_dir"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Source   SourceConfig   `toml:"source"`
	Database DatabaseConfig `toml:"database"`
	Download DownloadConfig `toml:"download"`
	Engine   EngineConfig   `toml:"engine"`
	Saves    SavesConfig    `toml:"saves"`
}

// CatalogConfig points at the JSON list of installable content.
type CatalogConfig struct {
	Path string `toml:"path"`
}

// SourceConfig represents configuration for the transfer backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type SourceConfig struct {
	Type string `toml:"type"` // "http", "s3", "filesystem" or "memory"
	Name string `toml:"name"`

	// HTTP-specific fields (only used when Type == "http")
	HTTPBaseURL        string `toml:"http_base_url,omitempty"`
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds,omitempty"`
	HTTPUserAgent      string `toml:"http_user_agent,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`
}

// DatabaseConfig represents configuration for the operation history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// DownloadConfig tunes the download manager.
type DownloadConfig struct {
	ProgressIntervalMs int `toml:"progress_interval_ms"` // defaults to 100
	MaxConcurrent      int `toml:"max_concurrent"`       // parallel installs from the CLI; defaults to 3
}

// EngineConfig locates the engine binary and the base game data.
type EngineConfig struct {
	Path      string   `toml:"path"`
	IWAD      string   `toml:"iwad"`
	ExtraArgs []string `toml:"extra_args,omitempty"`
}

// SavesConfig lists where the engine writes save files.
type SavesConfig struct {
	Dirs   []string `toml:"dirs"`
	Ignore []string `toml:"ignore"`
}

// NewConfig creates a new Config rooted at baseDir with default paths.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		DataDir:  filepath.Join(baseDir, "data"),
		WadDir:   filepath.Join(baseDir, "wads"),
		Catalog:  CatalogConfig{Path: filepath.Join(baseDir, "catalog.json")},
		Source:   SourceConfig{Type: "http", Name: "default"},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Download: DownloadConfig{ProgressIntervalMs: 100, MaxConcurrent: 3},
		Saves: SavesConfig{
			Ignore: []string{"*.tmp", "*.bak"},
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
