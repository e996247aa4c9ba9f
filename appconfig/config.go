package appconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stevecastle/fxlab/platform"
)

// RenderConfig tunes offline exports.
type RenderConfig struct {
	Bitrate int `json:"bitrate"`
	// Codecs overrides the encoder preference list by ffmpeg encoder name.
	Codecs []string `json:"codecs"`
}

// SegmentationConfig points at the object-mask model.
type SegmentationConfig struct {
	ModelPath            string  `json:"modelPath"`
	ORTSharedLibraryPath string  `json:"ortSharedLibraryPath"`
	InputSize            int     `json:"inputSize"`
	Threshold            float64 `json:"threshold"`
}

// S3Config enables uploading exports to a bucket. Empty Bucket disables it.
type S3Config struct {
	Bucket          string `json:"bucket"`
	Region          string `json:"region"`
	Prefix          string `json:"prefix"`
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	Endpoint        string `json:"endpoint"`
}

// AuthConfig guards the control API. Empty AccessKeyHash disables auth.
type AuthConfig struct {
	AccessKeyHash string `json:"accessKeyHash"`
	JWTSecret     string `json:"jwtSecret"`
}

// Config holds studio configuration.
type Config struct {
	DBPath     string `json:"dbPath"`
	ExportDir  string `json:"exportDir"`
	ListenAddr string `json:"listenAddr"`
	LogLevel   string `json:"logLevel"`

	// Optional ffmpeg executable or directory; PATH is searched otherwise.
	FFmpegPath string `json:"ffmpegPath"`

	Render       RenderConfig       `json:"render"`
	Segmentation SegmentationConfig `json:"segmentation"`
	S3           S3Config           `json:"s3"`
	Auth         AuthConfig         `json:"auth"`

	OpenBrowser bool `json:"openBrowser"`
}

const (
	DefaultListenAddr = "127.0.0.1:8090"
	DefaultBitrate    = 20_000_000
	DefaultLogLevel   = "info"
)

var (
	cfgMu sync.RWMutex
	cfg   Config
)

// DefaultDBPath returns the default database path.
// Uses the platform-specific data directory.
func DefaultDBPath() string {
	return filepath.Join(platform.DataDir(), "fxlab.db")
}

// DefaultPath returns the config file location.
func DefaultPath() string {
	return filepath.Join(platform.DataDir(), "config.json")
}

// defaultConfig returns a Config populated with sensible defaults.
func defaultConfig() Config {
	return Config{
		DBPath:     DefaultDBPath(),
		ExportDir:  platform.ExportDir(),
		ListenAddr: DefaultListenAddr,
		LogLevel:   DefaultLogLevel,
		Render:     RenderConfig{Bitrate: DefaultBitrate},
		Segmentation: SegmentationConfig{
			InputSize: 256,
			Threshold: 0.5,
		},
		Auth:        AuthConfig{JWTSecret: uuid.New().String()},
		OpenBrowser: true,
	}
}

// Get returns a copy of the current in-memory config.
func Get() Config {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return cfg
}

// Set replaces the in-memory config.
func Set(c Config) {
	cfgMu.Lock()
	cfg = c
	cfgMu.Unlock()
}

func isJSONObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func deepMergeJSON(dst, src map[string]json.RawMessage) {
	for k, v := range src {
		if existing, ok := dst[k]; ok && isJSONObject(existing) && isJSONObject(v) {
			var dstObj map[string]json.RawMessage
			var srcObj map[string]json.RawMessage
			if err := json.Unmarshal(existing, &dstObj); err != nil {
				dst[k] = v
				continue
			}
			if err := json.Unmarshal(v, &srcObj); err != nil {
				dst[k] = v
				continue
			}
			deepMergeJSON(dstObj, srcObj)
			merged, err := json.Marshal(dstObj)
			if err != nil {
				dst[k] = v
				continue
			}
			dst[k] = merged
			continue
		}
		dst[k] = v
	}
}

// fillDefaults copies defaults into zero fields and reports whether a field
// that must persist (the db path or jwt secret) was filled.
func fillDefaults(c *Config, def Config) (needsSave bool) {
	if c.DBPath == "" {
		c.DBPath = def.DBPath
		needsSave = true
	}
	if c.ExportDir == "" {
		c.ExportDir = def.ExportDir
	}
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Render.Bitrate <= 0 {
		c.Render.Bitrate = def.Render.Bitrate
	}
	if c.Segmentation.InputSize <= 0 {
		c.Segmentation.InputSize = def.Segmentation.InputSize
	}
	if c.Segmentation.Threshold <= 0 || c.Segmentation.Threshold >= 1 {
		c.Segmentation.Threshold = def.Segmentation.Threshold
	}
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = def.Auth.JWTSecret
		needsSave = true
	}
	return needsSave
}

// Load reads the config from the default path. See LoadFile.
func Load() (Config, string, error) {
	return LoadFile(DefaultPath())
}

// LoadFile reads the config at path and updates the in-memory config. A
// missing file is created with default values.
func LoadFile(path string) (Config, string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return Config{}, "", fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, path, fmt.Errorf("failed to read config file at %s: %w", path, err)
		}
		def := defaultConfig()
		if err := os.MkdirAll(filepath.Dir(def.DBPath), 0755); err != nil {
			return Config{}, "", fmt.Errorf("failed to create database directory: %w", err)
		}
		if _, err := SaveFile(path, def); err != nil {
			return Config{}, path, fmt.Errorf("failed to create default config file: %w", err)
		}
		return def, path, nil
	}

	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, path, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	needsSave := fillDefaults(&c, defaultConfig())

	if err := os.MkdirAll(filepath.Dir(c.DBPath), 0755); err != nil {
		return Config{}, path, fmt.Errorf("failed to create database directory: %w", err)
	}
	if needsSave {
		if _, err := SaveFile(path, c); err != nil {
			logrus.WithError(err).Warn("failed to save updated config")
		}
	}
	Set(c)
	return c, path, nil
}

// Save writes the config to the default path. See SaveFile.
func Save(c Config) (string, error) {
	return SaveFile(DefaultPath(), c)
}

// SaveFile writes c to path. Keys in the existing file that Config doesn't
// know about are preserved.
func SaveFile(path string, c Config) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return path, fmt.Errorf("failed to create config directory: %w", err)
	}
	base := map[string]json.RawMessage{}
	if existing, readErr := os.ReadFile(path); readErr == nil {
		var tmp map[string]json.RawMessage
		if err := json.Unmarshal(existing, &tmp); err == nil {
			base = tmp
		}
	}

	marshaled, err := json.Marshal(c)
	if err != nil {
		return path, fmt.Errorf("failed to marshal config: %w", err)
	}
	incoming := map[string]json.RawMessage{}
	if err := json.Unmarshal(marshaled, &incoming); err != nil {
		return path, fmt.Errorf("failed to map config JSON: %w", err)
	}

	deepMergeJSON(base, incoming)

	mergedData, err := json.MarshalIndent(base, "", "  ")
	if err != nil {
		return path, fmt.Errorf("failed to marshal merged config: %w", err)
	}
	if err := os.WriteFile(path, mergedData, 0600); err != nil {
		return path, fmt.Errorf("failed to write config file: %w", err)
	}
	Set(c)
	return path, nil
}

// ConfigureLogging applies the configured level. Unknown levels fall back to
// info.
func ConfigureLogging(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithField("level", level).Warn("unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
