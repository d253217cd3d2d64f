package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/af-corp/ai-gateway/internal/types"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:default} patterns in a string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envVarPattern.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}
		if val, ok := os.LookupEnv(submatch[1]); ok {
			return val
		}
		if len(submatch) >= 3 {
			return submatch[2]
		}
		return ""
	})
}

// LoadFile reads a YAML file, expands env vars, and unmarshals into dest.
func LoadFile(path string, dest any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), dest); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// LoadDotEnv loads the first .env file found among paths. Variables already
// set in the environment win. Missing files are not an error.
func LoadDotEnv(paths ...string) (string, error) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return "", fmt.Errorf("load %s: %w", p, err)
		}
		return p, nil
	}
	return "", nil
}

// ServicesFile is the layout of services.yaml.
type ServicesFile struct {
	Services []types.ServiceConfig `yaml:"services"`
}

// Loader manages configuration loading and hot-reload via fsnotify.
// gateway.yaml is required; services.yaml is optional.
type Loader struct {
	configDir string
	logger    *slog.Logger

	mu       sync.RWMutex
	cfg      *Config
	services []types.ServiceConfig
	watchers []func(*Config)
}

func NewLoader(configDir string, logger *slog.Logger) *Loader {
	return &Loader{configDir: configDir, logger: logger}
}

func (l *Loader) Load() error {
	cfg := DefaultConfig()
	if err := LoadFile(filepath.Join(l.configDir, "gateway.yaml"), cfg); err != nil {
		return fmt.Errorf("load gateway config: %w", err)
	}
	if err := cfg.Gateway.Validate(); err != nil {
		return err
	}

	file := &ServicesFile{}
	err := LoadFile(filepath.Join(l.configDir, "services.yaml"), file)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load services config: %w", err)
	}
	services := MergeServices(DefaultServices(), file.Services)

	l.mu.Lock()
	l.cfg = cfg
	l.services = services
	l.mu.Unlock()

	l.logger.Info("configuration loaded", "dir", l.configDir, "services", len(services))
	return nil
}

func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Services returns the startup catalog: environment defaults overlaid with
// services.yaml.
func (l *Loader) Services() []types.ServiceConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]types.ServiceConfig, len(l.services))
	for i, s := range l.services {
		out[i] = s.Clone()
	}
	return out
}

// OnReload registers a callback that fires after config is reloaded.
func (l *Loader) OnReload(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.watchers = append(l.watchers, fn)
}

func (l *Loader) reload() {
	if err := l.Load(); err != nil {
		l.logger.Error("failed to reload config", "error", err)
		return
	}
	l.mu.RLock()
	cfg := l.cfg
	watchers := append(([]func(*Config))(nil), l.watchers...)
	l.mu.RUnlock()

	for _, fn := range watchers {
		fn(cfg)
	}
}

// Watch starts watching the config directory for changes and reloads on
// modification until done is closed.
func (l *Loader) Watch(done <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(l.configDir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir %s: %w", l.configDir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Ext(event.Name) != ".yaml" {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					l.logger.Info("config file changed, reloading", "file", event.Name)
					l.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Error("fsnotify error", "error", err)
			}
		}
	}()

	return nil
}
