// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Pool sizing configuration backed by viper, with reload listeners.

package control

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/momentics/hioload-pool/api"
	"github.com/momentics/hioload-pool/core/concurrency"
	"github.com/momentics/hioload-pool/pool"
)

const envPrefix = "HIOPOOL"

// Config is the full pool subsystem configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	BufferPool BufferPoolConfig `mapstructure:"bufferPool" yaml:"bufferPool"`
	WorkerPool WorkerPoolConfig `mapstructure:"workerPool" yaml:"workerPool"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
}

type BufferPoolConfig struct {
	Name           string `mapstructure:"name" yaml:"name"`
	InitialBuffers int    `mapstructure:"initialBuffers" yaml:"initialBuffers"`
	BufferSize     int    `mapstructure:"bufferSize" yaml:"bufferSize"`
}

type WorkerPoolConfig struct {
	NamePrefix    string        `mapstructure:"namePrefix" yaml:"namePrefix"`
	MinThreads    int           `mapstructure:"minThreads" yaml:"minThreads"`
	MaxThreads    int           `mapstructure:"maxThreads" yaml:"maxThreads"`
	Priority      string        `mapstructure:"priority" yaml:"priority"`
	PollInterval  time.Duration `mapstructure:"pollInterval" yaml:"pollInterval"`
	IdleTimeout   time.Duration `mapstructure:"idleTimeout" yaml:"idleTimeout"`
	ShutdownGrace time.Duration `mapstructure:"shutdownGrace" yaml:"shutdownGrace"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("bufferPool.name", pool.DefaultName)
	v.SetDefault("bufferPool.initialBuffers", 16)
	v.SetDefault("bufferPool.bufferSize", 64*1024)

	v.SetDefault("workerPool.namePrefix", concurrency.DefaultNamePrefix)
	v.SetDefault("workerPool.minThreads", 2)
	v.SetDefault("workerPool.maxThreads", 4)
	v.SetDefault("workerPool.priority", api.PriorityNormal.String())
	v.SetDefault("workerPool.pollInterval", concurrency.DefaultPollInterval)
	v.SetDefault("workerPool.idleTimeout", concurrency.DefaultIdleTimeout)
	v.SetDefault("workerPool.shutdownGrace", concurrency.DefaultShutdownGrace)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", "127.0.0.1:9464")
}

// Validate checks the sizing parameters.
func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return errors.Wrapf(api.ErrInvalidArgument, "log.level %q", c.Log.Level)
	}
	bp := c.BufferPool
	if bp.BufferSize <= 0 {
		return errors.Wrapf(api.ErrInvalidArgument, "bufferPool.bufferSize must be positive, got %d", bp.BufferSize)
	}
	if bp.InitialBuffers < 0 {
		return errors.Wrapf(api.ErrInvalidArgument, "bufferPool.initialBuffers must not be negative, got %d", bp.InitialBuffers)
	}
	wp := c.WorkerPool
	if wp.MinThreads < 0 {
		return errors.Wrapf(api.ErrInvalidArgument, "workerPool.minThreads must not be negative, got %d", wp.MinThreads)
	}
	if wp.MaxThreads < 1 || wp.MaxThreads < wp.MinThreads {
		return errors.Wrapf(api.ErrInvalidArgument, "workerPool.maxThreads must be >= max(1, minThreads), got %d", wp.MaxThreads)
	}
	if _, err := api.ParseThreadPriority(wp.Priority); err != nil {
		return errors.Wrap(err, "workerPool.priority")
	}
	if wp.PollInterval <= 0 || wp.IdleTimeout <= 0 || wp.ShutdownGrace < 0 {
		return errors.Wrap(api.ErrInvalidArgument, "workerPool durations must be positive")
	}
	return nil
}

// ThreadPriority returns the parsed worker priority; Validate has already
// rejected bad values.
func (c WorkerPoolConfig) ThreadPriority() api.ThreadPriority {
	p, _ := api.ParseThreadPriority(c.Priority)
	return p
}

// NewBufferPool builds a buffer pool from the configuration.
func (c Config) NewBufferPool(l zerolog.Logger) (*pool.BufferPool, error) {
	bp := c.BufferPool
	return pool.New(bp.InitialBuffers, bp.BufferSize, pool.WithName(bp.Name), pool.WithLogger(l))
}

// NewThreadPool builds a worker pool from the configuration.
func (c Config) NewThreadPool(l zerolog.Logger) *concurrency.ThreadPool {
	wp := c.WorkerPool
	return concurrency.NewThreadPool(wp.NamePrefix, wp.MaxThreads, wp.MinThreads,
		concurrency.WithLogger(l),
		concurrency.WithPollInterval(wp.PollInterval),
		concurrency.WithIdleTimeout(wp.IdleTimeout),
		concurrency.WithShutdownGrace(wp.ShutdownGrace),
		concurrency.WithThreadPriority(wp.ThreadPriority()),
	)
}

// Loader owns a viper instance and the last valid Config decoded from it.
type Loader struct {
	v   *viper.Viper
	log zerolog.Logger

	mu        sync.RWMutex
	cfg       Config
	listeners []func(Config)
	watcher   *fsnotify.Watcher
}

// NewLoader reads configPath (if not empty) on top of defaults and
// HIOPOOL_* environment variables, e.g. HIOPOOL_WORKERPOOL_MINTHREADS.
func NewLoader(configPath string) (*Loader, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", configPath)
		}
	}

	l := &Loader{
		v:   v,
		log: log.Logger.With().Str("component", "config").Logger(),
	}
	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}
	l.cfg = cfg
	return l, nil
}

func (l *Loader) decode() (Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Config returns a copy of the current configuration.
func (l *Loader) Config() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// AllSettings returns the merged key/value view, as viper sees it.
func (l *Loader) AllSettings() map[string]any {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.v.AllSettings()
}

// OnReload registers fn to receive every successfully reloaded Config.
func (l *Loader) OnReload(fn func(Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Set overrides one key, e.g. "workerPool.minThreads", and reloads.
func (l *Loader) Set(key string, value any) error {
	return l.reload(func() error {
		l.v.Set(key, value)
		return nil
	})
}

// SetAll overrides several keys at once and reloads a single time, so
// related keys such as minThreads/maxThreads are validated together.
func (l *Loader) SetAll(values map[string]any) error {
	return l.reload(func() error {
		for k, v := range values {
			l.v.Set(k, v)
		}
		return nil
	})
}

// Reload re-decodes the configuration and notifies listeners. An invalid
// configuration is rejected and the previous one stays in effect.
func (l *Loader) Reload() error {
	return l.reload(nil)
}

// reload runs update and the decode under l.mu, so the viper instance is
// only ever touched by one goroutine at a time.
func (l *Loader) reload(update func() error) error {
	l.mu.Lock()
	if update != nil {
		if err := update(); err != nil {
			l.mu.Unlock()
			l.log.Warn().Err(err).Msg("config update failed")
			return err
		}
	}
	cfg, err := l.decode()
	if err != nil {
		l.mu.Unlock()
		l.log.Warn().Err(err).Msg("config reload rejected")
		return err
	}
	l.cfg = cfg
	listeners := make([]func(Config), len(l.listeners))
	copy(listeners, l.listeners)
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
	return nil
}

// Watch reloads whenever the config file changes on disk. It is a no-op
// when the loader was created without a file or is already watching.
// The containing directory is watched so editors that replace the file
// are noticed too.
func (l *Loader) Watch() error {
	file := l.v.ConfigFileUsed()
	if file == "" {
		return nil
	}
	file = filepath.Clean(file)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watcher != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create config watcher")
	}
	if err := w.Add(filepath.Dir(file)); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "watch %s", file)
	}
	l.watcher = w
	go l.watch(w, file)
	return nil
}

func (l *Loader) watch(w *fsnotify.Watcher, file string) {
	for {
		select {
		case e, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != file || e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			l.log.Info().Str("file", e.Name).Str("op", e.Op.String()).Msg("config file changed")
			_ = l.reload(func() error {
				return errors.Wrapf(l.v.ReadInConfig(), "re-read config %s", file)
			})
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			l.log.Warn().Err(err).Msg("config watcher failed")
		}
	}
}

// Close stops watching the config file.
func (l *Loader) Close() error {
	l.mu.Lock()
	w := l.watcher
	l.watcher = nil
	l.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Close()
}
