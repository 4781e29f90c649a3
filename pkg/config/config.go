// Package config loads the settings of the global ref database and of the validators.
//
// Settings are read from a yaml file, and may be overridden by environment variables
// prefixed with REFDB_ (e.g. REFDB_REF_DATABASE_LOCKTIMEOUT=5s).
package config

import (
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/oneconcern/globalrefdb/pkg/enforcement"
	"github.com/oneconcern/globalrefdb/pkg/errors"
	"github.com/oneconcern/globalrefdb/pkg/validation"
)

const (
	// EnvPrefix for environment overrides
	EnvPrefix = "REFDB"

	// DefaultLockTimeout bounds the time spent waiting for a ref lock
	DefaultLockTimeout = 10 * time.Second

	// DefaultLockTTL is the lifetime of global lock records
	DefaultLockTTL = 30 * time.Second

	configName = "refdb"
)

// Backend types
const (
	BackendNoop   = "noop"
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// ErrConfig is returned when the configuration cannot be loaded or is invalid
var ErrConfig = errors.New("invalid configuration")

// Config of the global ref database and validators
type Config struct {
	RefDatabase RefDatabase `json:"ref-database" yaml:"ref-database" mapstructure:"ref-database"`
	Projects    Projects    `json:"projects" yaml:"projects" mapstructure:"projects"`
	Event       Event       `json:"event" yaml:"event" mapstructure:"event"`
	Log         Log         `json:"log" yaml:"log" mapstructure:"log"`
}

// RefDatabase settings
type RefDatabase struct {
	Enabled             bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	StoreAllRefs        []string      `json:"storeAllRefs,omitempty" yaml:"storeAllRefs,omitempty" mapstructure:"storeAllRefs"`
	StoreMutableRefs    []string      `json:"storeMutableRefs,omitempty" yaml:"storeMutableRefs,omitempty" mapstructure:"storeMutableRefs"`
	StoreNoRefs         []string      `json:"storeNoRefs,omitempty" yaml:"storeNoRefs,omitempty" mapstructure:"storeNoRefs"`
	IgnoredRefsPrefixes []string      `json:"ignoredRefsPrefixes,omitempty" yaml:"ignoredRefsPrefixes,omitempty" mapstructure:"ignoredRefsPrefixes"`
	LockTimeout         time.Duration `json:"lockTimeout" yaml:"lockTimeout" mapstructure:"lockTimeout"`
	Backend             Backend       `json:"backend" yaml:"backend" mapstructure:"backend"`
}

// Backend of the global ref database
type Backend struct {
	Type       string        `json:"type" yaml:"type" mapstructure:"type"`
	Path       string        `json:"path,omitempty" yaml:"path,omitempty" mapstructure:"path"`
	InMemory   bool          `json:"inMemory" yaml:"inMemory" mapstructure:"inMemory"`
	SyncWrites bool          `json:"syncWrites" yaml:"syncWrites" mapstructure:"syncWrites"`
	LockTTL    time.Duration `json:"lockTTL" yaml:"lockTTL" mapstructure:"lockTTL"`
}

// Projects subject to validation
type Projects struct {
	Pattern []string `json:"pattern,omitempty" yaml:"pattern,omitempty" mapstructure:"pattern"`
}

// Event settings
type Event struct {
	EnableDraftCommentEvents bool `json:"enableDraftCommentEvents" yaml:"enableDraftCommentEvents" mapstructure:"enableDraftCommentEvents"`
}

// Log settings
type Log struct {
	Level string `json:"level" yaml:"level" mapstructure:"level"`
	Audit bool   `json:"audit" yaml:"audit" mapstructure:"audit"`
}

// Default configuration
func Default() *Config {
	return &Config{
		RefDatabase: RefDatabase{
			Enabled:     true,
			LockTimeout: DefaultLockTimeout,
			Backend: Backend{
				Type:       BackendMemory,
				SyncWrites: true,
				LockTTL:    DefaultLockTTL,
			},
		},
		Log: Log{
			Level: "info",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("ref-database.enabled", d.RefDatabase.Enabled)
	v.SetDefault("ref-database.storeAllRefs", []string{})
	v.SetDefault("ref-database.storeMutableRefs", []string{})
	v.SetDefault("ref-database.storeNoRefs", []string{})
	v.SetDefault("ref-database.ignoredRefsPrefixes", []string{})
	v.SetDefault("ref-database.lockTimeout", d.RefDatabase.LockTimeout)
	v.SetDefault("ref-database.backend.type", d.RefDatabase.Backend.Type)
	v.SetDefault("ref-database.backend.path", "")
	v.SetDefault("ref-database.backend.inMemory", false)
	v.SetDefault("ref-database.backend.syncWrites", d.RefDatabase.Backend.SyncWrites)
	v.SetDefault("ref-database.backend.lockTTL", d.RefDatabase.Backend.LockTTL)
	v.SetDefault("projects.pattern", []string{})
	v.SetDefault("event.enableDraftCommentEvents", false)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.audit", false)
}

// Option to load a configuration
type Option func(*loader)

type loader struct {
	fs    afero.Fs
	paths []string
}

// WithFs loads configuration files from a given file system. The default is the OS file system.
func WithFs(fs afero.Fs) Option {
	return func(l *loader) {
		if fs != nil {
			l.fs = fs
		}
	}
}

// WithSearchPaths sets the folders searched for a refdb.yaml file
func WithSearchPaths(paths ...string) Option {
	return func(l *loader) {
		l.paths = paths
	}
}

func defaultLoader() *loader {
	return &loader{
		fs:    afero.NewOsFs(),
		paths: []string{".", "$HOME/.refdb", "/etc/refdb"},
	}
}

// Load the configuration from a file. When file is empty, refdb.yaml is searched for, and is optional.
//
// The loaded configuration is validated.
func Load(file string, opts ...Option) (*Config, error) {
	l := defaultLoader()
	for _, apply := range opts {
		apply(l)
	}

	v := viper.New()
	v.SetFs(l.fs)
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, ErrConfig.Wrap(err)
		}
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		for _, p := range l.paths {
			v.AddConfigPath(p)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, ErrConfig.Wrap(err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, ErrConfig.Wrap(err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate the configuration
func (c *Config) Validate() error {
	switch c.RefDatabase.Backend.Type {
	case BackendNoop, BackendMemory:
	case BackendBadger:
		if !c.RefDatabase.Backend.InMemory && c.RefDatabase.Backend.Path == "" {
			return ErrConfig.Wrap(errors.New("a badger backend requires a path, unless in memory"))
		}
	default:
		return ErrConfig.Wrap(errors.New("unknown backend type: " + c.RefDatabase.Backend.Type))
	}
	if c.RefDatabase.LockTimeout <= 0 {
		return ErrConfig.Wrap(errors.New("lockTimeout must be positive"))
	}
	switch c.Log.Level {
	case "info", "debug", "none":
	default:
		return ErrConfig.Wrap(errors.New("unknown log level: " + c.Log.Level))
	}
	if _, err := c.ProjectsFilter(); err != nil {
		return ErrConfig.Wrap(err)
	}
	return nil
}

// Enforcement builds the policy engine from the configured project sets
func (c *Config) Enforcement() *enforcement.Enforcement {
	return enforcement.New(
		enforcement.StoreAllRefs(c.RefDatabase.StoreAllRefs...),
		enforcement.StoreMutableRefs(c.RefDatabase.StoreMutableRefs...),
		enforcement.StoreNoRefs(c.RefDatabase.StoreNoRefs...),
		enforcement.DraftCommentEvents(c.Event.EnableDraftCommentEvents),
	)
}

// ProjectsFilter builds the filter of projects subject to validation
func (c *Config) ProjectsFilter() (*enforcement.ProjectsFilter, error) {
	return enforcement.NewProjectsFilter(c.Projects.Pattern...)
}

// ValidatorOptions configures ref update validators with the policies, the projects filter,
// the ignored ref prefixes and the lock timeout of this configuration
func (c *Config) ValidatorOptions() ([]validation.Option, error) {
	filter, err := c.ProjectsFilter()
	if err != nil {
		return nil, ErrConfig.Wrap(err)
	}
	return []validation.Option{
		validation.Enforcement(c.Enforcement()),
		validation.Projects(filter),
		validation.IgnoredRefPrefixes(c.RefDatabase.IgnoredRefsPrefixes...),
		validation.LockTimeout(c.RefDatabase.LockTimeout),
	}, nil
}
