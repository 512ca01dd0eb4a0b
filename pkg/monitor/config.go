package monitor

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	yamlv3 "gopkg.in/yaml.v3"
)

const EnvPrefix = "BOTMON_"

type Config struct {
	Http    Http    `koanf:"http" yaml:"http"`
	Monitor Monitor `koanf:"monitor" yaml:"monitor"`
}

type Http struct {
	Host  string `koanf:"host" yaml:"host"`
	Port  string `koanf:"port" yaml:"port"`
	Token string `koanf:"token" yaml:"token"`
}

type Monitor struct {
	// ProcessName is the worker executable looked up in procfs.
	ProcessName string `koanf:"processName" yaml:"processName"`
	// Pid pins the worker process and skips the lookup by name.
	Pid uint64 `koanf:"pid" yaml:"pid"`
	// LogFile is followed for worker output; "-" reads stdin.
	LogFile          string        `koanf:"logFile" yaml:"logFile"`
	LogFromStart     bool          `koanf:"logFromStart" yaml:"logFromStart"`
	ProcRoot         string        `koanf:"procRoot" yaml:"procRoot"`
	StoragePath      string        `koanf:"storagePath" yaml:"storagePath"`
	SampleInterval   time.Duration `koanf:"sampleInterval" yaml:"sampleInterval"`
	RefreshInterval  time.Duration `koanf:"refreshInterval" yaml:"refreshInterval"`
	ExpiryDelay      time.Duration `koanf:"expiryDelay" yaml:"expiryDelay"`
	RecentLogLines   int           `koanf:"recentLogLines" yaml:"recentLogLines"`
	FollowPollPeriod time.Duration `koanf:"followPollPeriod" yaml:"followPollPeriod"`
	// HistoryFile is a SQLite database archiving finished tasks, empty disables it.
	HistoryFile string `koanf:"historyFile" yaml:"historyFile"`
	// HistoryRetention prunes archived tasks older than this, 0 keeps them forever.
	HistoryRetention time.Duration `koanf:"historyRetention" yaml:"historyRetention"`
}

func NewConfig() *Config {
	c := &Config{}
	c.Defaults()

	return c
}

func (c *Config) Defaults() {
	c.Http = Http{
		Host:  "",
		Port:  "8080",
		Token: "",
	}
	c.Monitor = Monitor{
		ProcessName:      "saveany-bot",
		LogFile:          "",
		ProcRoot:         "/proc",
		SampleInterval:   time.Second,
		RefreshInterval:  time.Second,
		ExpiryDelay:      30 * time.Second,
		RecentLogLines:   500,
		FollowPollPeriod: time.Second,
	}
}

// LoadFromFile merges the yaml file at configPath (if any) and BOTMON_ env
// vars over the current values. Nested keys are separated by a double
// underscore, BOTMON_MONITOR__LOGFILE sets monitor.logFile.
func (c *Config) LoadFromFile(configPath string) error {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(c, "koanf"), nil); err != nil {
		return errors.Wrap(err, "failed loading defaults")
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
			return errors.Wrapf(err, "config file does not exist: %q", configPath)
		}

		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return errors.Wrapf(err, "failed parsing %q", configPath)
		}
	}

	known := map[string]string{}
	for _, key := range k.Keys() {
		known[strings.ToLower(key)] = key
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return envKey(s, known)
	}), nil); err != nil {
		return errors.Wrap(err, "failed loading environment")
	}

	if err := k.UnmarshalWithConf("", c, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return errors.Wrapf(err, "failed unmarshalling %q", configPath)
	}

	log.Debug().Str("service", "config").Msgf("loaded config from %q", configPath)

	return c.Validate()
}

// envKey maps BOTMON_HTTP__PORT to http.port, restoring the case of known keys.
func envKey(s string, known map[string]string) string {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	if k, ok := known[key]; ok {
		return k
	}
	return key
}

func (c *Config) Validate() error {
	if c.Http.Port == "" {
		return errors.New("http.port must be set")
	}
	if c.Monitor.SampleInterval <= 0 {
		return errors.New("monitor.sampleInterval must be positive")
	}
	if c.Monitor.RefreshInterval <= 0 {
		return errors.New("monitor.refreshInterval must be positive")
	}
	if c.Monitor.ExpiryDelay <= 0 {
		return errors.New("monitor.expiryDelay must be positive")
	}
	if c.Monitor.RecentLogLines <= 0 {
		return errors.New("monitor.recentLogLines must be positive")
	}
	if c.Monitor.HistoryRetention < 0 {
		return errors.New("monitor.historyRetention must not be negative")
	}
	return nil
}

// WriteFile stores the config as yaml, creating parent directories.
func (c *Config) WriteFile(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return errors.Wrapf(err, "could not create config dir for %q", configPath)
	}

	data, err := yamlv3.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "could not marshal config")
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return errors.Wrapf(err, "could not write %q", configPath)
	}

	return nil
}
