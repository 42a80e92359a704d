package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultConfigFileName = "taskmage.toml"
	DefaultStoreName      = "tasks.csv"
	DefaultDBName         = "tasks.db"
	DefaultListHeight     = 15
)

type Keymap struct {
	Quit     string `toml:"quit"`
	Next     string `toml:"next"`
	Prev     string `toml:"prev"`
	Add      string `toml:"add"`
	Complete string `toml:"complete"`
	Time     string `toml:"time"`
	Filter   string `toml:"filter"`
	AddTime  string `toml:"add_time"`
	SubTime  string `toml:"sub_time"`
	Confirm  string `toml:"confirm"`
	Cancel   string `toml:"cancel"`
}

type Config struct {
	StorePath  string `toml:"store_path"`
	Backend    string `toml:"backend"`
	DBPath     string `toml:"db_path"`
	ListHeight int    `toml:"list_height"`
	LogFile    string `toml:"log_file"`
	LogLevel   string `toml:"log_level"`
	// Filter maps task field names to the values shown by default.
	Filter map[string][]string `toml:"filter"`
	Keys   Keymap              `toml:"keys"`
}

// Location returns the path the configured backend persists to.
func (c Config) Location() string {
	if c.Backend == "sqlite" {
		return c.DBPath
	}
	return c.StorePath
}

func LoadOrCreate(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	cfg.Filter = nil
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Filter == nil {
		cfg.Filter = Default().Filter
	}
	if cfg.StorePath == "" {
		cfg.StorePath = DefaultStoreName
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBName
	}
	if err := validate(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	return cfg, nil
}

func write(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func validate(cfg Config) error {
	if cfg.ListHeight < 1 {
		return fmt.Errorf("list_height must be at least 1, got %d", cfg.ListHeight)
	}
	switch cfg.Backend {
	case "tsv", "sqlite":
	default:
		return fmt.Errorf("backend must be \"tsv\" or \"sqlite\", got %q", cfg.Backend)
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", cfg.LogLevel)
	}
	k := cfg.Keys
	for name, v := range map[string]string{
		"quit": k.Quit, "next": k.Next, "prev": k.Prev, "add": k.Add,
		"complete": k.Complete, "time": k.Time, "filter": k.Filter,
		"add_time": k.AddTime, "sub_time": k.SubTime,
		"confirm": k.Confirm, "cancel": k.Cancel,
	} {
		if v == "" {
			return fmt.Errorf("keys.%s is empty", name)
		}
	}
	return nil
}

// Default returns the built-in configuration: open tasks from tasks.csv in
// the working directory.
func Default() Config {
	return Config{
		StorePath:  DefaultStoreName,
		Backend:    "tsv",
		DBPath:     DefaultDBName,
		ListHeight: DefaultListHeight,
		LogLevel:   "info",
		Filter: map[string][]string{
			"status": {"needs-action", "in-process"},
		},
		Keys: Keymap{
			Quit:     "q",
			Next:     "j",
			Prev:     "k",
			Add:      "a",
			Complete: "d",
			Time:     "t",
			Filter:   "f",
			AddTime:  "+",
			SubTime:  "-",
			Confirm:  "enter",
			Cancel:   "esc",
		},
	}
}
