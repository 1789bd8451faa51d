package config

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/wechange-eg/conference-hub/globals"
)

const (
	defaultCacheTTL        = 30 * time.Second
	defaultCreateLead      = 30 * time.Minute
	defaultStartLead       = 10 * time.Minute
	defaultStopLag         = 10 * time.Minute
	defaultChecksumAlgo    = "sha1"
	defaultGuestNameSuffix = " (guest)"
)

// Config is the global configuration object which is filled via the configuration file.
type Config struct {
	BBBConfig         BBBConfig         `mapstructure:"bbb"`
	StreamingConfig   StreamingConfig   `mapstructure:"streaming"`
	PersistenceConfig PersistenceConfig `mapstructure:"persistence"`
	CacheConfig       CacheConfig       `mapstructure:"cache"`
	LogLevel          string            `mapstructure:"log_level"`
}

// BBBConfig configures the BigBlueButton API endpoint of the portal's default
// server cluster. PortalParams are the portal-level defaults underlying every
// resolved settings record, keyed by API call name ("create", "join", ...).
type BBBConfig struct {
	ApiUrl          string                       `mapstructure:"api_url"` // f.e. "https://bbb.example.com/bigbluebutton/api/"
	Secret          string                       `mapstructure:"secret"`
	ChecksumAlgo    string                       `mapstructure:"checksum_algorithm"` // "sha1" or "sha256"
	PortalParams    map[string]map[string]string `mapstructure:"portal_params"`
	GuestNameSuffix string                       `mapstructure:"guest_name_suffix"`
}

// StreamingConfig configures the external streaming-control API and the three
// lead/lag offsets of the streamer time windows relative to event start/end.
type StreamingConfig struct {
	ApiUrl      string        `mapstructure:"api_url"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	CreateLead  time.Duration `mapstructure:"create_lead"`
	StartLead   time.Duration `mapstructure:"start_lead"`
	StopLag     time.Duration `mapstructure:"stop_lag"`
	AllowFilter string        `mapstructure:"allow_filter"` // expr expression, defaults to the group premium flag
	LockPath    string        `mapstructure:"lock_path"`    // flock file guarding the sweep across processes
}

// PersistenceConfig configures the persistence backend: "postgres" or "sqlite"
// (gorm) via DSN, or "buntdb" with DSN as the database file path.
type PersistenceConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

// CacheConfig configures the resolved-settings cache.
type CacheConfig struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.String("log-level", "", "log level (TRACE, DEBUG, INFO, WARN, ERROR)")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	from := "-"
	to := "_"
	name = strings.Replace(name, from, to, -1)
	return pflag.NormalizedName(name)
}

// ReadConfiguration reads and parses the configuration located at configPath, which can either point to a single TOML
// file or to a directory, in which case all *.toml files in this directory are concatenated. It returns a Config
// object.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	cfg := Config{}
	flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
	viper.SetDefault("log_level", "INFO")
	viper.SetDefault("bbb.checksum_algorithm", defaultChecksumAlgo)
	err := viper.BindPFlags(flagSet)
	if err != nil {
		globals.AppLogger.Error("could not bind flags (ignored)", "error", err)
	}
	viper.SetEnvPrefix("CONFHUB")
	viper.AutomaticEnv()
	if configPath != "" {
		fi, err := os.Stat(configPath)
		if err != nil {
			return nil, err
		}
		contents := make([]byte, 0)
		files := []string{configPath}
		if fi.IsDir() {
			files, err = filepath.Glob(filepath.Join(configPath, "*.toml"))
			if err != nil {
				return nil, err
			}
		}
		for _, configFile := range files {
			fileContents, err := ioutil.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			contents = append(contents, fileContents...)
			contents = append(contents, '\n')
		}
		viper.SetConfigType("toml")
		err = viper.ReadConfig(bytes.NewBuffer(contents))
		if err != nil {
			globals.AppLogger.Error("could not read config:", "error", err)
		}
	}
	err = viper.Unmarshal(&cfg)
	if err != nil {
		globals.AppLogger.Error("could not unmarshal config:", "error", err)
	}
	cfg.applyDefaults()

	globals.AppLogger.Debug("config", "cfg", cfg)
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.CacheConfig.TTL <= 0 {
		c.CacheConfig.TTL = defaultCacheTTL
	}
	if c.StreamingConfig.CreateLead <= 0 {
		c.StreamingConfig.CreateLead = defaultCreateLead
	}
	if c.StreamingConfig.StartLead <= 0 {
		c.StreamingConfig.StartLead = defaultStartLead
	}
	if c.StreamingConfig.StopLag <= 0 {
		c.StreamingConfig.StopLag = defaultStopLag
	}
	if c.BBBConfig.ChecksumAlgo == "" {
		c.BBBConfig.ChecksumAlgo = defaultChecksumAlgo
	}
	if c.BBBConfig.GuestNameSuffix == "" {
		c.BBBConfig.GuestNameSuffix = defaultGuestNameSuffix
	}
}
