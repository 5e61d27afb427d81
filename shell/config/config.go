package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/guildworks/toolledger/ledger"
)

// Supported values of Config.Engine.
const (
	EngineSQLite  = "sqlite"
	EnginePGXPool = "pgxpool"
	EngineSQLDB   = "sqldb"
	EngineSQLX    = "sqlx"
)

const (
	envPrefix = "TOOLLEDGER"

	keyEngine         = "engine"
	keyDSN            = "dsn"
	keyReplicaDSN     = "replica_dsn"
	keySQLitePath     = "sqlite_path"
	keyTableName      = "table_name"
	keyLabelsPath     = "labels_path"
	keyMaxLoans       = "max_loans"
	keyTimeZone       = "time_zone"
	keyReturnAllToken = "return_all_token"
	keyLogLevel       = "log_level"
	keyMetricsAddress = "metrics_address"
	keyNotifyTimeout  = "notify_timeout"

	defaultEngine         = EngineSQLite
	defaultSQLitePath     = "toolledger.db"
	defaultTableName      = "tools"
	defaultLabelsPath     = "labels.db"
	defaultTimeZone       = "Asia/Seoul"
	defaultReturnAllToken = "*"
	defaultLogLevel       = "info"
	defaultMetricsAddress = ":9090"
	defaultNotifyTimeout  = 5 * time.Second
)

var (
	// ErrUnsupportedEngine is returned for an unknown engine value.
	ErrUnsupportedEngine = errors.New("unsupported engine")

	// ErrMissingDSN is returned when a Postgres engine is configured without a DSN.
	ErrMissingDSN = errors.New("dsn is required for postgres engines")

	// ErrReadingConfigFailed is returned when the config file cannot be read.
	ErrReadingConfigFailed = errors.New("reading config failed")
)

// Config is the complete runtime configuration of the tool ledger.
type Config struct {
	Engine         string        `mapstructure:"engine"`
	DSN            string        `mapstructure:"dsn"`
	ReplicaDSN     string        `mapstructure:"replica_dsn"`
	SQLitePath     string        `mapstructure:"sqlite_path"`
	TableName      string        `mapstructure:"table_name"`
	LabelsPath     string        `mapstructure:"labels_path"`
	MaxLoans       int           `mapstructure:"max_loans"`
	TimeZone       string        `mapstructure:"time_zone"`
	ReturnAllToken string        `mapstructure:"return_all_token"`
	LogLevel       string        `mapstructure:"log_level"`
	MetricsAddress string        `mapstructure:"metrics_address"`
	NotifyTimeout  time.Duration `mapstructure:"notify_timeout"`
}

// Load reads the configuration. configFile may be empty, in which case only defaults and
// environment variables (TOOLLEDGER_ENGINE, TOOLLEDGER_DSN, ...) are used.
func Load(configFile string) (Config, error) {
	v := newViper()

	if configFile != "" {
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Join(ErrReadingConfigFailed, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Join(ErrReadingConfigFailed, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the combination of settings.
func (c Config) Validate() error {
	switch c.Engine {
	case EngineSQLite:
	case EnginePGXPool, EngineSQLDB, EngineSQLX:
		if c.DSN == "" {
			return ErrMissingDSN
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedEngine, c.Engine)
	}

	if c.TableName == "" {
		return ledger.ErrEmptyTableName
	}

	if c.MaxLoans < 1 {
		return fmt.Errorf("max_loans must be positive, got %d", c.MaxLoans)
	}

	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyEngine, defaultEngine)
	v.SetDefault(keyDSN, "")
	v.SetDefault(keyReplicaDSN, "")
	v.SetDefault(keySQLitePath, defaultSQLitePath)
	v.SetDefault(keyTableName, defaultTableName)
	v.SetDefault(keyLabelsPath, defaultLabelsPath)
	v.SetDefault(keyMaxLoans, ledger.DefaultMaxLoans)
	v.SetDefault(keyTimeZone, defaultTimeZone)
	v.SetDefault(keyReturnAllToken, defaultReturnAllToken)
	v.SetDefault(keyLogLevel, defaultLogLevel)
	v.SetDefault(keyMetricsAddress, defaultMetricsAddress)
	v.SetDefault(keyNotifyTimeout, defaultNotifyTimeout)
}
