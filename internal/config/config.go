package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	// DatadirKey is the local data directory to store the wallet state
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// RelayURLKey is the base URL of the relay used to exchange slates and broadcast transactions
	RelayURLKey = "RELAY_URL"
	// RelayTimeoutKey is the timeout in seconds for relay requests
	RelayTimeoutKey = "RELAY_TIMEOUT"
	// ConfirmationHeightKey is the number of blocks before an output counts as confirmed
	ConfirmationHeightKey = "CONFIRMATION_HEIGHT"

	// DbLocation is the subdirectory of the datadir holding the stores
	DbLocation = "db"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("slatewallet", false)

// InitConfig loads the configuration from the environment and prepares the
// data directory.
func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("SLATEWALLET")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, int(logrus.InfoLevel))
	vip.SetDefault(RelayURLKey, "http://localhost:3420")
	vip.SetDefault(RelayTimeoutKey, 15)
	vip.SetDefault(ConfirmationHeightKey, 10)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetDbDir returns the directory the badger stores live in.
func GetDbDir() string {
	return filepath.Join(GetDatadir(), DbLocation)
}

// GetRelayTimeout returns the relay request timeout as a duration.
func GetRelayTimeout() time.Duration {
	return time.Duration(GetInt(RelayTimeoutKey)) * time.Second
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	if GetString(RelayURLKey) == "" {
		return fmt.Errorf("missing relay url")
	}

	level := GetInt(LogLevelKey)
	if level < int(logrus.PanicLevel) || level > int(logrus.TraceLevel) {
		return fmt.Errorf("%s must be between %d and %d", LogLevelKey,
			logrus.PanicLevel, logrus.TraceLevel)
	}

	return nil
}

func initDatadir() error {
	return makeDirectoryIfNotExists(GetDbDir())
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
