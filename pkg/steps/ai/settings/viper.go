package settings

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	AppName   = "shift"
	EnvPrefix = "SHIFT"
)

// credentialEnvVars are consulted in order when no api-key is set through
// flags, the config file or SHIFT_API_KEY.
var credentialEnvVars = []string{"API_KEY", "GEMINI_API_KEY"}

// LoadDotEnv loads .env files into the process environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "could not load %s", f)
		}
		log.Debug().Str("file", f).Msg("Loaded environment file")
	}
	return nil
}

// ConfigureViper sets up env lookup and reads shift.yaml from the usual locations
// (or configPath when given) on top of the built-in defaults.
func ConfigureViper(v *viper.Viper, configPath string) error {
	if err := setDefaults(v); err != nil {
		return err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/." + AppName)
		if xdgConfigPath, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(xdgConfigPath, AppName))
		}
	}

	err := v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "could not read config file")
	}
	log.Debug().Str("config", v.ConfigFileUsed()).Msg("Loaded configuration")
	return nil
}

func newDefaultsViper() (*viper.Viper, error) {
	v := viper.New()
	if err := setDefaults(v); err != nil {
		return nil, err
	}
	return v, nil
}

func setDefaults(v *viper.Viper) error {
	defaults := viper.New()
	defaults.SetConfigType("yaml")
	if err := defaults.ReadConfig(bytes.NewReader(defaultsYAML)); err != nil {
		return errors.Wrap(err, "could not parse default settings")
	}
	for _, key := range defaults.AllKeys() {
		v.SetDefault(key, defaults.Get(key))
	}
	return nil
}

// FromViper decodes the settings from v and resolves the API credential.
func FromViper(v *viper.Viper) (*StepSettings, error) {
	return decode(v)
}

func decode(v *viper.Viper) (*StepSettings, error) {
	s := &StepSettings{}
	// nested keys are not picked up from the environment by Unmarshal unless
	// they are known, which SetDefault takes care of.
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.Wrap(err, "could not decode settings")
	}
	if s.APIKey == "" {
		s.APIKey = v.GetString("api-key")
	}
	if s.APIKey == "" {
		for _, name := range credentialEnvVars {
			if val := os.Getenv(name); val != "" {
				s.APIKey = val
				break
			}
		}
	}
	return s, nil
}
