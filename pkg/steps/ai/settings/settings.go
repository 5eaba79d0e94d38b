package settings

import (
	_ "embed"
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
)

// ErrMissingCredential is returned by every provider call when no API key is configured.
var ErrMissingCredential = errors.New("API key is not configured")

type ModelSettings struct {
	Default       string `yaml:"default" mapstructure:"default"`
	Search        string `yaml:"search" mapstructure:"search"`
	Maps          string `yaml:"maps" mapstructure:"maps"`
	Image         string `yaml:"image" mapstructure:"image"`
	Speech        string `yaml:"speech" mapstructure:"speech"`
	Transcription string `yaml:"transcription" mapstructure:"transcription"`
	Live          string `yaml:"live" mapstructure:"live"`
}

type VoiceSettings struct {
	Speech string `yaml:"speech" mapstructure:"speech"`
	Live   string `yaml:"live" mapstructure:"live"`
}

type ClientSettings struct {
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	BaseURL string        `yaml:"base-url,omitempty" mapstructure:"base-url"`
}

// LocationSettings configure the position used to bias maps grounding. A fixed
// latitude/longitude takes precedence over the IP lookup.
type LocationSettings struct {
	Disabled    bool          `yaml:"disabled" mapstructure:"disabled"`
	Latitude    *float64      `yaml:"latitude,omitempty" mapstructure:"latitude"`
	Longitude   *float64      `yaml:"longitude,omitempty" mapstructure:"longitude"`
	IPLookupURL string        `yaml:"ip-lookup-url" mapstructure:"ip-lookup-url"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type LiveSettings struct {
	FrameSize int `yaml:"frame-size" mapstructure:"frame-size"`
}

type StepSettings struct {
	APIKey      string           `yaml:"-" mapstructure:"api-key"`
	Temperature float64          `yaml:"temperature" mapstructure:"temperature"`
	Models      ModelSettings    `yaml:"models" mapstructure:"models"`
	Voices      VoiceSettings    `yaml:"voices" mapstructure:"voices"`
	Client      ClientSettings   `yaml:"client" mapstructure:"client"`
	Location    LocationSettings `yaml:"location" mapstructure:"location"`
	Live        LiveSettings     `yaml:"live" mapstructure:"live"`
}

//go:embed "flags/defaults.yaml"
var defaultsYAML []byte

// NewStepSettings returns settings populated with the built-in defaults.
func NewStepSettings() (*StepSettings, error) {
	v, err := newDefaultsViper()
	if err != nil {
		return nil, err
	}
	return decode(v)
}

func (s *StepSettings) Clone() *StepSettings {
	return clone.Clone(s).(*StepSettings)
}

// Validate checks that a provider call can be attempted.
func (s *StepSettings) Validate() error {
	if s == nil || s.APIKey == "" {
		return ErrMissingCredential
	}
	return nil
}

// HasFixedLocation reports whether a static position is configured.
func (s *StepSettings) HasFixedLocation() bool {
	return s.Location.Latitude != nil && s.Location.Longitude != nil
}
