package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearCredentialEnv(t *testing.T) {
	for _, name := range []string{"API_KEY", "GEMINI_API_KEY", "SHIFT_API_KEY"} {
		t.Setenv(name, "")
	}
}

func TestNewStepSettingsDefaults(t *testing.T) {
	clearCredentialEnv(t)

	s, err := NewStepSettings()
	require.NoError(t, err)

	assert.Equal(t, 0.7, s.Temperature)
	assert.Equal(t, "gemini-3-pro-preview", s.Models.Default)
	assert.Equal(t, "gemini-3-flash-preview", s.Models.Search)
	assert.Equal(t, "gemini-2.5-flash", s.Models.Maps)
	assert.Equal(t, "gemini-2.5-flash-image", s.Models.Image)
	assert.Equal(t, "gemini-2.5-flash-preview-tts", s.Models.Speech)
	assert.Equal(t, "gemini-3-flash-preview", s.Models.Transcription)
	assert.Equal(t, "gemini-2.5-flash-native-audio-preview-12-2025", s.Models.Live)
	assert.Equal(t, "Kore", s.Voices.Speech)
	assert.Equal(t, "Zephyr", s.Voices.Live)
	assert.Equal(t, 5*time.Second, s.Location.Timeout)
	assert.Equal(t, 4096, s.Live.FrameSize)
	assert.False(t, s.HasFixedLocation())

	assert.ErrorIs(t, s.Validate(), ErrMissingCredential)
}

func TestCredentialResolution(t *testing.T) {
	cases := []struct {
		name     string
		env      map[string]string
		expected string
	}{
		{"API_KEY", map[string]string{"API_KEY": "a"}, "a"},
		{"GEMINI_API_KEY", map[string]string{"GEMINI_API_KEY": "g"}, "g"},
		{"SHIFT_API_KEY wins", map[string]string{"SHIFT_API_KEY": "s", "API_KEY": "a"}, "s"},
		{"API_KEY before GEMINI_API_KEY", map[string]string{"API_KEY": "a", "GEMINI_API_KEY": "g"}, "a"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearCredentialEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			t.Chdir(t.TempDir())

			v := viper.New()
			require.NoError(t, ConfigureViper(v, ""))
			s, err := FromViper(v)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, s.APIKey)
			assert.NoError(t, s.Validate())
		})
	}
}

func TestConfigFileOverrides(t *testing.T) {
	clearCredentialEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "shift.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
temperature: 0.2
models:
  default: custom-model
location:
  latitude: 40.7
  longitude: -74.0
`), 0o600))

	v := viper.New()
	require.NoError(t, ConfigureViper(v, path))
	s, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 0.2, s.Temperature)
	assert.Equal(t, "custom-model", s.Models.Default)
	assert.Equal(t, "gemini-3-flash-preview", s.Models.Search)
	require.True(t, s.HasFixedLocation())
	assert.Equal(t, 40.7, *s.Location.Latitude)
}

func TestEnvOverridesNestedKeys(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("SHIFT_MODELS_MAPS", "maps-override")
	t.Chdir(t.TempDir())

	v := viper.New()
	require.NoError(t, ConfigureViper(v, ""))
	s, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "maps-override", s.Models.Maps)
}

func TestLoadDotEnv(t *testing.T) {
	clearCredentialEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("API_KEY=from-dotenv\n"), 0o600))
	os.Unsetenv("API_KEY")

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	t.Cleanup(func() { os.Unsetenv("API_KEY") })
	assert.Equal(t, "from-dotenv", os.Getenv("API_KEY"))
}

func TestClone(t *testing.T) {
	s, err := NewStepSettings()
	require.NoError(t, err)
	lat := 1.0
	s.Location.Latitude = &lat

	c := s.Clone()
	*c.Location.Latitude = 2.0
	c.Models.Default = "other"

	assert.Equal(t, 1.0, *s.Location.Latitude)
	assert.Equal(t, "gemini-3-pro-preview", s.Models.Default)
}
