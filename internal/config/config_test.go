package config

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.9, cfg.Threshold)
	assert.Equal(t, ModeTemplate, cfg.Mode)
	assert.Equal(t, 10.0, cfg.BlackLevel)
	assert.Equal(t, "mp4v", cfg.Codec)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.Progress)
	assert.Equal(t, DefaultTemplateName, filepath.Base(cfg.Template))
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("LOADREMOVER_THRESHOLD", "0.75")
	t.Setenv("LOADREMOVER_MODE", "black")
	t.Setenv("LOADREMOVER_TEMPLATE", "/srv/sprites/loading.png")
	t.Setenv("LOADREMOVER_ROI", "10,20,30,40")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.75, cfg.Threshold)
	assert.Equal(t, ModeBlack, cfg.Mode)
	assert.Equal(t, "/srv/sprites/loading.png", cfg.Template)

	roi, err := cfg.Region()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(10, 20, 40, 60), roi)
}

func TestLoadBadNumber(t *testing.T) {
	t.Setenv("LOADREMOVER_THRESHOLD", "high")

	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Template:   "loading.png",
		Threshold:  0.9,
		Mode:       ModeTemplate,
		BlackLevel: 10,
		Codec:      "mp4v",
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(c *Config){
		"zero threshold":     func(c *Config) { c.Threshold = 0 },
		"threshold above 1":  func(c *Config) { c.Threshold = 1.5 },
		"unknown mode":       func(c *Config) { c.Mode = "fuzzy" },
		"missing template":   func(c *Config) { c.Template = "" },
		"black level range":  func(c *Config) { c.Mode = ModeBlack; c.BlackLevel = 300 },
		"short codec":        func(c *Config) { c.Codec = "h264x" },
		"malformed roi":      func(c *Config) { c.ROI = "1,2,3" },
		"negative roi width": func(c *Config) { c.ROI = "1,2,-3,4" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}
}

func TestParseROI(t *testing.T) {
	r, err := ParseROI(" 0, 5 ,100,50")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 5, 100, 55), r)

	_, err = ParseROI("a,b,c,d")
	assert.ErrorIs(t, err, ErrInvalid)
}
