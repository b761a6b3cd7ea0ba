// Package config holds the settings shared by the loadremover commands.
//
// Defaults come from LOADREMOVER_* environment variables (optionally read from
// a .env file in the working directory). Command line flags override them.
package config

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultTemplateName is the sprite looked up next to the executable.
const DefaultTemplateName = "loading.png"

// ErrInvalid marks configuration problems. The commands exit with a usage code.
var ErrInvalid = errors.New("invalid configuration")

type Mode string

const (
	ModeTemplate Mode = "template"
	ModeBlack    Mode = "black"
)

type Config struct {
	Template   string  `env:"LOADREMOVER_TEMPLATE"`
	Threshold  float64 `env:"LOADREMOVER_THRESHOLD"   envDefault:"0.9"`
	Mode       Mode    `env:"LOADREMOVER_MODE"        envDefault:"template"`
	BlackLevel float64 `env:"LOADREMOVER_BLACK_LEVEL" envDefault:"10"`
	ROI        string  `env:"LOADREMOVER_ROI"`
	Codec      string  `env:"LOADREMOVER_CODEC"       envDefault:"mp4v"`
	LogLevel   string  `env:"LOADREMOVER_LOG_LEVEL"   envDefault:"info"`
	Progress   bool    `env:"LOADREMOVER_PROGRESS"    envDefault:"true"`
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: load .env: %v", ErrInvalid, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if cfg.Template == "" {
		cfg.Template = DefaultTemplatePath()
	}
	return cfg, nil
}

// DefaultTemplatePath resolves the bundled sprite relative to the running binary.
func DefaultTemplatePath() string {
	exe, err := os.Executable()
	if err != nil {
		return DefaultTemplateName
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), DefaultTemplateName)
}

func (c *Config) Validate() error {
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("%w: threshold %v must be in (0, 1]", ErrInvalid, c.Threshold)
	}
	switch c.Mode {
	case ModeTemplate:
		if c.Template == "" {
			return fmt.Errorf("%w: template path is empty", ErrInvalid)
		}
	case ModeBlack:
		if c.BlackLevel < 0 || c.BlackLevel >= 255 {
			return fmt.Errorf("%w: black level %v must be in [0, 255)", ErrInvalid, c.BlackLevel)
		}
	default:
		return fmt.Errorf("%w: mode must be %q or %q, got %q", ErrInvalid, ModeTemplate, ModeBlack, c.Mode)
	}
	if len(c.Codec) != 4 {
		return fmt.Errorf("%w: codec %q must be a four character code", ErrInvalid, c.Codec)
	}
	if _, err := c.Region(); err != nil {
		return err
	}
	return nil
}

// Region returns the parsed region of interest, or an empty rectangle when unset.
func (c *Config) Region() (image.Rectangle, error) {
	if c.ROI == "" {
		return image.Rectangle{}, nil
	}
	return ParseROI(c.ROI)
}

// ParseROI parses "x,y,w,h" in pixels.
func ParseROI(s string) (image.Rectangle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("%w: roi %q must be x,y,w,h", ErrInvalid, s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("%w: roi %q: %v", ErrInvalid, s, err)
		}
		v[i] = n
	}
	if v[0] < 0 || v[1] < 0 || v[2] <= 0 || v[3] <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: roi %q must have a non-negative origin and positive size", ErrInvalid, s)
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), nil
}
