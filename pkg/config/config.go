// Package config holds the simulation options read from a YAML file.
// Netlist dot commands take precedence over the file.
package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/edp1096/toy-circuit/internal/consts"
	"github.com/edp1096/toy-circuit/pkg/analysis"
	"github.com/edp1096/toy-circuit/pkg/circuit"
	"github.com/edp1096/toy-circuit/pkg/netlist"
)

var ErrInvalid = errors.New("invalid configuration")

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("sweeptype", validateSweepType)
}

func validateSweepType(fl validator.FieldLevel) bool {
	switch strings.ToUpper(fl.Field().String()) {
	case "DEC", "OCT", "LIN":
		return true
	}
	return false
}

type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Convergence ConvergenceConfig `yaml:"convergence"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Output      OutputConfig      `yaml:"output"`
}

type EnvironmentConfig struct {
	// Temperature in Celsius.
	Temperature float64 `yaml:"temperature" validate:"gt=-273.15"`
}

type ConvergenceConfig struct {
	MaxIter int     `yaml:"max_iter" validate:"gte=1,lte=10000"`
	Abstol  float64 `yaml:"abstol" validate:"gt=0"`
	Reltol  float64 `yaml:"reltol" validate:"gt=0,lt=1"`
	Gmin    float64 `yaml:"gmin" validate:"gte=0"`
	MaxStep float64 `yaml:"max_step" validate:"gte=0"`
}

type SweepConfig struct {
	Type   string  `yaml:"type" validate:"sweeptype"`
	Points int     `yaml:"points" validate:"gte=1"`
	FStart float64 `yaml:"fstart" validate:"gt=0"`
	FStop  float64 `yaml:"fstop" validate:"gtefield=FStart"`
}

type AnalysisConfig struct {
	RefNode  string         `yaml:"ref_node" validate:"required"`
	AC       SweepConfig    `yaml:"ac"`
	Noise    NoiseConfig    `yaml:"noise"`
	LoopGain LoopGainConfig `yaml:"loopgain"`
}

type NoiseConfig struct {
	Output string `yaml:"output"`
	Source string `yaml:"source"`
}

type LoopGainConfig struct {
	Target string   `yaml:"target"`
	Port   []string `yaml:"port" validate:"len=4,dive,required"`
}

type OutputConfig struct {
	Plot     string `yaml:"plot"`
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

func DefaultConfig() *Config {
	conv := analysis.DefaultConvergence()
	return &Config{
		Environment: EnvironmentConfig{
			Temperature: consts.DEFAULT_TEMP - consts.KELVIN,
		},
		Convergence: ConvergenceConfig{
			MaxIter: conv.MaxIter,
			Abstol:  conv.Abstol,
			Reltol:  conv.Reltol,
			Gmin:    conv.Gmin,
			MaxStep: conv.MaxStep,
		},
		Analysis: AnalysisConfig{
			RefNode: circuit.GroundName,
			AC: SweepConfig{
				Type:   "DEC",
				Points: 10,
				FStart: 1,
				FStop:  1e6,
			},
			LoopGain: LoopGainConfig{
				Port: []string{"inp", "inn", "outp", "outn"},
			},
		},
		Output: OutputConfig{
			LogLevel: "info",
		},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return cfg, nil
}

func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	return nil
}

// Kelvin returns the configured temperature in Kelvin.
func (c *Config) Kelvin() float64 {
	return c.Environment.Temperature + consts.KELVIN
}

func (c *Config) Env() *circuit.Env {
	return &circuit.Env{Temp: c.Kelvin()}
}

func (c *Config) Sweep() analysis.Sweep {
	return analysis.Sweep{
		StartFreq:  c.Analysis.AC.FStart,
		StopFreq:   c.Analysis.AC.FStop,
		NumPoints:  c.Analysis.AC.Points,
		PointsType: strings.ToUpper(c.Analysis.AC.Type),
	}
}

func (c *Config) Port() [4]string {
	var p [4]string
	copy(p[:], c.Analysis.LoopGain.Port)
	return p
}

func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Output.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Options returns the analysis options the configuration implies.
func (c *Config) Options(logger *slog.Logger) []analysis.Option {
	opts := []analysis.Option{
		analysis.WithEnv(c.Env()),
		analysis.WithRefNode(c.Analysis.RefNode),
		analysis.WithConvergence(analysis.Convergence{
			MaxIter: c.Convergence.MaxIter,
			Abstol:  c.Convergence.Abstol,
			Reltol:  c.Convergence.Reltol,
			Gmin:    c.Convergence.Gmin,
			MaxStep: c.Convergence.MaxStep,
		}),
	}
	if logger != nil {
		opts = append(opts, analysis.WithLogger(logger))
	}
	return opts
}

// Merge copies the settings a netlist's dot commands carry into c.
func (c *Config) Merge(nd *netlist.NetlistData) {
	if nd.Temp > 0 {
		c.Environment.Temperature = nd.Temp - consts.KELVIN
	}

	var sp netlist.SweepParam
	switch nd.Analysis {
	case netlist.AnalysisAC:
		sp = nd.ACParam
	case netlist.AnalysisNoise:
		sp = nd.NoiseParam.SweepParam
		c.Analysis.Noise = NoiseConfig{Output: nd.NoiseParam.Output, Source: nd.NoiseParam.Source}
	case netlist.AnalysisLoopGain:
		c.Analysis.LoopGain = LoopGainConfig{Target: nd.LoopGainParam.Target, Port: nd.LoopGainParam.Port[:]}
		if nd.LoopGainParam.Swept {
			sp = nd.LoopGainParam.SweepParam
		}
	}
	if sp.Sweep != "" {
		c.Analysis.AC = SweepConfig{Type: sp.Sweep, Points: sp.Points, FStart: sp.FStart, FStop: sp.FStop}
	}
}
