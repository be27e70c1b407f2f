package linksim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cwsl/chimera/fec"
)

// ParitySource selects where the parity-check matrix of a run comes from.
type ParitySource int

const (
	// ParityHamming84 is the built-in (8,4) extended Hamming toy code.
	ParityHamming84 ParitySource = iota
	// ParityGallager draws a deterministic pseudo-random regular LDPC
	// code of the configured dimensions.
	ParityGallager
	// ParityDense takes the matrix verbatim from the parity_rows field.
	ParityDense
)

// String returns the parity source name.
func (p ParitySource) String() string {
	switch p {
	case ParityHamming84:
		return "hamming84"
	case ParityGallager:
		return "gallager"
	case ParityDense:
		return "dense"
	default:
		return "unknown"
	}
}

// ParitySourceFromString converts a string to a ParitySource.
func ParitySourceFromString(s string) (ParitySource, error) {
	switch s {
	case "hamming84":
		return ParityHamming84, nil
	case "gallager":
		return ParityGallager, nil
	case "dense":
		return ParityDense, nil
	default:
		return 0, fmt.Errorf("linksim: unknown parity source: %s", s)
	}
}

// MarshalYAML implements yaml.Marshaler for ParitySource.
func (p ParitySource) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for ParitySource.
func (p *ParitySource) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	src, err := ParitySourceFromString(s)
	if err != nil {
		return err
	}
	*p = src
	return nil
}

// Algorithm wraps fec.Algorithm with YAML string marshalling.
type Algorithm fec.Algorithm

// MarshalYAML implements yaml.Marshaler for Algorithm.
func (a Algorithm) MarshalYAML() (interface{}, error) {
	return fec.Algorithm(a).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for Algorithm.
func (a *Algorithm) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	alg, err := fec.AlgorithmFromString(s)
	if err != nil {
		return err
	}
	*a = Algorithm(alg)
	return nil
}

// Config is the per-run configuration of the signal chain. It is built
// once, validated, and then treated as immutable: every stage receives its
// parameters from here and nothing is shared mutably between frames.
type Config struct {
	K int `yaml:"k"` // information-word length
	N int `yaml:"n"` // codeword length

	Parity       ParitySource `yaml:"parity"`
	ParityRows   [][]uint8    `yaml:"parity_rows,omitempty"`   // dense source only
	ColumnWeight int          `yaml:"column_weight,omitempty"` // gallager source only
	MatrixSeed   uint64       `yaml:"matrix_seed,omitempty"`   // gallager source only

	ModulationOrder int `yaml:"modulation_order"` // 4, 16 or 64

	LinkLossDb float64 `yaml:"link_loss_db"`
	EsN0Db     float64 `yaml:"es_n0_db"`
	Seed       uint64  `yaml:"seed"` // base seed for all per-frame noise

	MaxIterations int       `yaml:"max_iterations"`
	Algorithm     Algorithm `yaml:"algorithm"`

	Workers     int  `yaml:"workers"`     // 0 means GOMAXPROCS
	Diagnostics bool `yaml:"diagnostics"` // keep per-frame intermediate snapshots
}

// DefaultConfig returns the (8,4) QPSK baseline: the toy code every page of
// the worked examples uses, at a comfortably clean Es/N0.
func DefaultConfig() Config {
	return Config{
		K:               4,
		N:               8,
		Parity:          ParityHamming84,
		ModulationOrder: 4,
		LinkLossDb:      0,
		EsN0Db:          10,
		Seed:            1,
		MaxIterations:   50,
		Algorithm:       Algorithm(fec.MinSum),
	}
}

// LoadConfig loads and validates a run configuration from a YAML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("linksim: failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("linksim: failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the cross-field invariants that the individual stages
// would otherwise only catch mid-run.
func (c Config) Validate() error {
	if c.K <= 0 || c.N <= c.K {
		return fmt.Errorf("linksim: invalid code dimensions k=%d n=%d", c.K, c.N)
	}

	switch c.Parity {
	case ParityHamming84:
		if c.K != 4 || c.N != 8 {
			return fmt.Errorf("linksim: hamming84 parity requires k=4 n=8, got k=%d n=%d", c.K, c.N)
		}
	case ParityGallager:
		if c.ColumnWeight < 2 {
			return fmt.Errorf("linksim: gallager parity requires column_weight >= 2, got %d", c.ColumnWeight)
		}
	case ParityDense:
		if len(c.ParityRows) != c.N-c.K {
			return fmt.Errorf("linksim: dense parity needs %d rows, got %d", c.N-c.K, len(c.ParityRows))
		}
	default:
		return fmt.Errorf("linksim: unknown parity source %d", c.Parity)
	}

	bps := 0
	switch c.ModulationOrder {
	case 4:
		bps = 2
	case 16:
		bps = 4
	case 64:
		bps = 6
	default:
		return fmt.Errorf("linksim: unsupported modulation order %d", c.ModulationOrder)
	}
	if c.N%bps != 0 {
		return fmt.Errorf("linksim: codeword length %d is not a multiple of %d bits/symbol", c.N, bps)
	}

	if c.MaxIterations < 1 {
		return fmt.Errorf("linksim: max_iterations must be >= 1, got %d", c.MaxIterations)
	}
	if c.Workers < 0 {
		return fmt.Errorf("linksim: workers must be >= 0, got %d", c.Workers)
	}
	return nil
}

// buildParity materializes the parity-check matrix named by the config.
func (c Config) buildParity() (*fec.ParityCheckMatrix, error) {
	switch c.Parity {
	case ParityHamming84:
		return fec.Hamming84(), nil
	case ParityGallager:
		return fec.Gallager(c.N, c.K, c.ColumnWeight, c.MatrixSeed)
	case ParityDense:
		return fec.ParityCheckFromDense(c.ParityRows)
	default:
		return nil, fmt.Errorf("linksim: unknown parity source %d", c.Parity)
	}
}
