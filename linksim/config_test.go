package linksim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/cwsl/chimera/fec"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero k", func(c *Config) { c.K = 0 }},
		{"n not greater than k", func(c *Config) { c.N = 4 }},
		{"hamming84 wrong dims", func(c *Config) { c.K = 8; c.N = 16 }},
		{"unsupported order", func(c *Config) { c.ModulationOrder = 8 }},
		{"unaligned for 64-QAM", func(c *Config) { c.ModulationOrder = 64 }},
		{"zero iterations", func(c *Config) { c.MaxIterations = 0 }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"gallager without column weight", func(c *Config) {
			c.Parity = ParityGallager
			c.K = 16
			c.N = 32
		}},
		{"dense with wrong row count", func(c *Config) {
			c.Parity = ParityDense
			c.ParityRows = [][]uint8{{1, 1, 0, 0, 1, 0, 0, 0}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
k: 16
n: 32
parity: gallager
column_weight: 3
matrix_seed: 21
modulation_order: 16
link_loss_db: 3.5
es_n0_db: 6
seed: 99
max_iterations: 25
algorithm: min-sum
workers: 2
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.K)
	assert.Equal(t, 32, cfg.N)
	assert.Equal(t, ParityGallager, cfg.Parity)
	assert.Equal(t, 3, cfg.ColumnWeight)
	assert.Equal(t, uint64(21), cfg.MatrixSeed)
	assert.Equal(t, 16, cfg.ModulationOrder)
	assert.Equal(t, 3.5, cfg.LinkLossDb)
	assert.Equal(t, 6.0, cfg.EsN0Db)
	assert.Equal(t, uint64(99), cfg.Seed)
	assert.Equal(t, 25, cfg.MaxIterations)
	assert.Equal(t, Algorithm(fec.MinSum), cfg.Algorithm)
	assert.Equal(t, 2, cfg.Workers)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("k: 0\nn: 8\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestEnumYAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Parity = ParityGallager
	cfg.ColumnWeight = 3
	cfg.K = 16
	cfg.N = 32
	cfg.Algorithm = Algorithm(fec.SumProduct)

	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "parity: gallager")
	assert.Contains(t, string(data), "algorithm: sum-product")

	var back Config
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, cfg.Parity, back.Parity)
	assert.Equal(t, cfg.Algorithm, back.Algorithm)
}

func TestEnumFromStringErrors(t *testing.T) {
	_, err := ParitySourceFromString("reed-solomon")
	assert.Error(t, err)
	_, err = fec.AlgorithmFromString("viterbi")
	assert.Error(t, err)
}

func TestNewLinkRejectsMismatchedDense(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Parity = ParityDense
	// Right row count, but a singular parity block: construction must
	// fail at NewEncoder, not at first use.
	cfg.ParityRows = [][]uint8{
		{1, 0, 1, 0, 1, 0, 1, 0},
		{0, 1, 0, 1, 0, 1, 0, 1},
		{1, 1, 0, 0, 1, 1, 0, 0},
		{1, 1, 0, 0, 1, 1, 0, 0},
	}
	_, err := NewLink(cfg)
	assert.Error(t, err)
}
