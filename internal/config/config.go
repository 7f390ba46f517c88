// Package config assembles runtime configuration from the environment
// (service knobs) and a YAML manifest (the dataset: genomes and store).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds the environment-driven service settings. Every variable
// is read under the VARIGRAPH_ prefix.
type Config struct {
	Addr         string        `envconfig:"ADDR" default:":8080"`
	Manifest     string        `envconfig:"MANIFEST"`
	Timeout      time.Duration `envconfig:"TIMEOUT" default:"10s"`
	MaxBodyBytes int64         `envconfig:"MAX_BODY_BYTES" default:"1048576"`
	Pretty       bool          `envconfig:"PRETTY"`
	CORSOrigins  []string      `envconfig:"CORS_ORIGINS"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"info"`
	Development  bool          `envconfig:"DEV"`
	OTLPEndpoint string        `envconfig:"OTLP_ENDPOINT"`
	Discriminant string        `envconfig:"DISCRIMINANT_FIELD" default:"type"`
}

// Load reads .env (when present) and then the environment.
func Load() (Config, error) {
	// Missing .env files are fine; explicit files are handled by the
	// caller passing VARIGRAPH_* variables directly.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("varigraph", &cfg); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}
	return cfg, nil
}

// Manifest describes the dataset a deployment serves.
type Manifest struct {
	Genomes []Genome `yaml:"genomes"`
	Store   Store    `yaml:"store"`
}

// Genome is one served assembly.
type Genome struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Store selects and configures the document provider.
type Store struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver"`
	// Path locates the sqlite database file.
	Path string `yaml:"path"`
	// Seed optionally names a document file loaded at startup. The
	// memory driver falls back to the embedded dataset when empty.
	Seed string `yaml:"seed"`
}

// DefaultManifest serves the embedded dataset from memory.
func DefaultManifest() Manifest {
	return Manifest{
		Genomes: []Genome{{ID: "a7335667-93e7-11ec-a39d-005056b38ce3", Name: "GRCh38.p13"}},
		Store:   Store{Driver: "memory"},
	}
}

// LoadManifest reads and validates a manifest file. An empty path yields
// the default manifest.
func LoadManifest(path string) (Manifest, error) {
	if path == "" {
		return DefaultManifest(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// Validate checks genome IDs and the store selection.
func (m Manifest) Validate() error {
	if len(m.Genomes) == 0 {
		return fmt.Errorf("no genomes declared")
	}
	for _, g := range m.Genomes {
		if _, err := uuid.Parse(g.ID); err != nil {
			return fmt.Errorf("genome %q: id %q is not a UUID", g.Name, g.ID)
		}
	}
	switch m.Store.Driver {
	case "memory":
	case "sqlite":
		if m.Store.Path == "" {
			return fmt.Errorf("sqlite store needs a path")
		}
	default:
		return fmt.Errorf("unknown store driver %q", m.Store.Driver)
	}
	return nil
}

// GenomeIDs returns the served genome IDs in declaration order.
func (m Manifest) GenomeIDs() []string {
	ids := make([]string, len(m.Genomes))
	for i, g := range m.Genomes {
		ids[i] = g.ID
	}
	return ids
}
