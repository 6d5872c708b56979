package kernelcheck

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrConfig marks configuration problems the user can correct. The
// command layer maps it to its own exit code.
var ErrConfig = errors.New("invalid configuration")

// Config selects the transformation behaviour.
type Config struct {
	// Strategy names the race instrumentation strategy: "original" or
	// "watchdog".
	Strategy string `yaml:"strategy"`
	// PointerWidth is the bit-width of array offsets, matching the
	// size_t width the front end compiled with.
	PointerWidth int `yaml:"pointer_width"`
	// NoBenign disables value recording and benign-write tolerance.
	NoBenign bool `yaml:"no_benign_tolerance"`
	// AsymmetricOnly emits thread-1 assertions only.
	AsymmetricOnly bool `yaml:"asymmetric_only"`
	// CheckBarrierAccesses adds per-instantiation access-permission
	// checks when flushing barrier invariants.
	CheckBarrierAccesses bool `yaml:"check_barrier_accesses"`
}

// DefaultConfig is the configuration used absent a file.
func DefaultConfig() Config {
	return Config{Strategy: "original", PointerWidth: 32}
}

// LoadConfig reads a configuration file, layering it over the defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return config, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&config); err != nil {
		return config, fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
	}

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Validate rejects configurations no transformation can honour.
func (c Config) Validate() error {
	switch c.PointerWidth {
	case 32, 64:
	default:
		return fmt.Errorf("%w: pointer width must be 32 or 64, got %d", ErrConfig, c.PointerWidth)
	}
	switch c.Strategy {
	case "", "original", "watchdog":
	default:
		return fmt.Errorf("%w: unknown race instrumentation strategy %q", ErrConfig, c.Strategy)
	}
	return nil
}
