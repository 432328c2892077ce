// Package config holds the flat run configuration. A Config is resolved once
// at startup from an optional YAML file plus command line flags and is not
// mutated afterwards.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// ResourcesFile is the declarative description of the instances to
	// provision, including the target cloud provider.
	ResourcesFile string `yaml:"resources_file"`

	// OutputFile is where the test runner writes its junit report.
	OutputFile string `yaml:"output_file"`

	// TestFilter is an optional test name filter forwarded to the runner.
	TestFilter string `yaml:"test_filter"`

	// IncludeMarkers is an optional marker expression forwarded to the runner.
	IncludeMarkers string `yaml:"include_markers"`

	// Parallel lets the external runner parallelize internally.
	Parallel bool `yaml:"parallel"`

	// Debug keeps generated artifacts around after the run and surfaces the
	// infrastructure engine's output.
	Debug bool `yaml:"debug"`

	// StopCleanup leaves the provisioned infrastructure running.
	StopCleanup bool `yaml:"stop_cleanup"`

	// ConfigFile is the path this Config was loaded from, if any.
	ConfigFile string `yaml:"-"`

	// TestSuites are the suite paths handed to the runner.
	TestSuites []string `yaml:"test_suites"`

	// InstancesJSON is where the instance inventory snapshot is written.
	InstancesJSON string `yaml:"instances_json"`

	SSHIdentityFile string `yaml:"ssh_identity_file"`
	SSHPubKeyFile   string `yaml:"ssh_pub_key_file"`
	SSHConfigFile   string `yaml:"ssh_config_file"`

	// Tags are forwarded to the infrastructure engine and applied to every
	// resource it creates.
	Tags map[string]string `yaml:"tags"`

	// RunnerExtraArgs are appended verbatim to the runner invocation.
	RunnerExtraArgs string `yaml:"runner_extra_args"`
}

// Default returns a Config with the conventional artifact locations filled
// in. Callers overlay file and flag values on top.
func Default() *Config {
	return &Config{
		OutputFile:      "/tmp/report.xml",
		InstancesJSON:   "/tmp/instances.json",
		SSHIdentityFile: "/tmp/ssh_key",
		SSHPubKeyFile:   "/tmp/ssh_key.pub",
		SSHConfigFile:   "/tmp/ssh_config",
	}
}

// Load overlays the YAML file at path onto cfg.
func Load(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %q: %w", path, err)
	}
	cfg.ConfigFile = path
	return nil
}

// Validate checks the fields every workflow entry point depends on.
func (c *Config) Validate() error {
	if c.ResourcesFile == "" {
		return fmt.Errorf("resources_file is required")
	}
	if len(c.TestSuites) == 0 {
		return fmt.Errorf("at least one test suite path is required")
	}
	if c.SSHIdentityFile == "" || c.SSHPubKeyFile == "" || c.SSHConfigFile == "" {
		return fmt.Errorf("ssh artifact paths must not be empty")
	}
	if c.InstancesJSON == "" {
		return fmt.Errorf("instances_json is required")
	}
	return nil
}
