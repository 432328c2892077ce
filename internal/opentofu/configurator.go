// Package opentofu drives the external infrastructure engine (opentofu, or
// terraform as a fallback) that provisions the ephemeral test instances. The
// Configurator turns a declarative resources file into an engine workspace;
// the Controller runs the engine lifecycle against that workspace.
package opentofu

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/osbuild/cloud-image-validator/internal/cloud"
	"github.com/osbuild/cloud-image-validator/internal/config"
)

//go:embed templates
var templates embed.FS

const varsFileName = "vars.tfvars.json"

// resourcesFile is the on-disk shape of the declarative resources
// description.
type resourcesFile struct {
	Provider  string         `json:"provider"`
	Region    string         `json:"region"`
	Instances []InstanceSpec `json:"instances"`
}

// InstanceSpec describes one instance to provision.
type InstanceSpec struct {
	Name         string `json:"name"`
	Image        string `json:"image"`
	InstanceType string `json:"instance_type"`
	Username     string `json:"username"`
}

// Configurator assembles the engine workspace for a run: the builtin
// template for the discovered cloud plus a generated variables file carrying
// the instance definitions and the SSH public key.
type Configurator struct {
	PubKeyPath    string
	ResourcesPath string

	// Workspace is the engine working directory. It is derived from the
	// resources file name so a later attach against the same resources finds
	// the existing state.
	Workspace string

	cfg       *config.Config
	cloudName cloud.Provider
	runID     string
	resources *resourcesFile
	vars      map[string]any
}

// NewConfigurator builds a Configurator from the SSH public key path, the
// resources file path and the full run configuration.
func NewConfigurator(pubKeyPath, resourcesPath string, cfg *config.Config) *Configurator {
	name := strings.TrimSuffix(filepath.Base(resourcesPath), filepath.Ext(resourcesPath))
	return &Configurator{
		PubKeyPath:    pubKeyPath,
		ResourcesPath: resourcesPath,
		Workspace:     filepath.Join(os.TempDir(), "civ-"+slug.Make(name)),
		cfg:           cfg,
		runID:         uuid.NewString(),
	}
}

// Cloud returns the provider discovered by CloudFromResources.
func (c *Configurator) Cloud() cloud.Provider {
	return c.cloudName
}

// CloudFromResources reads the resources file and records which cloud
// provider it targets.
func (c *Configurator) CloudFromResources() (cloud.Provider, error) {
	res, err := c.readResources()
	if err != nil {
		return "", err
	}
	p, err := cloud.ParseProvider(res.Provider)
	if err != nil {
		return "", fmt.Errorf("resources file %q: %w", c.ResourcesPath, err)
	}
	c.cloudName = p
	return p, nil
}

// InitResources builds the variable payload handed to the engine from the
// resources file, the public key material and the configured tags.
func (c *Configurator) InitResources() error {
	res, err := c.readResources()
	if err != nil {
		return err
	}
	if len(res.Instances) == 0 {
		return fmt.Errorf("resources file %q declares no instances", c.ResourcesPath)
	}

	pubKey, err := os.ReadFile(c.PubKeyPath)
	if err != nil {
		return fmt.Errorf("reading public key file: %w", err)
	}

	tags := map[string]string{"civ-run-id": c.runID}
	for k, v := range c.cfg.Tags {
		tags[k] = v
	}

	c.vars = map[string]any{
		"region":         res.Region,
		"ssh_public_key": strings.TrimSpace(string(pubKey)),
		"tags":           tags,
		"instances":      res.Instances,
	}
	return nil
}

// Configure materializes the workspace: the builtin template for the
// discovered cloud plus the generated variables file.
func (c *Configurator) Configure() error {
	if c.cloudName == "" {
		return fmt.Errorf("cloud provider not discovered yet")
	}
	if c.vars == nil {
		return fmt.Errorf("resources not initialized yet")
	}

	if err := os.MkdirAll(c.Workspace, 0o755); err != nil {
		return fmt.Errorf("creating workspace: %w", err)
	}

	src, err := fs.Sub(templates, "templates/"+string(c.cloudName))
	if err != nil {
		return fmt.Errorf("no builtin template for provider %q: %w", c.cloudName, err)
	}
	if err := fs.WalkDir(src, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		targ := filepath.Join(c.Workspace, filepath.FromSlash(path))
		if d.IsDir() {
			return os.MkdirAll(targ, 0o755)
		}
		data, err := fs.ReadFile(src, path)
		if err != nil {
			return err
		}
		return os.WriteFile(targ, data, 0o644)
	}); err != nil {
		return fmt.Errorf("materializing %s template: %w", c.cloudName, err)
	}

	vdata, err := json.MarshalIndent(c.vars, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling engine variables: %w", err)
	}
	if err := os.WriteFile(filepath.Join(c.Workspace, varsFileName), vdata, 0o644); err != nil {
		return fmt.Errorf("writing engine variables: %w", err)
	}
	return nil
}

// PrintConfiguration writes a human-readable dump of the resolved settings.
func (c *Configurator) PrintConfiguration(w io.Writer) {
	fmt.Fprintf(w, "cloud:           %s\n", c.cloudName)
	fmt.Fprintf(w, "resources file:  %s\n", c.ResourcesPath)
	fmt.Fprintf(w, "workspace:       %s\n", c.Workspace)
	fmt.Fprintf(w, "public key:      %s\n", c.PubKeyPath)
	fmt.Fprintf(w, "test suites:     %s\n", strings.Join(c.cfg.TestSuites, ", "))
	fmt.Fprintf(w, "output file:     %s\n", c.cfg.OutputFile)
	if c.cfg.TestFilter != "" {
		fmt.Fprintf(w, "test filter:     %s\n", c.cfg.TestFilter)
	}
	if c.cfg.IncludeMarkers != "" {
		fmt.Fprintf(w, "include markers: %s\n", c.cfg.IncludeMarkers)
	}
	fmt.Fprintf(w, "parallel:        %t\n", c.cfg.Parallel)
	fmt.Fprintf(w, "debug:           %t\n", c.cfg.Debug)
}

func (c *Configurator) readResources() (*resourcesFile, error) {
	if c.resources != nil {
		return c.resources, nil
	}
	data, err := os.ReadFile(c.ResourcesPath)
	if err != nil {
		return nil, fmt.Errorf("reading resources file: %w", err)
	}
	var res resourcesFile
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("parsing resources file %q: %w", c.ResourcesPath, err)
	}
	c.resources = &res
	return c.resources, nil
}
