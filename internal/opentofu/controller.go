package opentofu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/hashicorp/terraform-exec/tfexec"
	"github.com/osbuild/cloud-image-validator/internal/cloud"
	"github.com/osbuild/cloud-image-validator/internal/log"
)

// Controller runs the engine lifecycle (init, apply, output, destroy)
// against a Configurator's workspace. The provisioning itself is entirely
// the engine's business; the Controller never inspects the state file.
type Controller struct {
	cfgr  *Configurator
	debug bool
	tf    *tfexec.Terraform
}

// NewController binds a Controller to the configurator's workspace. The
// engine binary is looked up as 'tofu' first, then 'terraform'.
func NewController(cfgr *Configurator, debug bool) (*Controller, error) {
	execPath, err := findEngine()
	if err != nil {
		return nil, err
	}

	tf, err := tfexec.NewTerraform(cfgr.Workspace, execPath)
	if err != nil {
		return nil, fmt.Errorf("binding engine to workspace %q: %w", cfgr.Workspace, err)
	}
	if debug {
		tf.SetStdout(os.Stdout)
		tf.SetStderr(os.Stderr)
	} else {
		tf.SetStdout(io.Discard)
	}

	return &Controller{cfgr: cfgr, debug: debug, tf: tf}, nil
}

func findEngine() (string, error) {
	for _, bin := range []string{"tofu", "terraform"} {
		if path, err := exec.LookPath(bin); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("neither 'tofu' nor 'terraform' found in $PATH")
}

// CreateInfra initializes the workspace and applies it.
func (c *Controller) CreateInfra(ctx context.Context) error {
	log.Info(ctx, "creating infrastructure", "cloud", c.cfgr.Cloud(), "workspace", c.cfgr.Workspace)

	if err := c.tf.Init(ctx, tfexec.Upgrade(true), tfexec.Reconfigure(true)); err != nil {
		return fmt.Errorf("initializing engine workspace: %w", err)
	}
	if err := c.tf.Apply(ctx, tfexec.VarFile(varsFileName)); err != nil {
		return fmt.Errorf("applying infrastructure: %w", err)
	}
	return nil
}

// GetInstances decodes the engine's 'instances' output into an inventory.
func (c *Controller) GetInstances(ctx context.Context) (cloud.Inventory, error) {
	out, err := c.tf.Output(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading engine output: %w", err)
	}

	raw, ok := out["instances"]
	if !ok {
		return nil, fmt.Errorf("engine output has no 'instances' value")
	}

	var inv cloud.Inventory
	if err := json.Unmarshal(raw.Value, &inv); err != nil {
		return nil, fmt.Errorf("decoding instance inventory: %w", err)
	}
	return inv, nil
}

// DestroyInfra tears down everything the engine created.
func (c *Controller) DestroyInfra(ctx context.Context) error {
	log.Info(ctx, "destroying infrastructure", "workspace", c.cfgr.Workspace)

	if err := c.tf.Destroy(ctx, tfexec.VarFile(varsFileName)); err != nil {
		return fmt.Errorf("destroying infrastructure: %w", err)
	}
	return nil
}
