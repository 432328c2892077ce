// Package validator sequences a validation run: provision ephemeral cloud
// instances through the infrastructure engine, set up SSH access, run the
// test suites against every instance, then tear everything down.
package validator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/osbuild/cloud-image-validator/internal/cloud"
	"github.com/osbuild/cloud-image-validator/internal/config"
	"github.com/osbuild/cloud-image-validator/internal/console"
	"github.com/osbuild/cloud-image-validator/internal/log"
	"github.com/osbuild/cloud-image-validator/internal/opentofu"
	"github.com/osbuild/cloud-image-validator/internal/ssh"
	"github.com/osbuild/cloud-image-validator/internal/suite"
)

// Configurator prepares the infrastructure engine workspace from the
// declarative resources description.
type Configurator interface {
	CloudFromResources() (cloud.Provider, error)
	InitResources() error
	Configure() error
	PrintConfiguration(io.Writer)
}

// Controller owns the provisioned infrastructure.
type Controller interface {
	CreateInfra(context.Context) error
	DestroyInfra(context.Context) error
	GetInstances(context.Context) (cloud.Inventory, error)
}

// SSHEnv is the SSH support surface the workflow needs: key generation,
// client config generation and key distribution.
type SSHEnv interface {
	WriteKeyPair(identityPath, pubPath string) error
	WriteInstancesConfig(inv cloud.Inventory, configPath, identityPath string) error
	DistributeKeys(ctx context.Context, inv cloud.Inventory, identityPath, pubPath string) error
}

// Validator runs the five workflow steps in order. Collaborators are held as
// interfaces so tests can substitute doubles.
type Validator struct {
	cfg *config.Config
	out io.Writer

	newConfigurator func(pubKeyPath, resourcesPath string, cfg *config.Config) Configurator
	newController   func(c Configurator, debug bool) (Controller, error)
	runner          suite.Runner
	sshEnv          SSHEnv
	remove          func(string) error

	configurator Configurator
	controller   Controller
}

// New wires a Validator to the real collaborators.
func New(cfg *config.Config) *Validator {
	return &Validator{
		cfg: cfg,
		out: os.Stdout,
		newConfigurator: func(pubKeyPath, resourcesPath string, cfg *config.Config) Configurator {
			return opentofu.NewConfigurator(pubKeyPath, resourcesPath, cfg)
		},
		newController: func(c Configurator, debug bool) (Controller, error) {
			oc, ok := c.(*opentofu.Configurator)
			if !ok {
				return nil, fmt.Errorf("configurator is not an opentofu configurator")
			}
			ctrl, err := opentofu.NewController(oc, debug)
			if err != nil {
				return nil, err
			}
			return ctrl, nil
		},
		runner: &suite.PytestRunner{
			SSHConfigFile: cfg.SSHConfigFile,
			Parallel:      cfg.Parallel,
			ExtraArgs:     cfg.RunnerExtraArgs,
		},
		sshEnv: sshLib{},
		remove: os.Remove,
	}
}

// InitializeInfrastructure generates the SSH keypair, builds the engine
// configurator from the resources file and prints the resolved settings.
func (v *Validator) InitializeInfrastructure() error {
	if err := v.sshEnv.WriteKeyPair(v.cfg.SSHIdentityFile, v.cfg.SSHPubKeyFile); err != nil {
		return fmt.Errorf("generating SSH keypair: %w", err)
	}

	v.configurator = v.newConfigurator(v.cfg.SSHPubKeyFile, v.cfg.ResourcesFile, v.cfg)
	if _, err := v.configurator.CloudFromResources(); err != nil {
		return err
	}
	if err := v.configurator.InitResources(); err != nil {
		return err
	}
	if err := v.configurator.Configure(); err != nil {
		return err
	}
	v.configurator.PrintConfiguration(v.out)
	return nil
}

// DeployInfrastructure creates the infrastructure, snapshots the resulting
// inventory to disk and generates the SSH client config, then returns the
// inventory unchanged.
func (v *Validator) DeployInfrastructure(ctx context.Context) (cloud.Inventory, error) {
	ctrl, err := v.newController(v.configurator, v.cfg.Debug)
	if err != nil {
		return nil, err
	}
	v.controller = ctrl

	if err := ctrl.CreateInfra(ctx); err != nil {
		return nil, err
	}
	inv, err := ctrl.GetInstances(ctx)
	if err != nil {
		return nil, err
	}

	if err := inv.WriteFile(v.cfg.InstancesJSON); err != nil {
		return nil, err
	}
	if err := v.sshEnv.WriteInstancesConfig(inv, v.cfg.SSHConfigFile, v.cfg.SSHIdentityFile); err != nil {
		return nil, err
	}
	return inv, nil
}

// PrepareEnvironment distributes the SSH credentials to every instance.
func (v *Validator) PrepareEnvironment(ctx context.Context, inv cloud.Inventory) error {
	return v.sshEnv.DistributeKeys(ctx, inv, v.cfg.SSHIdentityFile, v.cfg.SSHPubKeyFile)
}

// RunTestsInAllInstances hands the inventory to the external test runner and
// returns the runner's raw wait status.
func (v *Validator) RunTestsInAllInstances(ctx context.Context, inv cloud.Inventory) (suite.WaitStatus, error) {
	return v.runner.RunTests(ctx, inv, v.cfg.TestSuites, v.cfg.OutputFile, v.cfg.TestFilter, v.cfg.IncludeMarkers)
}

// Cleanup destroys the infrastructure unless stop_cleanup is set, then
// removes the generated artifacts unless debug is set. Artifacts go in a
// fixed order: identity key, public key, ssh config, instance inventory.
// Failures are collected, not fatal mid-way.
func (v *Validator) Cleanup(ctx context.Context) error {
	var errs error

	if v.cfg.StopCleanup {
		log.Info(ctx, "infrastructure teardown suppressed (stop_cleanup)")
	} else if v.controller != nil {
		errs = errors.Join(errs, v.controller.DestroyInfra(ctx))
	}

	if v.cfg.Debug {
		log.Info(ctx, "debug mode, keeping generated artifacts")
		return errs
	}
	for _, path := range []string{
		v.cfg.SSHIdentityFile,
		v.cfg.SSHPubKeyFile,
		v.cfg.SSHConfigFile,
		v.cfg.InstancesJSON,
	} {
		if err := v.remove(path); err != nil {
			errs = errors.Join(errs, fmt.Errorf("removing %q: %w", path, err))
		}
	}
	return errs
}

// Main runs the whole workflow and returns the process exit code: the high
// byte of the test runner's wait status on a full run, 1 if any earlier step
// failed. Cleanup always runs as the final step, best-effort.
func (v *Validator) Main(ctx context.Context) int {
	exitCode := 1

	console.Divider(v.out, "Initializing infrastructure")
	if err := v.InitializeInfrastructure(); err != nil {
		log.Error(ctx, "failed to initialize infrastructure", "error", err)
		return v.finish(ctx, exitCode)
	}

	console.Divider(v.out, "Deploying infrastructure")
	inv, err := v.DeployInfrastructure(ctx)
	if err != nil {
		log.Error(ctx, "failed to deploy infrastructure", "error", err)
		return v.finish(ctx, exitCode)
	}

	console.Divider(v.out, "Preparing environment")
	if err := v.PrepareEnvironment(ctx, inv); err != nil {
		log.Error(ctx, "failed to prepare environment", "error", err)
		return v.finish(ctx, exitCode)
	}

	console.Divider(v.out, "Running tests")
	waitStatus, err := v.RunTestsInAllInstances(ctx, inv)
	if err != nil {
		log.Error(ctx, "failed to run tests", "error", err)
		return v.finish(ctx, exitCode)
	}

	return v.finish(ctx, waitStatus.ExitCode())
}

// finish prints the final divider and runs cleanup, logging (not failing on)
// its errors.
func (v *Validator) finish(ctx context.Context, exitCode int) int {
	console.Divider(v.out, "Cleanup")
	if err := v.Cleanup(ctx); err != nil {
		log.Warn(ctx, "cleanup finished with errors", "error", err)
	}
	return exitCode
}

// AttachInfrastructure rebuilds the configurator/controller pair against
// infrastructure provisioned by an earlier run, without creating anything.
func (v *Validator) AttachInfrastructure() (Controller, error) {
	v.configurator = v.newConfigurator(v.cfg.SSHPubKeyFile, v.cfg.ResourcesFile, v.cfg)
	ctrl, err := v.newController(v.configurator, v.cfg.Debug)
	if err != nil {
		return nil, err
	}
	v.controller = ctrl
	return ctrl, nil
}

// AttachInstances returns the inventory of the currently attached
// infrastructure.
func (v *Validator) AttachInstances(ctx context.Context) (cloud.Inventory, error) {
	if v.controller == nil {
		return nil, fmt.Errorf("no infrastructure attached")
	}
	return v.controller.GetInstances(ctx)
}

// PrintSSHCommandsForInstances prints a ready-to-paste ssh command for every
// instance, one per instance, in inventory order.
func (v *Validator) PrintSSHCommandsForInstances(inv cloud.Inventory) {
	for _, id := range inv.IDs() {
		inst := inv[id]
		fmt.Fprintf(v.out, "%s:\n\tssh -i %s %s@%s\n", id, v.cfg.SSHIdentityFile, inst.Username, inst.PublicDNS)
	}
}

// sshLib adapts the ssh package functions to the SSHEnv contract.
type sshLib struct{}

func (sshLib) WriteKeyPair(identityPath, pubPath string) error {
	return ssh.WriteKeyPair(identityPath, pubPath)
}

func (sshLib) WriteInstancesConfig(inv cloud.Inventory, configPath, identityPath string) error {
	return ssh.WriteInstancesConfig(inv, configPath, identityPath)
}

func (sshLib) DistributeKeys(ctx context.Context, inv cloud.Inventory, identityPath, pubPath string) error {
	return ssh.DistributeKeys(ctx, inv, identityPath, pubPath)
}
