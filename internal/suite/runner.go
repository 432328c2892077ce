// Package suite invokes the external test runner (pytest + testinfra)
// against the provisioned instances and reports its wait status.
package suite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/kballard/go-shellquote"
	"github.com/osbuild/cloud-image-validator/internal/cloud"
	"github.com/osbuild/cloud-image-validator/internal/log"
)

// WaitStatus is a POSIX-encoded process termination status as reported by
// wait(2). The high byte holds the exit code for a normally exited process.
type WaitStatus int

// ExitCode extracts the exit code from the wait status, so e.g. a raw wait
// status of 32512 maps to exit code 127.
func (ws WaitStatus) ExitCode() int {
	return int(ws>>8) & 0xff
}

// Runner invokes the test suites once against the full inventory.
type Runner interface {
	RunTests(ctx context.Context, inv cloud.Inventory, suites []string, outputFile, filter, markers string) (WaitStatus, error)
}

// PytestRunner shells out to pytest. The runner's own behavior (collection,
// parallelization, reporting) is opaque here; this type only assembles the
// invocation and captures the wait status.
type PytestRunner struct {
	// Binary overrides the pytest executable name.
	Binary string

	// SSHConfigFile is handed to testinfra so its ssh backend reuses the
	// generated client config.
	SSHConfigFile string

	// Parallel adds '-n auto' (pytest-xdist).
	Parallel bool

	// ExtraArgs are appended verbatim, after shell-style splitting.
	ExtraArgs string
}

var _ Runner = (*PytestRunner)(nil)

// RunTests runs the suites once. A runner that starts and fails reports its
// real wait status with a nil error; only failures to launch the runner at
// all surface as errors.
func (r *PytestRunner) RunTests(ctx context.Context, inv cloud.Inventory, suites []string, outputFile, filter, markers string) (WaitStatus, error) {
	args, err := r.buildArgs(inv, suites, outputFile, filter, markers)
	if err != nil {
		return 0, err
	}

	bin := r.Binary
	if bin == "" {
		bin = "pytest"
	}
	log.Info(ctx, "invoking test runner", "command", bin+" "+shellquote.Join(args...))

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err = cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return 0, fmt.Errorf("starting test runner: %w", err)
		}
	}

	status, ok := cmd.ProcessState.Sys().(syscall.WaitStatus)
	if !ok {
		// Non-POSIX platform; synthesize a wait status from the exit code.
		return WaitStatus(cmd.ProcessState.ExitCode() << 8), nil
	}
	return WaitStatus(status), nil
}

func (r *PytestRunner) buildArgs(inv cloud.Inventory, suites []string, outputFile, filter, markers string) ([]string, error) {
	if len(suites) == 0 {
		return nil, fmt.Errorf("no test suites configured")
	}

	args := append([]string{}, suites...)

	hosts := make([]string, 0, len(inv))
	for _, id := range inv.IDs() {
		inst := inv[id]
		hosts = append(hosts, fmt.Sprintf("ssh://%s@%s", inst.Username, inst.PublicDNS))
	}
	args = append(args, "--hosts="+strings.Join(hosts, ","))
	if r.SSHConfigFile != "" {
		args = append(args, "--ssh-config="+r.SSHConfigFile)
	}

	args = append(args, "--junit-xml="+outputFile)
	if filter != "" {
		args = append(args, "-k", filter)
	}
	if markers != "" {
		args = append(args, "-m", markers)
	}
	if r.Parallel {
		args = append(args, "-n", "auto")
	}

	if r.ExtraArgs != "" {
		extra, err := shellquote.Split(r.ExtraArgs)
		if err != nil {
			return nil, fmt.Errorf("parsing runner extra args: %w", err)
		}
		args = append(args, extra...)
	}
	return args, nil
}
