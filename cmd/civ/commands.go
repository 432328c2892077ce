package main

import (
	"github.com/osbuild/cloud-image-validator/internal/cloud"
	"github.com/osbuild/cloud-image-validator/internal/config"
	"github.com/osbuild/cloud-image-validator/internal/validator"
	"github.com/spf13/cobra"
)

// cfgFlags collects every flag that can override a config file value. Flag
// values are only applied when the flag was set on the command line, so the
// precedence is flags > config file > defaults.
type cfgFlags struct {
	configFile string
	debug      bool

	resourcesFile   string
	outputFile      string
	testFilter      string
	includeMarkers  string
	parallel        bool
	stopCleanup     bool
	testSuites      []string
	instancesJSON   string
	sshIdentityFile string
	sshPubKeyFile   string
	sshConfigFile   string
	tags            map[string]string
	runnerExtraArgs string
}

func newRootCmd() *cobra.Command {
	flags := &cfgFlags{}

	root := &cobra.Command{
		Use:           "civ",
		Short:         "Validate cloud images by running test suites on ephemeral instances",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cmd.SetContext(setupLog(cmd.Context(), flags.debug))
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", "", "path to a YAML config file")
	pf.BoolVarP(&flags.debug, "debug", "d", false, "keep artifacts and show engine output")
	pf.StringVarP(&flags.resourcesFile, "resources-file", "r", "", "declarative resources description (JSON)")
	pf.StringVar(&flags.instancesJSON, "instances-json", "", "path for the instance inventory snapshot")
	pf.StringVar(&flags.sshIdentityFile, "ssh-identity-file", "", "path for the generated SSH private key")
	pf.StringVar(&flags.sshPubKeyFile, "ssh-pub-key-file", "", "path for the generated SSH public key")
	pf.StringVar(&flags.sshConfigFile, "ssh-config-file", "", "path for the generated SSH client config")

	root.AddCommand(newRunCmd(flags))
	root.AddCommand(newAttachCmd(flags))
	root.AddCommand(newSSHCommandsCmd(flags))

	return root
}

func newRunCmd(flags *cfgFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Provision, test and tear down",
		Long: `Run the full validation workflow: provision the instances described in
the resources file, configure SSH access, run every configured test suite
against every instance, then destroy the infrastructure and the generated
artifacts.

The process exit code is the test runner's exit code.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, flags)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			code := validator.New(cfg).Main(cmd.Context())
			if code != 0 {
				return &exitCodeError{code: code}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.outputFile, "output-file", "o", "", "junit report path for the test runner")
	f.StringVar(&flags.testFilter, "test-filter", "", "test name filter forwarded to the runner")
	f.StringVar(&flags.includeMarkers, "include-markers", "", "marker expression forwarded to the runner")
	f.BoolVarP(&flags.parallel, "parallel", "p", false, "let the runner parallelize internally")
	f.BoolVar(&flags.stopCleanup, "stop-cleanup", false, "leave the infrastructure running")
	f.StringSliceVarP(&flags.testSuites, "test-suites", "t", nil, "test suite paths")
	f.StringToStringVar(&flags.tags, "tags", nil, "tags applied to every created resource")
	f.StringVar(&flags.runnerExtraArgs, "runner-extra-args", "", "extra arguments appended to the runner invocation")

	return cmd
}

func newAttachCmd(flags *cfgFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "attach",
		Short: "Attach to existing infrastructure and print its instances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, flags)
			if err != nil {
				return err
			}

			v := validator.New(cfg)
			if _, err := v.AttachInfrastructure(); err != nil {
				return err
			}
			inv, err := v.AttachInstances(cmd.Context())
			if err != nil {
				return err
			}
			v.PrintSSHCommandsForInstances(inv)
			return nil
		},
	}
}

func newSSHCommandsCmd(flags *cfgFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ssh-commands",
		Short: "Print ssh commands for the instances in the inventory snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, flags)
			if err != nil {
				return err
			}

			inv, err := cloud.ReadFile(cfg.InstancesJSON)
			if err != nil {
				return err
			}
			validator.New(cfg).PrintSSHCommandsForInstances(inv)
			return nil
		},
	}
}

// resolveConfig builds the run configuration: defaults, then the config
// file, then any flag explicitly set on the command line.
func resolveConfig(cmd *cobra.Command, flags *cfgFlags) (*config.Config, error) {
	cfg := config.Default()

	if flags.configFile != "" {
		if err := config.Load(flags.configFile, cfg); err != nil {
			return nil, err
		}
	}

	set := func(name string, apply func()) {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
	set("resources-file", func() { cfg.ResourcesFile = flags.resourcesFile })
	set("output-file", func() { cfg.OutputFile = flags.outputFile })
	set("test-filter", func() { cfg.TestFilter = flags.testFilter })
	set("include-markers", func() { cfg.IncludeMarkers = flags.includeMarkers })
	set("parallel", func() { cfg.Parallel = flags.parallel })
	set("debug", func() { cfg.Debug = flags.debug })
	set("stop-cleanup", func() { cfg.StopCleanup = flags.stopCleanup })
	set("test-suites", func() { cfg.TestSuites = flags.testSuites })
	set("instances-json", func() { cfg.InstancesJSON = flags.instancesJSON })
	set("ssh-identity-file", func() { cfg.SSHIdentityFile = flags.sshIdentityFile })
	set("ssh-pub-key-file", func() { cfg.SSHPubKeyFile = flags.sshPubKeyFile })
	set("ssh-config-file", func() { cfg.SSHConfigFile = flags.sshConfigFile })
	set("tags", func() { cfg.Tags = flags.tags })
	set("runner-extra-args", func() { cfg.RunnerExtraArgs = flags.runnerExtraArgs })

	return cfg, nil
}
