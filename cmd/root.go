package cmd

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/forgeworks/forge-setup/internal/answers"
	"github.com/forgeworks/forge-setup/internal/apply"
	"github.com/forgeworks/forge-setup/internal/config"
	"github.com/forgeworks/forge-setup/internal/defaults"
	"github.com/forgeworks/forge-setup/internal/exitcode"
	"github.com/forgeworks/forge-setup/internal/merge"
	"github.com/forgeworks/forge-setup/internal/persist"
	"github.com/forgeworks/forge-setup/internal/prompt"
	"github.com/forgeworks/forge-setup/internal/rules"
	"github.com/forgeworks/forge-setup/internal/runlog"
	"github.com/forgeworks/forge-setup/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:   "forge-setup",
	Short: "Configure and install the Forge stack",
	Long: `forge-setup merges the shipped defaults, an optional answer file, and
command-line overrides into a final configuration, interactively repairs
mandatory options, then runs forge-apply and renders its progress.`,
	RunE:          runSetup,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// shippedDefaults is the parsed embedded default answer file. It defines the
// per-option flag surface and is fixed at build time; the on-disk copy, when
// present, still provides the default values at run time.
var shippedDefaults *answers.File

func Execute() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(os.Stderr, r)
			os.Exit(int(exitcode.Unknown))
		}
	}()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(exitStatus(err)))
	}
}

// exitStatus maps an error chain to the published exit taxonomy. Flag-parse
// failures count as option errors: the per-option flags are generated from
// the default answer file, so an unknown flag is an unknown option.
func exitStatus(err error) exitcode.Status {
	if st := exitcode.FromError(err); st != exitcode.General {
		return st
	}
	if strings.Contains(err.Error(), "unknown flag") || strings.Contains(err.Error(), "unknown shorthand flag") {
		return exitcode.DefaultOptionError
	}
	return exitcode.General
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default /etc/forge/setup.yaml)")
	rootCmd.Flags().String("answer-file", "", "answer file overlaying the shipped defaults")
	rootCmd.Flags().Bool("no-bars", false, "pass apply output through instead of drawing progress bars")
	rootCmd.Flags().Bool("debug", false, "show debug lines in pass-through mode")
	rootCmd.Flags().Bool("only-show-config", false, "print the merged configuration and exit")
	rootCmd.Flags().Bool("non-interactive", false, "never prompt; fail when a mandatory option is invalid")

	shippedDefaults, _ = answers.Parse("built-in default answers", defaults.EmbeddedAnswers())
	registerOptionFlags(rootCmd.Flags(), shippedDefaults)
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("setup")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("/etc/forge")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("FORGE_SETUP")
	viper.AutomaticEnv()

	// It's fine if no config file is found; we use defaults.
	_ = viper.ReadInConfig()
}

// registerOptionFlags creates one --<hyphenated-key> string flag per option
// of the default answer file.
func registerOptionFlags(fs *pflag.FlagSet, def *answers.File) {
	for _, key := range def.Order {
		usage := def.Titles[key]
		if usage == "" {
			usage = "override the " + key + " option"
		}
		fs.String(flagName(key), "", usage)
	}
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// collectOverrides gathers the per-option flags the operator actually set.
func collectOverrides(fs *pflag.FlagSet, def *answers.File) map[string]string {
	overrides := make(map[string]string)
	for _, key := range def.Order {
		if fs.Changed(flagName(key)) {
			v, _ := fs.GetString(flagName(key))
			overrides[key] = v
		}
	}
	return overrides
}

func runSetup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if dbg, _ := cmd.Flags().GetBool("debug"); dbg {
		cfg.Debug = true
	}
	printer := ui.New()

	result, err := buildMergedConfig(cmd, cfg, printer)
	if err != nil {
		return err
	}

	if show, _ := cmd.Flags().GetBool("only-show-config"); show {
		os.Stdout.Write(answers.Serialize(result.Entries()))
		return nil
	}

	ruleSet, err := loadRules(cfg, printer)
	if err != nil {
		return err
	}
	nonInteractive, _ := cmd.Flags().GetBool("non-interactive")
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		nonInteractive = true
	}
	if err := result.Validate(ruleSet, prompt.New(nonInteractive)); err != nil {
		return err
	}

	// Preconditions, checked before anything is written.
	if os.Geteuid() != 0 {
		return exitcode.Errorf(exitcode.NotPrivileged, "forge-setup must run as root")
	}
	fqdn, err := resolveFQDN()
	if err != nil {
		return exitcode.Wrap(exitcode.HostnameError, err)
	}

	return persistAndApply(cmd, cfg, printer, result, fqdn)
}

// buildMergedConfig layers defaults, the operator's answer file, and CLI
// overrides into one merge result.
func buildMergedConfig(cmd *cobra.Command, cfg config.Config, printer *ui.Printer) (*merge.Result, error) {
	name, data, err := defaults.AnswerFile(cfg.DefaultAnswerFile)
	if err != nil {
		return nil, exitcode.Wrap(exitcode.DefaultOptionError, err)
	}
	def, err := answers.Parse(name, data)
	if err != nil {
		var pe *answers.ParseError
		if errors.As(err, &pe) {
			printer.Problems("errors in the default answer file:", pe.Problems)
		}
		return nil, exitcode.Wrap(exitcode.DefaultOptionError, err)
	}

	result := merge.New(def)

	if path, _ := cmd.Flags().GetString("answer-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, exitcode.Errorf(exitcode.AnswerFileMissing, "cannot read answer file %s: %v", path, err)
		}
		userFile, err := answers.Parse(path, data)
		if err != nil {
			var pe *answers.ParseError
			if errors.As(err, &pe) {
				printer.Problems("errors in "+path+":", pe.Problems)
			}
			return nil, exitcode.Wrap(exitcode.AnswerParsingError, err)
		}
		if err := result.ApplyAnswers(userFile); err != nil {
			var ue *merge.UnknownOptionsError
			if errors.As(err, &ue) {
				printer.Problems("unknown options in "+path+":", ue.Keys)
			}
			return nil, exitcode.Wrap(exitcode.AnswerUnknownOption, err)
		}
	}

	result.ApplyOverrides(collectOverrides(cmd.Flags(), shippedDefaults))
	return result, nil
}

func loadRules(cfg config.Config, printer *ui.Printer) (*rules.Set, error) {
	name, data, err := defaults.OptionsFormat(cfg.OptionsFormatFile)
	if err != nil {
		return nil, exitcode.Wrap(exitcode.DefaultOptionError, err)
	}
	set, err := rules.Parse(name, data)
	if err != nil {
		var pe *rules.ParseError
		if errors.As(err, &pe) {
			printer.Problems("errors in the options-format file:", pe.Problems)
		}
		return nil, exitcode.Wrap(exitcode.DefaultOptionError, err)
	}
	return set, nil
}

// persistAndApply writes every artifact of the merge and then runs the apply
// tool. The secrets file is written before the subprocess is launched.
func persistAndApply(cmd *cobra.Command, cfg config.Config, printer *ui.Printer, result *merge.Result, fqdn string) error {
	mainSet, dangerSet, secret, hasSecret := merge.Partition(
		result.Delta(), cfg.DangerousOptions, cfg.SecretOption)

	writer := persist.New(cfg.ResultFile, cfg.SecretsFile, cfg.LogDir, cfg.ServiceUser)
	dangerPath, err := writer.Persist(mainSet, dangerSet, secret, hasSecret)
	if err != nil {
		return err
	}
	if dangerPath != "" {
		defer os.Remove(dangerPath)
	}

	logDir, err := writer.RotateLogDir()
	if err != nil {
		return err
	}
	if err := writer.ArchiveResult(logDir); err != nil {
		return err
	}
	log, err := runlog.New(filepath.Join(logDir, "forge-setup.log"))
	if err != nil {
		return err
	}
	defer log.Close()

	stages, err := apply.Stages()
	if err != nil {
		return err
	}
	noBars, _ := cmd.Flags().GetBool("no-bars")
	runner := &apply.Runner{
		Command: cfg.ApplyCommand,
		ExtraEnv: []string{
			"FORGE_ANSWER_FILE=" + cfg.ResultFile,
			"FORGE_EXTRA_ANSWER_FILE=" + dangerPath,
			"LC_ALL=C",
			"FACTER_FQDN=" + fqdn,
		},
		Stages: stages,
		UI:     printer,
		Log:    log,
		Raw:    noBars,
		Debug:  cfg.Debug,
	}

	runErr := runner.Run(cmd.Context())
	printer.Done(runErr != nil, logDir)
	if runErr != nil {
		return exitcode.Wrap(exitcode.ApplyError, runErr)
	}
	return nil
}

// resolveFQDN checks that this machine's hostname resolves and returns it for
// the apply tool's environment, suppressing its own hostname detection.
func resolveFQDN() (string, error) {
	host, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("determining hostname: %w", err)
	}
	addrs, err := net.LookupHost(host)
	if err != nil {
		return "", fmt.Errorf("hostname %q does not resolve: %w", host, err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("hostname %q has no addresses", host)
	}
	return host, nil
}
