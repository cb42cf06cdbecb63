package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"auditgate/internal/cmderr"
	"auditgate/internal/config"
	"auditgate/internal/logger"
	"auditgate/internal/model"
	"auditgate/internal/pipeline"
)

// Version is set at build time.
var Version = "dev"

const rootCmdDesc = `auditgate runs yarn audit and filters its advisories by severity,
explicit exclusions and dev dependencies.

The exit code is the number of reportable vulnerabilities, so a clean
project exits with 0.`

// maxExitCode is the largest status a process can report.
const maxExitCode = 255

var reportable int

var rootCmd = &cobra.Command{
	Use:           "auditgate",
	Short:         "Gate CI builds on yarn audit results",
	Long:          rootCmdDesc,
	Version:       Version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := readConfigFile(); err != nil {
			return err
		}
		cfg, err := config.FromViper(viper.GetViper(), afero.NewOsFs())
		if err != nil {
			return err
		}
		log.Debug().
			Str("min_severity", cfg.MinSeverity.String()).
			Strs("exclusions", cfg.Exclusions()).
			Bool("ignore_dev_deps", cfg.IgnoreDevDeps).
			Bool("retry", cfg.RetryOnNetworkFailure).
			Msg("configuration")

		reportable, err = pipeline.New(cmd.OutOrStdout()).Run(cmd.Context(), cfg)
		return err
	},
}

// Execute runs the root command and exits with the resulting status.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		var cErr *cmderr.Error
		if errors.As(err, &cErr) && cErr.Output != "" {
			fmt.Fprintln(os.Stderr, strings.TrimRight(cErr.Output, "\n"))
		}
		log.Error().Msg(err.Error())
		os.Exit(clampExitCode(cmderr.ExitCode(err)))
	}
	os.Exit(clampExitCode(reportable))
}

func clampExitCode(code int) int {
	if code > maxExitCode {
		return maxExitCode
	}
	return code
}

func init() {
	logger.CliCompactLogger(logger.LogOutputWriter)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	addAuditFlags(rootCmd.Flags())

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().String("log-level", "info", "Set log level: error, warn, info, debug, trace")

	viper.BindPFlags(rootCmd.Flags())
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.SetEnvPrefix("auditgate")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// addAuditFlags registers the flags that end up in config.RunConfig. Their
// names are the viper keys.
func addAuditFlags(f *pflag.FlagSet) {
	f.StringP(config.KeyMinSeverity, "s", config.DefaultMinSeverity.String(), "Minimum severity to report: "+strings.Join(model.SeverityNames(), ", "))
	f.StringSliceP(config.KeyExclude, "e", nil, "Advisory ids to exclude, comma separated (numeric or GHSA ids)")
	f.String(config.KeyExclusionsFile, "", "File listing advisory ids to exclude (default "+config.DefaultExclusionsFile+" in the project directory)")
	f.BoolP(config.KeyIgnoreDevDeps, "d", false, "Ignore advisories reachable only through devDependencies")
	f.BoolP(config.KeyFailOnMissingExclusions, "f", false, "Fail when an excluded advisory is not reported by yarn audit")
	f.BoolP(config.KeyRetryOnNetworkFailure, "r", false, "Retry yarn audit when the registry request fails")
	f.Bool(config.KeyDebug, false, "Print debug output, including the raw audit output on decode errors")
	f.String(config.KeyDir, ".", "Project directory to audit")
	f.String(config.KeyYarn, config.DefaultYarn, "yarn executable")
	f.Duration(config.KeyTimeout, 0, "Timeout for a single yarn audit attempt, 0 disables it")
	f.Duration(config.KeyRetryDelay, config.DefaultRetryDelay, "Delay between network retries")
	f.String(config.KeyNetworkSignature, config.DefaultNetworkSignature, "Text in the yarn output that marks a network failure")
	f.String(config.KeyOut, "", "Directory to write report.json and report.md to")
	f.Bool(config.KeyNoColor, false, "Disable coloured output")
}

func initLogger() {
	// environment variables always over-write custom flags
	if envLevel, ok := logger.GetEnvLogLevel(); ok {
		logger.Set(envLevel)
		return
	}

	level := viper.GetString("log-level")
	if viper.GetBool("verbose") || viper.GetBool(config.KeyDebug) {
		level = "debug"
	}
	logger.Set(level)
}

// readConfigFile loads .auditgate.yaml from the project directory, if present.
// Flags and environment variables take precedence over it.
func readConfigFile() error {
	viper.SetConfigName(".auditgate")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(viper.GetString(config.KeyDir))
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return cmderr.Config(errors.Wrap(err, "failed to read config file"))
	}
	log.Debug().Str("file", viper.ConfigFileUsed()).Msg("loaded config file")
	return nil
}
