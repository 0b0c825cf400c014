// Command crosstabc compiles dashboard declarations into bundles and ships
// them as static sites or OCI artifacts.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crosstab/crosstab-go/compiler"
	"github.com/crosstab/crosstab-go/internal/logging"
	"github.com/crosstab/crosstab-go/lint"
	"github.com/crosstab/crosstab-go/source"
)

// app carries what every command shares: configuration, logger and the
// output stream.
type app struct {
	v   *viper.Viper
	log *logrus.Entry
	out io.Writer
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), log: logging.Discard(), out: stdout}
	var cfgFile string

	root := &cobra.Command{
		Use:   "crosstabc",
		Short: "Compile interactive dashboards into self-contained bundles",
		Long: `crosstabc compiles dashboard declarations (inputs, linked inputs, charts
and visibility rules) into bundles a browser runtime can refilter without a
server.

Configuration is read from crosstab.yaml in the working directory (or
--config) and CROSSTAB_* environment variables; flags win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.initConfig(cfgFile, cmd); err != nil {
				return err
			}
			logger, err := logging.New(stderr, a.v.GetString("log-level"), a.v.GetString("log-format"))
			if err != nil {
				return err
			}
			a.log = logrus.NewEntry(logger)
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./crosstab.yaml)")
	root.PersistentFlags().StringP("log-level", "l", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "text", "log format: text or json")
	root.PersistentFlags().String("revision", "", "source revision to stamp (default: git revision of the declaration)")

	root.AddCommand(
		newCompileCmd(a),
		newCheckCmd(a),
		newWatchCmd(a),
		newPreviewCmd(a),
		newExplainCmd(a),
		newPushCmd(a),
		newPullCmd(a),
		newPublishCmd(a),
	)
	return root
}

// initConfig layers the config file and environment under the flags of cmd.
func (a *app) initConfig(cfgFile string, cmd *cobra.Command) error {
	if cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigName("crosstab")
		a.v.SetConfigType("yaml")
	}
	a.v.SetEnvPrefix("CROSSTAB")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	a.v.AutomaticEnv()

	a.v.SetDefault("s3.region", "us-east-1")
	a.v.SetDefault("lint.max-combinations", 4096)
	a.v.SetDefault("lint.max-range-points", 64)

	if err := a.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return a.v.BindPFlags(cmd.InheritedFlags())
}

func (a *app) compiler() *compiler.Compiler {
	opts := []compiler.Option{compiler.WithLogger(a.log)}
	if revision := a.v.GetString("revision"); revision != "" {
		opts = append(opts, compiler.WithRevision(revision))
	}
	lintOpts := lint.DefaultOptions()
	lintOpts.MaxCombinations = a.v.GetInt("lint.max-combinations")
	lintOpts.MaxRangePoints = a.v.GetInt("lint.max-range-points")
	opts = append(opts, compiler.WithLintOptions(lintOpts))
	return compiler.New(opts...)
}

func (a *app) s3Config() source.S3Config {
	return source.S3Config{
		Region:         a.v.GetString("s3.region"),
		Endpoint:       a.v.GetString("s3.endpoint"),
		ForcePathStyle: a.v.GetBool("s3.force-path-style"),
		AccessKey:      a.v.GetString("s3.access-key"),
		SecretKey:      a.v.GetString("s3.secret-key"),
		SessionToken:   a.v.GetString("s3.session-token"),
	}
}
