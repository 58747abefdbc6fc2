package main

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/infinilabs/cococi/pkg/config"
	"github.com/infinilabs/cococi/pkg/integration"
	"github.com/infinilabs/cococi/pkg/metrics"
)

type rootOpts struct {
	viper      *viper.Viper
	configFile string
	Config     config.Config
	logger     log.Logger
	logOut     io.Writer

	// transport, when set, replaces the default HTTP transport for
	// every client the commands create.
	transport http.RoundTripper
	// executor, when set, is used instead of running processes.
	executor  integration.Executor
	exitCode  int
}

func newRoot(logOut io.Writer) *rootOpts {
	return &rootOpts{viper: viper.New(), logOut: logOut}
}

var rootLongHelp = strings.TrimSpace(`
cococi holds the release and integration tooling for coco-server.

Workflow:
  cococi central publish target/central-bundle.zip   # Upload a bundle to Maven Central and wait until it is published.
  cococi central clean-failed                         # Drop deployments that failed validation.
  cococi snapshot export --snapshot-dir repo          # Save the coco* indices of a running cluster.
  cococi integration run                              # Restore the snapshot and run every DSL scenario.

Settings may also come from a cococi.yaml file, from the variables CI
sets (OSSRH_USERNAME, OSSRH_PASSWORD, ZIP_FILE_PATH, ES_ENDPOINT,
ES_USERNAME, ES_PASSWORD) and from COCOCI_<SETTING>.
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "cococi",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.PersistentPreRunE,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to a YAML config file; by default ./cococi.yaml is read if present")
	defineConfigFlags(cmd.PersistentFlags(), opts.viper, func(err error) {
		panic(err)
	})

	cmd.AddCommand(
		newCentral(opts).Command(),
		newSnapshot(opts).Command(),
		newIntegration(opts).Command(),
	)
	return cmd
}

func (opts *rootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	v := opts.viper
	if opts.configFile != "" {
		v.SetConfigFile(opts.configFile)
	} else {
		v.SetConfigName(config.ConfigName)
		v.SetConfigType(config.ConfigType)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || opts.configFile != "" {
			return newUsageError("reading config: " + err.Error())
		}
	}

	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	for key, env := range config.EnvVars {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}

	if err := v.Unmarshal(&opts.Config); err != nil {
		return newUsageError("parsing config: " + err.Error())
	}
	if err := opts.Config.IsValid(); err != nil {
		return newUsageError(err.Error())
	}

	var logger log.Logger
	{
		w := log.NewSyncWriter(opts.logOut)
		if opts.Config.LogFormat == "json" {
			logger = log.NewJSONLogger(w)
		} else {
			logger = log.NewLogfmtLogger(w)
		}
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}
	opts.logger = logger
	if f := v.ConfigFileUsed(); f != "" {
		logger.Log("info", "read config", "file", f)
	}
	return nil
}

// pushMetrics sends what this run recorded to the Pushgateway, if
// one is configured. It is a no-op before the config is loaded.
func (opts *rootOpts) pushMetrics() {
	if opts.logger == nil {
		return
	}
	if err := metrics.Push(opts.Config.PushgatewayURL, "cococi", prometheus.DefaultGatherer, opts.logger); err != nil {
		opts.logger.Log("warning", "could not push metrics", "err", err)
	}
}

func (opts *rootOpts) httpClient() *http.Client {
	return &http.Client{Transport: opts.transport, Timeout: opts.Config.RequestTimeout}
}
