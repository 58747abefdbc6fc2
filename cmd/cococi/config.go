package main

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/infinilabs/cococi/pkg/central"
	"github.com/infinilabs/cococi/pkg/config"
	"github.com/infinilabs/cococi/pkg/integration"
	"github.com/infinilabs/cococi/pkg/search"
	"github.com/infinilabs/cococi/pkg/snapshot"
)

// defineConfigFlags defines the flags that can also be set in a
// config file or the environment. Each is bound to the viper key
// named by the mapstructure tag of the config.Config field it fills.
func defineConfigFlags(fs *pflag.FlagSet, v *viper.Viper, bail func(error)) {

	bind := func(fieldName, flagName string) error {
		configStruct := reflect.TypeOf(config.Config{})
		field, ok := configStruct.FieldByName(fieldName)
		if !ok {
			return fmt.Errorf("attempt to bind a flag to a field not present in config.Config, %q", fieldName)
		}
		// this parallels the logic in
		// github.com/mitchellh/mapstructure, except that we want to
		// bail if a field is mentioned that is marked ignore
		mappedName := field.Name
		if namePart := strings.Split(field.Tag.Get("mapstructure"), ",")[0]; namePart != "" {
			if namePart == "-" {
				return fmt.Errorf(`attempt to bind a flag to a config field tagged as ignored, %q`, field.Name)
			}
			mappedName = namePart
		}
		return v.BindPFlag(mappedName, fs.Lookup(flagName))
	}

	bindOrBail := func(fieldName, flagName string) {
		if err := bind(fieldName, flagName); err != nil {
			bail(err)
		}
	}

	defineString := func(fieldName, flagName, def, desc string) {
		fs.String(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineBool := func(fieldName, flagName string, def bool, desc string) {
		fs.Bool(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineDuration := func(fieldName, flagName string, def time.Duration, desc string) {
		fs.Duration(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineInt := func(fieldName, flagName string, def int, desc string) {
		fs.Int(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineFloat64 := func(fieldName, flagName string, def float64, desc string) {
		fs.Float64(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineString("LogFormat", "log-format", "fmt", "change the log format (fmt or json)")
	defineString("PushgatewayURL", "pushgateway-url", "", "if set, push metrics to this Prometheus Pushgateway on exit")

	// Central
	defineString("OSSRHUsername", "ossrh-username", "", "Central portal token username; or set OSSRH_USERNAME")
	defineString("OSSRHPassword", "ossrh-password", "", "Central portal token password; or set OSSRH_PASSWORD")
	defineString("CentralURL", "central-url", central.DefaultBaseURL, "base URL of the Central publisher API")
	defineString("Bundle", "bundle", "", "path to the bundle zip to publish; or set ZIP_FILE_PATH")
	defineDuration("PollInterval", "poll-interval", 10*time.Second, "time between deployment status checks")
	defineDuration("Timeout", "timeout", 10*time.Minute, "give up on a deployment that isn't published after this long")
	defineInt("MaxConsecutiveErrors", "max-consecutive-errors", 5, "give up after this many status checks fail in a row")
	defineDuration("RequestTimeout", "request-timeout", 5*time.Minute, "maximum time a single HTTP request may take, uploads included")

	// search cluster
	defineString("ESEndpoint", "es-endpoint", search.DefaultEndpoint, "search cluster URL; or set ES_ENDPOINT")
	defineString("ESUsername", "es-username", "elastic", "search cluster username; or set ES_USERNAME")
	defineString("ESPassword", "es-password", "changeme", "search cluster password; or set ES_PASSWORD")
	defineBool("ESInsecure", "es-insecure", true, "skip TLS certificate verification for the search cluster")

	// snapshots
	defineString("SnapshotDir", "snapshot-dir", "tests/snapshot/repo", "directory holding one subdirectory per index")
	defineString("IndexPattern", "index-pattern", snapshot.DefaultPattern, "indices to export")
	defineString("CleanupPattern", "cleanup-pattern", snapshot.DefaultCleanupPattern, "indices to delete before importing")
	defineString("IncludeIndex", "include-index", "", "if set, only import index directories matching this glob")
	defineInt("ScrollSize", "scroll-size", snapshot.DefaultScrollSize, "documents per scroll page when exporting")
	defineInt("BatchSize", "batch-size", snapshot.DefaultBatchSize, "documents per bulk request when importing")
	defineFloat64("BulkRPS", "bulk-rps", 0, "maximum bulk requests per second when importing; 0 is unlimited")
	defineInt("BulkBurst", "bulk-burst", 1, "bulk requests allowed in a burst above --bulk-rps")
	defineInt("HealthAttempts", "health-attempts", snapshot.DefaultHealthAttempts, "health checks to try before importing anyway")
	defineDuration("HealthInterval", "health-interval", time.Second, "time between health checks")

	// integration
	defineString("Root", "root", ".", "coco-server project root")
	defineString("Loadgen", "loadgen", "", "loadgen binary; by default found on PATH or at bin/loadgen")
	defineString("Filter", "filter", "", "only run scenarios whose path under tests/ matches this glob")
	defineString("Report", "report", "", "if set, write a YAML report of the run here")
	defineString("ServerLog", "server-log", integration.DefaultServerLog(), "server log to print after a failure on GitHub Actions")
}
