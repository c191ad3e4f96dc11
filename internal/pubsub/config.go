package pubsub

import (
	"log/slog"
	"os"
	"strconv"
)

// LoadTracingConfigFromEnv reads the PUBSUB_TRACING_* variables.
func LoadTracingConfigFromEnv() TracingConfig {
	return TracingConfigFromLookup(os.LookupEnv)
}

// TracingConfigFromLookup builds a TracingConfig from lookup, keeping the
// default for every key that is missing, empty or malformed.
func TracingConfigFromLookup(lookup func(string) (string, bool)) TracingConfig {
	config := DefaultTracingConfig()

	if v, ok := lookup("PUBSUB_TRACING_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("Ignoring malformed PUBSUB_TRACING_ENABLED", "value", v)
		} else {
			config.Enabled = enabled
		}
	}
	if v, ok := lookup("PUBSUB_TRACING_SERVICE_NAME"); ok && v != "" {
		config.ServiceName = v
	}
	if v, ok := lookup("PUBSUB_TRACING_ZIPKIN_URL"); ok && v != "" {
		config.ZipkinURL = v
	}
	return config
}
