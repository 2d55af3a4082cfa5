package config

// OtelConfig holds OpenTelemetry settings. An empty endpoint disables tracing.
type OtelConfig struct {
	// ExporterEndpoint is an OTLP/HTTP URL, e.g. http://localhost:4318.
	ExporterEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	Insecure         bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	ServiceName      string  `env:"OTEL_SERVICE_NAME" envDefault:"erm-server"`
	SamplingRate     float64 `env:"OTEL_SAMPLING_RATE" envDefault:"1.0"`
}

func (c OtelConfig) Enabled() bool {
	return c.ExporterEndpoint != ""
}
