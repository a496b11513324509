package middleware

import (
	"github.com/grafana/pyroscope-go"

	"github.com/io7m-com/idstore-sub007/internal/config"
)

var profiler *pyroscope.Profiler

// InitProfiling starts continuous profiling against the configured
// Pyroscope endpoint.
func InitProfiling(cfg *config.Config) error {
	p, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.Service.Name,
		ServerAddress:   cfg.Profiling.Endpoint,
		Tags: map[string]string{
			"env":     cfg.Service.Env,
			"version": cfg.Service.Version,
		},
	})
	if err != nil {
		return err
	}
	profiler = p
	return nil
}

// StopProfiling flushes and stops the profiler.
func StopProfiling() {
	if profiler != nil {
		_ = profiler.Stop()
	}
}
