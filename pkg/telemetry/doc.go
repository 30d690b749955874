// Package telemetry provides structured logging and Prometheus metrics for
// bindings.
//
// Both Logger and Metrics implement binding.RequestLogger, and Logger also
// implements binding.EvaluatorLogger, so they plug into a factory through
// binding.WithRequestLogger and binding.WithEvaluatorLogger:
//
//	logger, _ := telemetry.NewLogger(telemetry.LoggingConfig{Level: "debug", Output: "stderr"})
//	metrics, _ := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: true, Namespace: "app"})
//	factory, _ := binding.New(client,
//		binding.WithRequestLogger(logger, metrics),
//		binding.WithEvaluatorLogger(logger),
//	)
//	http.Handle("/metrics", metrics.Handler())
package telemetry
