// Package tracing configures OpenTelemetry tracing for Jarvish.
//
// Spans are exported over OTLP gRPC when telemetry.tracing.enabled is set;
// otherwise every call goes to a noop tracer. Sampling is parent-based with
// one of three strategies: always, never or ratio.
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//		return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "pipeline.validate")
//	defer span.End()
package tracing
