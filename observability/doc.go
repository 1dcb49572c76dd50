// Package observability wires OpenTelemetry tracing and metrics into the
// poll pipeline.
//
// Every poll cycle runs inside a span named "plc.poll" carrying the item,
// address and cycle sequence, and PollMetrics records cycle outcomes,
// filter decisions and fan-out queue pressure. When telemetry is disabled
// the global no-op providers stay installed and instrumentation is free.
//
//	shutdown, err := observability.Setup(ctx, cfg.Telemetry, "plcdemo", version, env)
//	defer shutdown(context.Background())
//
//	metrics, err := observability.NewPollMetrics(observability.Meter("plcstream"))
//	ctx, span := observability.StartCycleSpan(ctx, "test1", "holding:0[3]", seq)
//	defer span.End()
package observability
