// Command plcdemo polls a Modbus device and runs the four demo
// pipelines: coil read, holding register read, range filter and
// balanced parallel decode.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kbukum/plcstream/bootstrap"
	"github.com/kbukum/plcstream/config"
	"github.com/kbukum/plcstream/decode"
	"github.com/kbukum/plcstream/device"
	"github.com/kbukum/plcstream/logger"
	"github.com/kbukum/plcstream/provider"
	"github.com/kbukum/plcstream/scenario"
	"github.com/kbukum/plcstream/sink"
	"github.com/kbukum/plcstream/version"
)

func main() {
	configFile := flag.String("config", "", "path to config.yml (searched for when empty)")
	envFile := flag.String("env", "", "path to a .env file (searched for when empty)")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("plcdemo", version.Get())
		return
	}

	cfg := defaultConfig()
	if err := config.LoadConfig("plcdemo", cfg,
		config.WithConfigFile(*configFile),
		config.WithEnvFile(*envFile),
		config.WithEnvPrefix("PLC"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "plcdemo: %v\n", err)
		os.Exit(1)
	}

	if err := run(context.Background(), cfg); err != nil {
		logger.Error("plcdemo stopped with an error", logger.ErrorFields("run", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *AppConfig) error {
	app, err := bootstrap.NewApp(cfg, bootstrap.WithTelemetry(cfg.Observability))
	if err != nil {
		return err
	}
	metrics := app.Metrics

	client, err := device.NewModbusClient(cfg.Device, app.Logger.WithComponent("device"))
	if err != nil {
		return err
	}
	if err := app.RegisterComponent(client); err != nil {
		return err
	}
	reader := device.NewReader(client.Descriptor().String(), client, cfg.Device.Resilience, app.Logger.WithComponent("device"))

	readings, err := readingSink(app, cfg.Sink)
	if err != nil {
		return err
	}
	counted := sink.NewCounting(readings, cfg.Sink.Kind, metrics)
	app.OnStop(func(context.Context) error {
		app.Logger.Info("Sink totals", map[string]interface{}{
			"delivered": counted.Delivered(),
			"failed":    counted.Failed(),
		})
		return nil
	})

	decoder, err := decode.New(cfg.Decode.Mode)
	if err != nil {
		return err
	}

	if items := cfg.DecodeWarnings(); len(items) > 0 {
		app.Logger.Warn("truncate15 reads register bytes as hex text; most records will be dropped, consider decode.mode register",
			map[string]interface{}{"items": items})
	}

	runner, err := scenario.New(cfg.Scenarios, reader, decoder,
		scenario.WithReadingSink(counted),
		scenario.WithCoilSink(sink.NewCounting[[]bool](sink.NewConsole[[]bool](nil), "coil", metrics)),
		scenario.WithLogger(app.Logger.WithComponent("scenario")),
		scenario.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}
	app.Logger.Info("Scenarios enabled", map[string]interface{}{
		"scenarios":        runner.Enabled(),
		logger.FieldDevice: cfg.Device.Descriptor,
		"decode_mode":      string(decoder.Mode()),
	})

	return app.RunTask(ctx, runner.Run)
}

// readingSink builds the configured sink. An MQTT sink is registered as a
// component so the app connects and disconnects it.
func readingSink(app *bootstrap.App[*AppConfig], cfg SinkConfig) (sink.Sink[decode.Reading], error) {
	var out sink.Sink[decode.Reading]
	switch cfg.Kind {
	case SinkLog:
		out = sink.NewLog[decode.Reading](app.Logger.WithComponent("sink"), "Reading")
	case SinkMQTT:
		m := sink.NewMQTT(cfg.MQTT, func(r decode.Reading) string { return r.Item }, app.Logger.WithComponent("mqtt"))
		if err := app.RegisterComponent(m); err != nil {
			return nil, err
		}
		out = provider.WithSinkResilience[decode.Reading](m, cfg.Resilience)
	default:
		return sink.NewConsole[decode.Reading](nil), nil
	}
	if cfg.Echo {
		out = sink.Fanout(out, sink.NewConsole[decode.Reading](nil))
	}
	return out, nil
}
