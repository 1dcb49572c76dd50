// Command plcsim serves a simulated PLC over Modbus TCP so that plcdemo
// can run without hardware.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kbukum/plcstream/bootstrap"
	"github.com/kbukum/plcstream/config"
	"github.com/kbukum/plcstream/logger"
	"github.com/kbukum/plcstream/simulator"
	"github.com/kbukum/plcstream/validation"
	"github.com/kbukum/plcstream/version"
)

// AppConfig is the plcsim configuration.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Simulator simulator.Config `yaml:"simulator" mapstructure:"simulator"`
}

// ApplyDefaults fills every section.
func (c *AppConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "plcsim"
	}
	if c.Version == "" {
		c.Version = version.Get().Short()
	}
	c.ServiceConfig.ApplyDefaults()
	c.Simulator.ApplyDefaults()
}

// Validate checks every section.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	return validation.New().
		Merge("simulator", validation.Validate(&c.Simulator)).
		Validate()
}

func main() {
	configFile := flag.String("config", "", "path to config.yml (searched for when empty)")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("plcsim", version.Get())
		return
	}

	var cfg AppConfig
	if err := config.LoadConfig("plcsim", &cfg,
		config.WithConfigFile(*configFile),
		config.WithEnvPrefix("PLCSIM"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "plcsim: %v\n", err)
		os.Exit(1)
	}

	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "plcsim: %v\n", err)
		os.Exit(1)
	}
	sim := simulator.New(cfg.Simulator, app.Logger.WithComponent("simulator"))
	if err := app.RegisterComponent(sim); err != nil {
		app.Logger.Fatal("Cannot register simulator", logger.ErrorFields("register", err))
	}
	if err := app.Run(context.Background()); err != nil {
		app.Logger.Error("plcsim stopped with an error", logger.ErrorFields("run", err))
		os.Exit(1)
	}
}
