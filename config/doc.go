// Package config loads plcstream configuration with Viper.
//
// Values come from a config.yml found next to the command (cmd/<name>/),
// an optional .env file, and environment variables, in increasing order of
// precedence.
//
// # Usage
//
//	var cfg AppConfig
//	err := config.LoadConfig("plcdemo", &cfg, config.WithEnvPrefix("PLC"))
//
// With the PLC prefix, PLC_DEVICE_DESCRIPTOR overrides device.descriptor.
package config
