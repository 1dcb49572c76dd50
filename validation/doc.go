// Package validation checks plcstream configuration.
//
// Struct tag validation uses go-playground/validator and reports fields by
// their mapstructure key, so messages match the names used in config.yml.
// Cross-field rules that tags cannot express use the programmatic Validator.
//
// # Struct Tag Validation
//
//	type FanoutConfig struct {
//	    Channels  int `mapstructure:"channels" validate:"gte=1"`
//	    QueueSize int `mapstructure:"queue_size" validate:"gte=1"`
//	}
//	err := validation.Validate(cfg)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Custom(cfg.Interval > 0, "interval", "must be positive")
//	err := v.Validate()
package validation
