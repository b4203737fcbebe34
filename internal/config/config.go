package config

import (
	_ "embed"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"sigs.k8s.io/yaml"
)

//go:embed default/config.yaml
var defaultConfigData []byte

// ConfigurationName is the file looked up when Load is given a directory.
const ConfigurationName = "config.yaml"

type Configuration struct {
	Prompt          string `json:"prompt"`
	EmitPrompt      bool   `json:"emit_prompt"`
	Verbose         bool   `json:"verbose"`
	Color           bool   `json:"color"`
	MaxJobs         int    `json:"max_jobs" validate:"gte=1,lte=1024"`
	LogLevel        string `json:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat       string `json:"log_format" validate:"oneof=text json"`
	TerminalHandoff bool   `json:"terminal_handoff"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

// Default returns the built-in configuration.
func Default() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
