package config

import (
	"github.com/spf13/viper"

	"github.com/sliceflow/pipeline/engine"
)

func getEngineConfig(v *viper.Viper) *engine.Config {
	return &engine.Config{
		URL:     v.GetString("engine.url"),
		Timeout: v.GetDuration("engine.timeout"),
	}
}
