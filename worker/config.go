package worker

import (
	"github.com/sirupsen/logrus"

	"adsift/adswap"
	"adsift/atypes"
	"adsift/bridge"
	"adsift/gql"
	"adsift/hls_relay"
)

const (
	DEFAULT_CONFIG = "default"
	TESTING_CONFIG = "testing"
	DEV_CONFIG     = "development"
)

type Config struct {
	LogLevel      string
	RelayConfig   hls_relay.RelayConfig
	BridgeConfig  bridge.BridgeConfig
	SwapConfig    adswap.SwapConfig
	GqlConfig     gql.GqlConfig
	CaptureConfig CaptureConfig
}

func NewConfig(configPath string) Config {
	logrus.Infof("Starting with config path %+s", configPath)
	config := Config{
		LogLevel:      "debug",
		RelayConfig:   hls_relay.NewRelayConfig(),
		BridgeConfig:  bridge.NewBridgeConfig(),
		SwapConfig:    adswap.NewSwapConfig(),
		GqlConfig:     gql.NewGqlConfig(),
		CaptureConfig: NewCaptureConfig(),
	}

	configInterface, err := atypes.ApiInst.ReadConfig(configPath, config)

	if err != nil {
		logrus.Panicf("Cannot init config %+v", err)
	}

	config = configInterface.(Config)

	switch config.LogLevel {
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	default:
		logrus.Panicf("Bad log level: %s:", config.LogLevel)
	}
	logrus.Infof("Final config: %+v ", config)

	return config
}
