package bridge

import "time"

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))

	return
}

type BridgeConfig struct {
	BridgeHost string
	BridgePort int
	BridgePath string

	WriteTimeout   duration
	PongTimeout    duration
	PingInterval   duration
	ReconnectDelay duration
	SendQueueSize  int
}

func NewBridgeConfig() BridgeConfig {
	return BridgeConfig{
		BridgeHost:     "",
		BridgePort:     8086,
		BridgePath:     "/bridge",
		WriteTimeout:   duration{10 * time.Second},
		PongTimeout:    duration{60 * time.Second},
		PingInterval:   duration{25 * time.Second},
		ReconnectDelay: duration{2 * time.Second},
		SendQueueSize:  64,
	}
}
