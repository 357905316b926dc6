package adswap

import "time"

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))

	return
}

type ProxyRelay struct {
	Url    string
	Donate bool
}

type SwapConfig struct {
	AdSignifier      string
	MidrollSignifier string

	Strategies      []string
	Relays          []ProxyRelay
	EmbedPlayerType string
	QualityOverride string

	CacheTtl     duration
	MaxCacheSize int64

	TaskQueueSize int
	FetchTimeout  duration
}

func NewSwapConfig() SwapConfig {
	return SwapConfig{
		AdSignifier:      "stitched",
		MidrollSignifier: `"MIDROLL"`,
		Strategies:       []string{STRATEGY_PROXY, STRATEGY_EMBED},
		Relays:           nil,
		EmbedPlayerType:  "embed",
		QualityOverride:  "",
		CacheTtl:         duration{60 * time.Second},
		MaxCacheSize:     500,
		TaskQueueSize:    64,
		FetchTimeout:     duration{5 * time.Second},
	}
}
