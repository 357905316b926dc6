package atypes

import (
	"fmt"
	"time"
)

var (
	ApiInst Api
	Recover = true
)

type Api interface {
	OnChannelWatch(channelName, playerType string, params map[string]string) (Channel, error)
	AllowView(channelName, salt string) (isAllowed bool)
	Stat(isError bool, event string, context string, extra string)
	ReadConfig(configPath string, configInterface interface{}) (interface{}, error)
	GetPlayerControl() (PlayerControl, error)
	Serve() error
}

type Channel interface {
	ChannelName() string
	NotifyWatching(WatchInfo)
	AllowSuppression() (isAllowed bool)
	Disconnect()
}

type PlayerControl interface {
	Pause() error
	Play() error
	GetQuality() (string, error)
	SetQuality(quality string) error
	SetAutoQuality(enabled bool) error
	GetLiveLatency() (time.Duration, error)
}

func TimeToStat(dt time.Duration) string {
	ms := 100 * int64(dt/(time.Millisecond*100))
	return fmt.Sprintf("%d", ms)
}

func Stat(isError bool, event string, context string, extra string) {
	ApiInst.Stat(isError, event, context, extra)
}
