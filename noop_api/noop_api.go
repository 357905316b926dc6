package noop_api

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"io/ioutil"

	"adsift/atypes"
	"adsift/worker"
)

type NoopApi struct {
}

func (na *NoopApi) OnChannelWatch(channelName, playerType string, params map[string]string) (atypes.Channel, error) {
	//check view policy for the channel
	//register watch session [channel_name, player_type]
	//error on forbidden channel
	return &noopChannel{
		watchedChannelName: channelName,
	}, nil
}

func (na *NoopApi) AllowView(channelName, salt string) (isAllowed bool) {
	return true
}

type noopChannel struct {
	watchedChannelName string
}

func (nac *noopChannel) ChannelName() string {
	return nac.watchedChannelName
}

func (nac *noopChannel) NotifyWatching(wi atypes.WatchInfo) {
}

func (nac *noopChannel) AllowSuppression() (isAllowed bool) {
	return true
}

func (nac *noopChannel) Disconnect() {
}

func (na *NoopApi) Stat(isError bool, event string, context string, extra string) {
}

func (na *NoopApi) Serve() error {
	return nil
}

func (na *NoopApi) GetPlayerControl() (atypes.PlayerControl, error) {
	return nil, errors.New("Not implemented")
}

func (na *NoopApi) ReadConfig(configPath string, configInterface interface{}) (interface{}, error) {
	if configPath == worker.DEFAULT_CONFIG {
		return configInterface, nil
	}

	c := configInterface.(worker.Config)

	if configPath == worker.DEV_CONFIG {
		c.LogLevel = "debug"
		c.RelayConfig.HttpPort = 8085
		c.BridgeConfig.BridgePort = 8087
		return c, nil
	}

	configData, err := ioutil.ReadFile(configPath)
	if err != nil {
		return c, errors.Wrapf(err, "Bad config file %+v", configPath)
	}

	logrus.Infof("Config data %+v", string(configData))

	if meta, err := toml.DecodeFile(configPath, &c); err != nil || len(meta.Undecoded()) != 0 {
		if len(meta.Undecoded()) != 0 {
			logrus.Errorf("Cannot apply %v: ", meta.Undecoded())
		}
		return c, errors.Wrap(err, "cannot decode config")
	}
	return c, nil
}
