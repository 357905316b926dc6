package hls_relay

import "fmt"

type VariantPlaylistRequest struct {
	Channel         string `mapstructure:"channel"`
	ViewSalt        string `mapstructure:"view_salt"`
	QualityOverride string `mapstructure:"quality_override"`
}

type MediaPlaylistRequest struct {
	Channel  string `mapstructure:"channel"`
	Quality  string `mapstructure:"quality"`
	ViewSalt string `mapstructure:"view_salt"`
}

func (r *MediaPlaylistRequest) Key() string {
	return fmt.Sprintf("%s/%s", r.Channel, r.Quality)
}

type StatusRequest struct {
	Channel string `mapstructure:"channel"`
}
