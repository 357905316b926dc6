package hls_relay

import "strings"

type RelayConfig struct {
	HttpHost string
	HttpPort int

	VariantPrefix string
	MediaPrefix   string
	StatusPrefix  string
	Channel       string
	Quality       string
	Playlist      string
}

func (c *RelayConfig) HandleVariantPlaylistUrl() string {
	return c.VariantPrefix + "/" + c.Channel + c.Playlist
}

func (c *RelayConfig) HandleMediaPlaylistUrl() string {
	return c.MediaPrefix + "/" + c.Channel + "/" + c.Quality + c.Playlist
}

func (c *RelayConfig) HandleStatusUrl() string {
	return c.StatusPrefix + "/" + c.Channel
}

// BuildMediaPath substitutes the route placeholders, producing the local
// path a player should poll for one rendition.
func (c *RelayConfig) BuildMediaPath(channel string, quality string) string {
	res := strings.Replace(c.HandleMediaPlaylistUrl(), c.Channel, channel, -1)
	return strings.Replace(res, c.Quality, quality, -1)
}

func NewRelayConfig() RelayConfig {
	c := RelayConfig{
		HttpHost: "",
		HttpPort: 8080,

		VariantPrefix: "/hls",
		MediaPrefix:   "/weaver",
		StatusPrefix:  "/status",
		Channel:       "{channel:[0-9a-zA-Z_]+}",
		Quality:       "{quality:[0-9a-zA-Z_-]+}",
		Playlist:      ".m3u8",
	}
	return c
}
