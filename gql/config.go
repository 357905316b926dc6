package gql

import "time"

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))

	return
}

type GqlConfig struct {
	Endpoint       string
	UsherBase      string
	ClientId       string
	PlayerType     string
	RequestTimeout duration
}

func NewGqlConfig() GqlConfig {
	return GqlConfig{
		Endpoint:       "https://gql.twitch.tv/gql",
		UsherBase:      "https://usher.ttvnw.net",
		ClientId:       DEFAULT_CLIENT_ID,
		PlayerType:     "site",
		RequestTimeout: duration{5 * time.Second},
	}
}
