package adswap

import (
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"adsift/atypes"
	"adsift/gql"
	"adsift/playlist"
)

const (
	STRATEGY_PROXY = "proxy"
	STRATEGY_EMBED = "embed"
)

type Fetcher struct {
	config SwapConfig
	gql    *gql.Client
	http   *http.Client
}

func NewFetcher(config SwapConfig, gqlClient *gql.Client) *Fetcher {
	return &Fetcher{
		config: config,
		gql:    gqlClient,
		http:   &http.Client{Timeout: config.FetchTimeout.Duration},
	}
}

func (f *Fetcher) Fetch(strategy, channelName string, meta atypes.VariantMeta) (string, atypes.VariantMeta, error) {
	switch strategy {
	case STRATEGY_PROXY:
		return f.fetchViaRelays(channelName, meta)
	case STRATEGY_EMBED:
		return f.fetchViaAccessToken(channelName, meta)
	default:
		return "", atypes.VariantMeta{}, errors.Errorf("unknown strategy %s", strategy)
	}
}

func (f *Fetcher) fetchViaRelays(channelName string, meta atypes.VariantMeta) (string, atypes.VariantMeta, error) {
	if len(f.config.Relays) == 0 {
		return "", atypes.VariantMeta{}, errors.New("no relays configured")
	}
	for _, relay := range f.config.Relays {
		headers := http.Header{}
		if relay.Donate {
			headers.Set("X-Donate-To", channelName)
		}
		masterUrl := fmt.Sprintf("%s/%s.m3u8", strings.TrimRight(relay.Url, "/"), url.PathEscape(channelName))
		master, err := f.httpGet(masterUrl, headers)
		if err != nil {
			logrus.WithField("channel", channelName).Debugf("relay %s failed %+v", relay.Url, err)
			continue
		}
		text, picked, err := f.fetchMediaFromMaster(master, channelName, meta)
		if err != nil {
			logrus.WithField("channel", channelName).Debugf("relay %s master unusable %+v", relay.Url, err)
			continue
		}
		return text, picked, nil
	}
	return "", atypes.VariantMeta{}, errors.Errorf("all relays failed for %s", channelName)
}

func (f *Fetcher) fetchViaAccessToken(channelName string, meta atypes.VariantMeta) (string, atypes.VariantMeta, error) {
	token, err := f.gql.PlaybackAccessToken(channelName, f.config.EmbedPlayerType)
	if err != nil {
		return "", atypes.VariantMeta{}, errors.Wrap(err, "cannot obtain access token")
	}
	master, err := f.httpGet(f.gql.BuildUsherUrl(channelName, token), nil)
	if err != nil {
		return "", atypes.VariantMeta{}, errors.Wrap(err, "cannot fetch master playlist")
	}
	return f.fetchMediaFromMaster(master, channelName, meta)
}

func (f *Fetcher) fetchMediaFromMaster(masterText, channelName string, meta atypes.VariantMeta) (string, atypes.VariantMeta, error) {
	ladder := playlist.NewLadder(playlist.ExtractVariants(masterText))
	var picked atypes.VariantMeta
	ok := false
	if f.config.QualityOverride != "" {
		if height, err := playlist.ParseQualityHeight(f.config.QualityOverride); err == nil {
			picked, ok = ladder.ByHeight(height)
		}
	}
	if !ok {
		picked, ok = ladder.Closest(meta.Resolution, meta.FrameRate)
	}
	if !ok {
		return "", atypes.VariantMeta{}, errors.Errorf("no variants in substitute master for %s", channelName)
	}
	text, err := f.httpGet(picked.Url, nil)
	if err != nil {
		return "", atypes.VariantMeta{}, errors.Wrapf(err, "cannot fetch substitute media playlist %s", picked.Url)
	}
	return text, picked, nil
}

// Consume requests a segment once so upstream accounting registers the view.
func (f *Fetcher) Consume(fetchUrl string) error {
	_, err := f.httpGet(fetchUrl, nil)

	return err
}

func (f *Fetcher) httpGet(fetchUrl string, headers http.Header) (string, error) {
	request, err := http.NewRequest("GET", fetchUrl, nil)
	if err != nil {
		return "", errors.Wrapf(err, "cannot build request %s", fetchUrl)
	}
	for key, values := range headers {
		for _, value := range values {
			request.Header.Add(key, value)
		}
	}
	response, err := f.http.Do(request)
	if err != nil {
		return "", errors.Wrapf(err, "fetch failed %s", fetchUrl)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return "", errors.Errorf("fetch %s returned %d", fetchUrl, response.StatusCode)
	}
	data, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return "", errors.Wrap(err, "cannot read response body")
	}
	return string(data), nil
}
