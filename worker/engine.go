package worker

import (
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"adsift/adswap"
	"adsift/atypes"
	"adsift/bridge"
	"adsift/gql"
	"adsift/hls_relay"
	"adsift/playlist"
	"adsift/wsync"
)

type Worker struct {
	relay        *hls_relay.Relay
	bridgeServer *bridge.BridgeServer
	session      *atypes.Session
	gqlClient    *gql.Client
	resolver     *adswap.Resolver
	registry     *streamRegistry
	captureMap   *wsync.CheckedMap
	httpClient   *http.Client
	Config       Config
}

func NewWorker(config Config) (*Worker, error) {
	worker := Worker{
		Config:     config,
		registry:   newStreamRegistry(),
		captureMap: wsync.NewCheckedMap(),
	}
	worker.Config.CaptureConfig.Prepare()

	worker.session = atypes.NewSession(config.GqlConfig.ClientId)
	worker.gqlClient = gql.NewClient(config.GqlConfig, worker.session)
	fetcher := adswap.NewFetcher(config.SwapConfig, worker.gqlClient)
	worker.resolver = adswap.NewResolver(config.SwapConfig, worker.session, fetcher)

	relay, err := hls_relay.NewRelay(config.RelayConfig)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create hls relay")
	}

	relay.HandleVariantPlaylist = worker.handleVariantPlaylist
	relay.HandleMediaPlaylist = worker.handleMediaPlaylist
	relay.HandleStatus = worker.handleStatus

	worker.relay = relay

	bridgeServer := bridge.NewBridgeServer(config.BridgeConfig)
	bridgeServer.HandleMessage = worker.handleBridgeMessage
	worker.bridgeServer = bridgeServer
	relay.HandleBridgeHealth = bridgeServer.HealthCheck

	worker.resolver.Notify = bridgeServer.Send
	worker.resolver.DeclarePods = worker.declarePods

	httpClient, _ := worker.CaptureClient(&http.Client{Timeout: config.SwapConfig.FetchTimeout.Duration})
	worker.httpClient = httpClient

	return &worker, nil
}

func (w *Worker) Listen() error {
	err := w.bridgeServer.Listen()
	if err != nil {
		return errors.Wrap(err, "cannot listen bridge")
	}

	err = w.relay.Listen()
	if err != nil {
		return errors.Wrap(err, "cannot listen hls relay")
	}

	return nil
}

func (w *Worker) Serve() error {
	go func() {
		err := w.bridgeServer.Serve()
		if err != nil {
			logrus.Panicf("cannot serve %+v", err)
		}
	}()

	go func() {
		err := w.relay.Serve()
		if err != nil {
			logrus.Panicf("cannot serve %+v", err)
		}
	}()

	return nil
}

func (w *Worker) Stop() error {
	err := w.bridgeServer.Stop()
	if err != nil {
		logrus.Errorf("cannot stop %+v", err)
	}
	w.resolver.Close()
	w.registry.disconnectAll()
	err = w.relay.Stop()
	if err != nil {
		logrus.Errorf("cannot stop %+v", err)
	}
	return nil
}

func (w *Worker) handleVariantPlaylist(r *hls_relay.VariantPlaylistRequest) (hls_relay.HttpResponse, error) {
	if !atypes.ApiInst.AllowView(r.Channel, r.ViewSalt) {
		return hls_relay.HttpResponse{HttpStatus: http.StatusForbidden}, errors.New("forbiden")
	}

	token, err := w.gqlClient.PlaybackAccessToken(r.Channel, w.Config.GqlConfig.PlayerType)
	if err != nil {
		return hls_relay.HttpResponse{HttpStatus: http.StatusBadGateway}, errors.Wrapf(err, "cannot fetch access token for %s", r.Channel)
	}

	response, err := w.httpClient.Get(w.gqlClient.BuildUsherUrl(r.Channel, token))
	if err != nil {
		return hls_relay.HttpResponse{HttpStatus: http.StatusBadGateway}, errors.Wrapf(err, "cannot fetch variant playlist for %s", r.Channel)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return hls_relay.HttpResponse{HttpStatus: response.StatusCode}, errors.Errorf("upstream status %d for %s", response.StatusCode, r.Channel)
	}

	raw, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return hls_relay.HttpResponse{HttpStatus: http.StatusBadGateway}, errors.Wrapf(err, "cannot read variant playlist for %s", r.Channel)
	}

	localized := w.localizeVariantUris(r.Channel, string(raw), r.QualityOverride)

	return hls_relay.HttpResponse{
		HttpStatus: http.StatusOK,
		Reader:     ioutil.NopCloser(strings.NewReader(localized)),
	}, nil
}

// localizeVariantUris rewrites rendition uris onto the local media routes so
// every later poll flows through the capture transport. Unknown uris and
// renditions without a quality label stay pointed at the upstream.
func (w *Worker) localizeVariantUris(channelName, masterText, qualityOverride string) string {
	stream, _, found := w.registry.lookup(channelName)
	if !found {
		return masterText
	}

	var picked atypes.VariantMeta
	havePicked := false
	if qualityOverride != "" {
		height, err := playlist.ParseQualityHeight(qualityOverride)
		if err != nil {
			logrus.WithField("channel", channelName).Debugf("bad quality override %s: %+v", qualityOverride, err)
		} else {
			picked, havePicked = playlist.NewLadder(stream.Variants()).ByHeight(height)
		}
	}

	lines := make([]string, 0, 32)
	pendingTag := ""
	for _, entry := range playlist.Parse(masterText) {
		switch {
		case entry.Kind == playlist.TAG && entry.Name == "EXT-X-STREAM-INF":
			if pendingTag != "" {
				lines = append(lines, pendingTag)
			}
			pendingTag = entry.Raw
		case entry.Kind == playlist.URI && pendingTag != "":
			meta, known := stream.MetaForUrl(entry.Raw)
			label := meta.QualityLabel()
			switch {
			case !known || label == "":
				lines = append(lines, pendingTag, entry.Raw)
			case havePicked && meta.Url != picked.Url:
				// filtered out by the override
			default:
				lines = append(lines, pendingTag, w.Config.RelayConfig.BuildMediaPath(channelName, label))
			}
			pendingTag = ""
		default:
			if pendingTag != "" {
				lines = append(lines, pendingTag)
				pendingTag = ""
			}
			lines = append(lines, entry.Raw)
		}
	}
	if pendingTag != "" {
		lines = append(lines, pendingTag)
	}

	return strings.Join(lines, "\n") + "\n"
}

func (w *Worker) handleMediaPlaylist(r *hls_relay.MediaPlaylistRequest) (hls_relay.HttpResponse, error) {
	if !atypes.ApiInst.AllowView(r.Channel, r.ViewSalt) {
		return hls_relay.HttpResponse{HttpStatus: http.StatusForbidden}, errors.New("forbiden")
	}

	stream, handle, found := w.registry.lookup(r.Channel)
	if !found {
		return hls_relay.HttpResponse{HttpStatus: http.StatusNotFound}, errors.Errorf("channel %s was never watched", r.Channel)
	}

	meta, err := w.resolveQuality(stream, r.Quality)
	if err != nil {
		return hls_relay.HttpResponse{HttpStatus: http.StatusNotFound}, err
	}

	response, err := w.httpClient.Get(meta.Url)
	if err != nil {
		return hls_relay.HttpResponse{HttpStatus: http.StatusBadGateway}, errors.Wrapf(err, "cannot fetch media playlist for %s", r.Key())
	}
	if response.StatusCode != http.StatusOK {
		response.Body.Close()
		return hls_relay.HttpResponse{HttpStatus: response.StatusCode}, errors.Errorf("upstream status %d for %s", response.StatusCode, r.Key())
	}

	if handle != nil {
		handle.NotifyWatching(atypes.WatchInfo{
			Quality:    r.Quality,
			Resolution: meta.Resolution,
			StartedAt:  time.Now(),
		})
	}

	return hls_relay.HttpResponse{
		HttpStatus: http.StatusOK,
		Reader:     response.Body,
	}, nil
}

func (w *Worker) resolveQuality(stream *atypes.StreamInfo, quality string) (atypes.VariantMeta, error) {
	if meta, found := stream.MetaForQuality(quality); found {
		return meta, nil
	}
	for _, meta := range stream.Variants() {
		if meta.QualityLabel() == quality {
			return meta, nil
		}
	}
	return atypes.VariantMeta{}, errors.Errorf("no rendition %s for %s", quality, stream.ChannelName)
}

func (w *Worker) handleStatus(r *hls_relay.StatusRequest) (hls_relay.StatusPage, error) {
	if _, _, found := w.registry.lookup(r.Channel); !found {
		return hls_relay.StatusPage{}, errors.Errorf("channel %s was never watched", r.Channel)
	}

	page := hls_relay.NewStatusPage(r.Channel)
	page.PlayerType = w.Config.GqlConfig.PlayerType
	page.AdActive, page.Substituted = w.resolver.Snapshot(r.Channel, page.PlayerType)
	if meta, age, found := w.resolver.Cache().Peek(r.Channel, page.PlayerType); found {
		page.SubstituteQuality = meta.QualityLabel()
		page.CacheAge = age.Truncate(time.Second).String()
	}

	return page, nil
}

func (w *Worker) handleBridgeMessage(message atypes.Message) {
	if !w.session.ApplyMessage(message) {
		logrus.Debugf("ignoring bridge message %+v", message)
		return
	}
	atypes.Stat(false, "bridge", "applied", string(message.Key))
}
