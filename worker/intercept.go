package worker

import (
	"bytes"
	"io/ioutil"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"adsift/atypes"
	"adsift/playlist"
)

const CAPTURE_CONTEXT = "capture"

type CaptureConfig struct {
	VariantPattern string
	MediaPattern   string

	variantRegexp *regexp.Regexp
	mediaRegexp   *regexp.Regexp
}

func (cc *CaptureConfig) Prepare() {
	cc.variantRegexp = regexp.MustCompile(cc.VariantPattern)
	cc.mediaRegexp = regexp.MustCompile(cc.MediaPattern)
}

func NewCaptureConfig() CaptureConfig {
	res := CaptureConfig{
		VariantPattern: `/api/channel/hls/(?P<channel>[0-9a-zA-Z_]+)\.m3u8`,
		MediaPattern:   `/v1/playlist/[^/?]+\.m3u8`,
	}
	res.Prepare()

	return res
}

func (cc *CaptureConfig) MatchVariant(fetchUrl string) (string, bool) {
	match := cc.variantRegexp.FindStringSubmatch(fetchUrl)
	if match == nil {
		return "", false
	}
	for i, name := range cc.variantRegexp.SubexpNames() {
		if i != 0 && name == "channel" {
			return match[i], true
		}
	}
	return "", false
}

func (cc *CaptureConfig) MatchMedia(fetchUrl string) bool {
	return cc.mediaRegexp.MatchString(fetchUrl)
}

// CaptureClient instruments a client with the manifest capture transport.
// Only the first call per engine installs it; later calls hand the client
// back untouched so exactly one client owns manifest traffic.
func (w *Worker) CaptureClient(base *http.Client) (*http.Client, bool) {
	if base == nil {
		base = &http.Client{}
	}
	if !w.captureMap.Lock(CAPTURE_CONTEXT, base) {
		return base, false
	}

	next := base.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	captured := *base
	captured.Transport = &captureTransport{worker: w, next: next}

	return &captured, true
}

type captureTransport struct {
	worker *Worker
	next   http.RoundTripper
}

func (ct *captureTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	response, err := ct.next.RoundTrip(request)
	if err != nil {
		return response, err
	}

	fetchUrl := request.URL.String()
	if channelName, ok := ct.worker.Config.CaptureConfig.MatchVariant(fetchUrl); ok {
		return ct.worker.captureVariant(channelName, request.URL.Query(), response)
	}
	if ct.worker.Config.CaptureConfig.MatchMedia(fetchUrl) {
		return ct.worker.captureMedia(fetchUrl, response)
	}

	return response, nil
}

func (w *Worker) captureVariant(channelName string, query url.Values, response *http.Response) (*http.Response, error) {
	if response.StatusCode != http.StatusOK {
		return response, nil
	}

	raw, err := ioutil.ReadAll(response.Body)
	response.Body.Close()
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read variant playlist for %s", channelName)
	}
	response.Body = ioutil.NopCloser(bytes.NewReader(raw))

	metas := playlist.ExtractVariants(string(raw))
	if len(metas) == 0 {
		logrus.WithField("channel", channelName).Debugf("variant playlist without renditions")
		return response, nil
	}

	stream, firstSight := w.registry.capture(channelName, metas)
	if firstSight {
		logrus.WithField("channel", channelName).Infof("watching channel, %d renditions", len(metas))
		atypes.Stat(false, "capture", "channel_watch", channelName)
		handle, err := atypes.ApiInst.OnChannelWatch(channelName, w.Config.GqlConfig.PlayerType, flattenQuery(query))
		if err != nil {
			logrus.Errorf("channel watch hook failed %+v", err)
		} else if handle != nil {
			w.registry.setHandle(channelName, handle)
		}
	}
	logrus.Debugf("captured %d renditions for %s", len(stream.Variants()), channelName)

	return response, nil
}

func (w *Worker) captureMedia(fetchUrl string, response *http.Response) (*http.Response, error) {
	if response.StatusCode != http.StatusOK {
		return response, nil
	}

	stream, handle, ok := w.registry.ownerOf(fetchUrl)
	if !ok {
		return response, nil
	}
	if handle != nil && !handle.AllowSuppression() {
		return response, nil
	}

	raw, err := ioutil.ReadAll(response.Body)
	response.Body.Close()
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read media playlist for %s", stream.ChannelName)
	}

	meta, _ := stream.MetaForUrl(fetchUrl)
	processed := w.resolver.Process(stream, w.Config.GqlConfig.PlayerType, meta, string(raw))

	response.Body = ioutil.NopCloser(strings.NewReader(processed))
	response.ContentLength = int64(len(processed))
	response.Header.Set("Content-Length", strconv.Itoa(len(processed)))

	return response, nil
}

func flattenQuery(query url.Values) map[string]string {
	result := make(map[string]string, len(query))
	for name := range query {
		result[name] = query.Get(name)
	}
	return result
}
