package integration_tests

import (
	"adsift/adswap"
	"adsift/atypes"
	"adsift/noop_api"
	"adsift/worker"
	"fmt"
	"github.com/gorilla/mux"
	"github.com/mihail812/m3u8"
	"github.com/phayes/freeport"
	"github.com/stretchr/testify/assert"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const TEST_CHANNEL = "streamchan"

// FakePlatform stands in for the remote platform end to end: the gql
// endpoint, usher master playlists, weaver media playlists and one proxy
// relay serving substitute manifests. Ad breaks are toggled per test.
type FakePlatform struct {
	Server *httptest.Server

	m           sync.Mutex
	adActive    bool
	relayBroken bool
	gqlHits     int
	segmentHits int
}

func NewFakePlatform() *FakePlatform {
	fp := &FakePlatform{}

	router := mux.NewRouter()
	router.HandleFunc("/gql", fp.handleGql)
	router.HandleFunc("/api/channel/hls/{channel:[0-9a-zA-Z_]+}.m3u8", fp.handleUsherMaster)
	router.HandleFunc("/v1/playlist/{quality:[0-9]+}.m3u8", fp.handleWeaverMedia)
	router.HandleFunc("/relay/{channel}.m3u8", fp.handleRelayMaster)
	router.HandleFunc("/substitute/{quality:[0-9]+}.m3u8", fp.handleSubstituteMedia)
	router.HandleFunc("/segment/{name}", fp.handleSegment)
	fp.Server = httptest.NewServer(router)

	return fp
}

func (fp *FakePlatform) Url() string {
	return fp.Server.URL
}

func (fp *FakePlatform) Close() {
	fp.Server.Close()
}

func (fp *FakePlatform) SetAdActive(active bool) {
	fp.m.Lock()
	defer fp.m.Unlock()
	fp.adActive = active
}

func (fp *FakePlatform) SetRelayBroken(broken bool) {
	fp.m.Lock()
	defer fp.m.Unlock()
	fp.relayBroken = broken
}

func (fp *FakePlatform) GqlHits() int {
	fp.m.Lock()
	defer fp.m.Unlock()
	return fp.gqlHits
}

func (fp *FakePlatform) SegmentHits() int {
	fp.m.Lock()
	defer fp.m.Unlock()
	return fp.segmentHits
}

func (fp *FakePlatform) handleGql(w http.ResponseWriter, r *http.Request) {
	fp.m.Lock()
	fp.gqlHits++
	fp.m.Unlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"data":{"streamPlaybackAccessToken":{"value":"token-value","signature":"token-sig"}}}`)
}

func (fp *FakePlatform) handleUsherMaster(w http.ResponseWriter, r *http.Request) {
	pl := m3u8.NewMasterPlaylist()
	pl.Append(fp.Url()+"/v1/playlist/720.m3u8", nil, m3u8.VariantParams{
		ProgramId:  1,
		Bandwidth:  2800000,
		Resolution: "1280x720",
	})
	pl.Append(fp.Url()+"/v1/playlist/480.m3u8", nil, m3u8.VariantParams{
		ProgramId:  2,
		Bandwidth:  1200000,
		Resolution: "854x480",
	})
	fmt.Fprint(w, pl.String())
}

func (fp *FakePlatform) handleWeaverMedia(w http.ResponseWriter, r *http.Request) {
	quality := mux.Vars(r)["quality"]
	fp.m.Lock()
	adActive := fp.adActive
	fp.m.Unlock()

	if adActive {
		fmt.Fprint(w, fp.buildStitchedMedia(quality, "PREROLL"))
		return
	}
	fmt.Fprint(w, fp.buildMedia(quality, 4))
}

func (fp *FakePlatform) handleRelayMaster(w http.ResponseWriter, r *http.Request) {
	fp.m.Lock()
	relayBroken := fp.relayBroken
	fp.m.Unlock()
	if relayBroken {
		http.Error(w, "relay down", http.StatusServiceUnavailable)
		return
	}

	pl := m3u8.NewMasterPlaylist()
	pl.Append(fp.Url()+"/substitute/480.m3u8", nil, m3u8.VariantParams{
		ProgramId:  1,
		Bandwidth:  1200000,
		Resolution: "854x480",
	})
	fmt.Fprint(w, pl.String())
}

func (fp *FakePlatform) handleSubstituteMedia(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, fp.buildMedia("substitute-"+mux.Vars(r)["quality"], 4))
}

func (fp *FakePlatform) handleSegment(w http.ResponseWriter, r *http.Request) {
	fp.m.Lock()
	fp.segmentHits++
	fp.m.Unlock()
	w.Write([]byte("ts"))
}

func (fp *FakePlatform) buildMedia(prefix string, count int) string {
	pl, _ := m3u8.NewMediaPlaylist(0, uint(count))
	for i := 0; i < count; i++ {
		pl.Append(fmt.Sprintf("%s/segment/%s-%d.ts", fp.Url(), prefix, i), 2.0, "")
	}
	return pl.String()
}

// buildStitchedMedia marks the first two segments as a stitched ad pod the
// way the platform does, a date-range tag right before the segment run.
func (fp *FakePlatform) buildStitchedMedia(quality, rollType string) string {
	body := fp.buildMedia(quality+"-ad", 2)
	daterange := fmt.Sprintf(`#EXT-X-DATERANGE:ID="stitched-ad-e2e",CLASS="twitch-stitched-ad",START-DATE="2026-08-22T00:00:00.000Z",DURATION=30.000,X-TV-TWITCH-AD-ROLL-TYPE="%s",X-TV-TWITCH-AD-POD-LENGTH="2",X-TV-TWITCH-AD-RAD-TOKEN="rad-e2e"`, rollType)

	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines)+1)
	injected := false
	for _, line := range lines {
		if !injected && strings.HasPrefix(line, "#EXTINF") {
			out = append(out, daterange)
			injected = true
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

type Wrapper struct {
	W        *worker.Worker
	C        worker.Config
	Platform *FakePlatform
}

func NewWrapper(t *testing.T) *Wrapper {
	atypes.ApiInst = &noop_api.NoopApi{}

	platform := NewFakePlatform()
	t.Cleanup(platform.Close)

	var err error
	c := worker.NewConfig(worker.DEFAULT_CONFIG)
	c.RelayConfig.HttpPort, err = freeport.GetFreePort()
	assert.NoError(t, err)
	t.Log(c.RelayConfig.HttpPort)

	c.BridgeConfig.BridgePort, err = freeport.GetFreePort()
	assert.NoError(t, err)
	t.Log(c.BridgeConfig.BridgePort)

	c.GqlConfig.Endpoint = platform.Url() + "/gql"
	c.GqlConfig.UsherBase = platform.Url()
	c.SwapConfig.Strategies = []string{adswap.STRATEGY_PROXY}
	c.SwapConfig.Relays = []adswap.ProxyRelay{{Url: platform.Url() + "/relay", Donate: true}}

	w, err := worker.NewWorker(c)
	assert.NoError(t, err)
	return &Wrapper{
		W:        w,
		C:        c,
		Platform: platform,
	}
}

func BuildVariantUrl(w *Wrapper, channelName string) string {
	out := fmt.Sprintf("http://localhost:%d/hls/%s.m3u8", w.W.Config.RelayConfig.HttpPort, channelName)
	return out
}

func BuildLocalUrl(w *Wrapper, localPath string) string {
	out := fmt.Sprintf("http://localhost:%d%s", w.W.Config.RelayConfig.HttpPort, localPath)
	return out
}

func BuildBridgeUrl(w *Wrapper) string {
	out := fmt.Sprintf("ws://localhost:%d%s", w.W.Config.BridgeConfig.BridgePort, w.W.Config.BridgeConfig.BridgePath)
	return out
}
