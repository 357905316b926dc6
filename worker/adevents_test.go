package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adsift/gql"
	"adsift/playlist"
)

const stitchedPodText = "#EXTM3U\n" +
	"#EXT-X-DATERANGE:ID=\"stitched-ad-1\",CLASS=\"twitch-stitched-ad\",X-TV-TWITCH-AD-ROLL-TYPE=\"PREROLL\",X-TV-TWITCH-AD-POD-LENGTH=\"2\",X-TV-TWITCH-AD-RAD-TOKEN=\"rad1\"\n" +
	"#EXTINF:2.000,\n" +
	"ad1.ts\n"

func TestBuildAdEventsPodLength(t *testing.T) {
	pods := playlist.ScanAdPods(stitchedPodText, "stitched")
	require.Len(t, pods, 1)

	events := BuildAdEvents(pods)
	require.Len(t, events, 3)

	assert.Equal(t, gql.EVENT_AD_IMPRESSION, events[0].EventName)
	assert.Equal(t, 0, events[0].PodPosition)
	assert.Equal(t, gql.EVENT_AD_IMPRESSION, events[1].EventName)
	assert.Equal(t, 1, events[1].PodPosition)
	assert.Equal(t, gql.EVENT_POD_COMPLETE, events[2].EventName)
	assert.Equal(t, 1, events[2].PodPosition)

	for _, event := range events {
		assert.Equal(t, "PREROLL", event.RollType)
		assert.Equal(t, "rad1", event.RadToken)
	}
}

func TestBuildAdEventsDefaultLength(t *testing.T) {
	pods := []playlist.PodInfo{{Attrs: playlist.Attributes{"X-TV-TWITCH-AD-ROLL-TYPE": "MIDROLL"}}}

	events := BuildAdEvents(pods)
	require.Len(t, events, 2)
	assert.Equal(t, gql.EVENT_AD_IMPRESSION, events[0].EventName)
	assert.Equal(t, 0, events[0].PodPosition)
	assert.Equal(t, gql.EVENT_POD_COMPLETE, events[1].EventName)
	assert.Equal(t, "MIDROLL", events[1].RollType)
}

func TestBuildAdEventsEmpty(t *testing.T) {
	assert.Empty(t, BuildAdEvents(nil))
}

func TestDeclarePodsSendsTelemetry(t *testing.T) {
	fu := newFakeUpstream()
	defer fu.server.Close()
	w := newTestWorker(t, fu, newRecordingApi())

	pods := playlist.ScanAdPods(stitchedPodText, "stitched")
	require.Len(t, pods, 1)

	w.declarePods("streamchan", pods)
	w.Stop()

	fu.m.Lock()
	hits := fu.gqlHits
	fu.m.Unlock()
	assert.Equal(t, 3, hits)
}
