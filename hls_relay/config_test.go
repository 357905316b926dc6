package hls_relay

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelay_VariantPlaylistPattern(t *testing.T) {
	r := mux.NewRouter()
	c := NewRelayConfig()
	rr := httptest.NewRecorder()
	called := false
	h := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "#EXTM3U")
		called = true
		v := mux.Vars(r)
		require.Equal(t, "somechannel", v["channel"])
		require.Equal(t, "", v["view_salt"])
	}
	r.Path(c.HandleVariantPlaylistUrl()).Queries("vid", "{view_salt}").Name("VariantPlaylistVid").HandlerFunc(h)
	r.HandleFunc(c.HandleVariantPlaylistUrl(), h).Name("VariantPlaylist")

	req, _ := http.NewRequest("GET", "/hls/somechannel.m3u8", nil)
	r.ServeHTTP(rr, req)
	logrus.Debug(rr)
	assert.True(t, called)
}

func TestRelay_VariantPlaylistPatternVidQuality(t *testing.T) {
	r := mux.NewRouter()
	c := NewRelayConfig()
	rr := httptest.NewRecorder()
	called := false
	h := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "#EXTM3U")
		called = true
		v := mux.Vars(r)
		require.Equal(t, "10", v["view_salt"])
		require.Equal(t, "480", v["quality_override"])
	}
	r.Path(c.HandleVariantPlaylistUrl()).Queries("vid", "{view_salt}", "quality", "{quality_override}").Name("VariantPlaylistVidQuality").HandlerFunc(h)
	r.Path(c.HandleVariantPlaylistUrl()).Queries("quality", "{quality_override}").Name("VariantPlaylistQuality").HandlerFunc(h)
	r.Path(c.HandleVariantPlaylistUrl()).Queries("vid", "{view_salt}").Name("VariantPlaylistVid").HandlerFunc(h)
	r.HandleFunc(c.HandleVariantPlaylistUrl(), h).Name("VariantPlaylist")

	req, _ := http.NewRequest("GET", "/hls/somechannel.m3u8?vid=10&quality=480", nil)
	r.ServeHTTP(rr, req)
	logrus.Debug(rr)
	assert.True(t, called)
}

func TestRelay_MediaPlaylistPattern(t *testing.T) {
	r := mux.NewRouter()
	c := NewRelayConfig()
	rr := httptest.NewRecorder()
	called := false
	h := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		called = true
		v := mux.Vars(r)
		require.Equal(t, "somechannel", v["channel"])
		require.Equal(t, "720p60", v["quality"])
	}
	r.HandleFunc(c.HandleMediaPlaylistUrl(), h).Name("MediaPlaylist")

	req, _ := http.NewRequest("GET", "/weaver/somechannel/720p60.m3u8", nil)
	r.ServeHTTP(rr, req)
	assert.True(t, called)
}

func TestRelay_RejectsBadChannel(t *testing.T) {
	r := mux.NewRouter()
	c := NewRelayConfig()
	rr := httptest.NewRecorder()
	called := false
	h := func(w http.ResponseWriter, r *http.Request) {
		called = true
	}
	r.HandleFunc(c.HandleVariantPlaylistUrl(), h).Name("VariantPlaylist")

	req, _ := http.NewRequest("GET", "/hls/bad$channel.m3u8", nil)
	r.ServeHTTP(rr, req)
	assert.False(t, called)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRelayConfig_BuildMediaPath(t *testing.T) {
	c := NewRelayConfig()
	assert.Equal(t, "/weaver/somechannel/720p60.m3u8", c.BuildMediaPath("somechannel", "720p60"))
	assert.Equal(t, "/weaver/somechannel/audio_only.m3u8", c.BuildMediaPath("somechannel", "audio_only"))
}
