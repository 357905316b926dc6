package gql

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adsift/atypes"
)

type nullApi struct{}

func (na *nullApi) OnChannelWatch(channelName, playerType string, params map[string]string) (atypes.Channel, error) {
	return nil, errors.New("unused")
}
func (na *nullApi) AllowView(channelName, salt string) bool { return true }
func (na *nullApi) Stat(isError bool, event string, context string, extra string) {}
func (na *nullApi) ReadConfig(configPath string, configInterface interface{}) (interface{}, error) {
	return configInterface, nil
}
func (na *nullApi) GetPlayerControl() (atypes.PlayerControl, error) {
	return nil, errors.New("unused")
}
func (na *nullApi) Serve() error { return nil }

type capturedRequest struct {
	Body    Request
	Headers http.Header
}

type fakeGqlEndpoint struct {
	server *httptest.Server

	m        sync.Mutex
	requests []capturedRequest
	status   int
}

func newFakeGqlEndpoint() *fakeGqlEndpoint {
	fe := &fakeGqlEndpoint{status: http.StatusOK}
	fe.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body Request
		json.NewDecoder(r.Body).Decode(&body)

		fe.m.Lock()
		fe.requests = append(fe.requests, capturedRequest{Body: body, Headers: r.Header.Clone()})
		status := fe.status
		fe.m.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		io.WriteString(w, `{"data":{"streamPlaybackAccessToken":{"value":"{\"channel\":\"foo\"}","signature":"deadbeef"}}}`)
	}))
	return fe
}

func (fe *fakeGqlEndpoint) captured() []capturedRequest {
	fe.m.Lock()
	defer fe.m.Unlock()
	return append([]capturedRequest{}, fe.requests...)
}

func newTestClient(fe *fakeGqlEndpoint, session *atypes.Session) *Client {
	atypes.ApiInst = &nullApi{}
	config := NewGqlConfig()
	config.Endpoint = fe.server.URL
	return NewClient(config, session)
}

func TestPlaybackAccessToken(t *testing.T) {
	fe := newFakeGqlEndpoint()
	defer fe.server.Close()
	session := atypes.NewSession("")
	client := newTestClient(fe, session)

	token, err := client.PlaybackAccessToken("foo", "site")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", token.Signature)
	assert.Contains(t, token.Value, "foo")

	captured := fe.captured()
	require.Len(t, captured, 1)
	assert.Equal(t, ACCESS_TOKEN_OPERATION, captured[0].Body.OperationName)
	assert.Equal(t, "foo", captured[0].Body.Variables["login"])
	assert.Equal(t, true, captured[0].Body.Variables["isLive"])
	assert.Equal(t, DEFAULT_CLIENT_ID, captured[0].Headers.Get("Client-ID"))
	assert.NotEmpty(t, captured[0].Headers.Get("X-Device-Id"))
	assert.Empty(t, captured[0].Headers.Get("Client-Integrity"))
	assert.Empty(t, captured[0].Headers.Get("Authorization"))
}

func TestIdentityHeadersWhenPresent(t *testing.T) {
	fe := newFakeGqlEndpoint()
	defer fe.server.Close()
	session := atypes.NewSession("customclient")
	session.ApplyMessage(atypes.Message{Key: atypes.UPDATE_CLIENT_INTEGRITY_HEADER, Value: "v4.integrity"})
	session.ApplyMessage(atypes.Message{Key: atypes.UPDATE_AUTHORIZATION_HEADER, Value: "OAuth token123"})
	session.ApplyMessage(atypes.Message{Key: atypes.UPDATE_CLIENT_VERSION, Value: "1.2.3"})
	session.ApplyMessage(atypes.Message{Key: atypes.UPDATE_CLIENT_SESSION, Value: "sess42"})
	client := newTestClient(fe, session)

	_, err := client.PlaybackAccessToken("foo", "site")
	require.NoError(t, err)

	captured := fe.captured()
	require.Len(t, captured, 1)
	assert.Equal(t, "customclient", captured[0].Headers.Get("Client-ID"))
	assert.Equal(t, "v4.integrity", captured[0].Headers.Get("Client-Integrity"))
	assert.Equal(t, "OAuth token123", captured[0].Headers.Get("Authorization"))
	assert.Equal(t, "1.2.3", captured[0].Headers.Get("Client-Version"))
	assert.Equal(t, "sess42", captured[0].Headers.Get("Client-Session-Id"))
}

func TestEnsureDeviceId(t *testing.T) {
	fe := newFakeGqlEndpoint()
	defer fe.server.Close()
	session := atypes.NewSession("")
	client := newTestClient(fe, session)

	id := client.EnsureDeviceId()
	require.Regexp(t, regexp.MustCompile("^[a-z0-9]{32}$"), id)
	assert.Equal(t, id, client.EnsureDeviceId())
	assert.Equal(t, id, session.DeviceId())

	session.ApplyMessage(atypes.Message{Key: atypes.UPDATE_DEVICE_ID, Value: "other-device"})
	assert.Equal(t, id, session.DeviceId())
}

func TestEnsureDeviceIdKeepsObserved(t *testing.T) {
	fe := newFakeGqlEndpoint()
	defer fe.server.Close()
	session := atypes.NewSession("")
	session.ApplyMessage(atypes.Message{Key: atypes.UPDATE_DEVICE_ID, Value: "observed-device-id"})
	client := newTestClient(fe, session)

	assert.Equal(t, "observed-device-id", client.EnsureDeviceId())
}

func TestBuildUsherUrl(t *testing.T) {
	session := atypes.NewSession("")
	client := NewClient(NewGqlConfig(), session)

	usherUrl := client.BuildUsherUrl("foo", AccessToken{Value: `{"channel":"foo"}`, Signature: "deadbeef"})
	assert.True(t, strings.HasPrefix(usherUrl, "https://usher.ttvnw.net/api/channel/hls/foo.m3u8?"))
	assert.Contains(t, usherUrl, "sig=deadbeef")
	assert.Contains(t, usherUrl, "token=")
	assert.Contains(t, usherUrl, "fast_bread=true")
}

func TestSendAdEventsOnePerPosition(t *testing.T) {
	fe := newFakeGqlEndpoint()
	defer fe.server.Close()
	client := newTestClient(fe, atypes.NewSession(""))

	client.SendAdEvents([]AdEvent{
		{EventName: EVENT_AD_IMPRESSION, RollType: "PREROLL", PodPosition: 0, RadToken: "rad1"},
		{EventName: EVENT_AD_IMPRESSION, RollType: "PREROLL", PodPosition: 1, RadToken: "rad1"},
	})

	captured := fe.captured()
	require.Len(t, captured, 2)
	for _, req := range captured {
		assert.Equal(t, RECORD_AD_EVENT_OPERATION, req.Body.OperationName)
		require.NotNil(t, req.Body.Extensions)
		assert.Equal(t, RECORD_AD_EVENT_HASH, req.Body.Extensions.PersistedQuery.Sha256Hash)
		input := req.Body.Variables["input"].(map[string]interface{})
		assert.Equal(t, EVENT_AD_IMPRESSION, input["eventName"])
		assert.Contains(t, input["eventPayload"], `"player_position":`)
		assert.Contains(t, input["eventPayload"], `"rad_token":"rad1"`)
	}
}

func TestSendAdEventsNeverRetries(t *testing.T) {
	fe := newFakeGqlEndpoint()
	defer fe.server.Close()
	fe.m.Lock()
	fe.status = http.StatusInternalServerError
	fe.m.Unlock()
	client := newTestClient(fe, atypes.NewSession(""))

	client.SendAdEvents([]AdEvent{{EventName: EVENT_AD_IMPRESSION, RollType: "MIDROLL", PodPosition: 0}})

	assert.Len(t, fe.captured(), 1)
}
