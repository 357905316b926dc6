package gql

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"adsift/atypes"
)

const (
	DEFAULT_CLIENT_ID = "kimne78kx3ncx6brgo4mv6wki5h1ko"

	ACCESS_TOKEN_OPERATION    = "PlaybackAccessToken_Template"
	RECORD_AD_EVENT_OPERATION = "ClientSideAdEventHandling_RecordAdEvent"
	RECORD_AD_EVENT_HASH      = "7e6c69e6eb59f8ccb97ab73686f3d8b7d85a72a0298745ccd8bfc68e4054ca5b"

	EVENT_AD_IMPRESSION = "video_ad_impression"
	EVENT_POD_COMPLETE  = "video_ad_pod_complete"
)

const accessTokenQuery = `query PlaybackAccessToken_Template($login: String!, $isLive: Boolean!, $vodID: ID!, $isVod: Boolean!, $playerType: String!) {  streamPlaybackAccessToken(channelName: $login, params: {platform: "web", playerBackend: "mediaplayer", playerType: $playerType}) @include(if: $isLive) {    value    signature   authorization { isForbidden forbiddenReasonCode }   __typename  }  videoPlaybackAccessToken(id: $vodID, params: {platform: "web", playerBackend: "mediaplayer", playerType: $playerType}) @include(if: $isVod) {    value    signature   __typename  }}`

type Request struct {
	OperationName string                 `json:"operationName"`
	Query         string                 `json:"query,omitempty"`
	Variables     map[string]interface{} `json:"variables"`
	Extensions    *Extensions            `json:"extensions,omitempty"`
}

type Extensions struct {
	PersistedQuery PersistedQuery `json:"persistedQuery"`
}

type PersistedQuery struct {
	Version    int    `json:"version"`
	Sha256Hash string `json:"sha256Hash"`
}

type AccessToken struct {
	Value     string `json:"value"`
	Signature string `json:"signature"`
}

type tokenResponse struct {
	Data struct {
		StreamPlaybackAccessToken AccessToken `json:"streamPlaybackAccessToken"`
	} `json:"data"`
}

type AdEvent struct {
	EventName   string
	RollType    string
	PodPosition int
	RadToken    string
}

type Client struct {
	config  GqlConfig
	session *atypes.Session
	http    *http.Client
}

func NewClient(config GqlConfig, session *atypes.Session) *Client {
	return &Client{
		config:  config,
		session: session,
		http:    &http.Client{Timeout: config.RequestTimeout.Duration},
	}
}

func (c *Client) PlaybackAccessToken(channelName, playerType string) (AccessToken, error) {
	c.EnsureDeviceId()
	if playerType == "" {
		playerType = c.config.PlayerType
	}
	request := Request{
		OperationName: ACCESS_TOKEN_OPERATION,
		Query:         accessTokenQuery,
		Variables: map[string]interface{}{
			"isLive":     true,
			"login":      channelName,
			"isVod":      false,
			"vodID":      "",
			"playerType": playerType,
		},
	}
	var response tokenResponse
	if err := c.post(request, &response); err != nil {
		return AccessToken{}, errors.Wrapf(err, "access token request failed for %s", channelName)
	}
	token := response.Data.StreamPlaybackAccessToken
	if token.Value == "" || token.Signature == "" {
		return AccessToken{}, errors.Errorf("empty access token for channel %s", channelName)
	}
	return token, nil
}

func (c *Client) BuildUsherUrl(channelName string, token AccessToken) string {
	query := url.Values{}
	query.Set("allow_source", "true")
	query.Set("allow_audio_only", "true")
	query.Set("fast_bread", "true")
	query.Set("player_backend", "mediaplayer")
	query.Set("playlist_include_framerate", "true")
	query.Set("reassignments_supported", "true")
	query.Set("supported_codecs", "avc1")
	query.Set("sig", token.Signature)
	query.Set("token", token.Value)

	return fmt.Sprintf("%s/api/channel/hls/%s.m3u8?%s", c.config.UsherBase, channelName, query.Encode())
}

// SendAdEvents posts one telemetry event per record. Failed sends are
// counted and dropped, never retried.
func (c *Client) SendAdEvents(events []AdEvent) {
	for _, event := range events {
		payload, err := json.Marshal(map[string]interface{}{
			"stitched":        true,
			"roll_type":       event.RollType,
			"player_position": event.PodPosition,
			"rad_token":       event.RadToken,
		})
		if err != nil {
			logrus.Errorf("cannot marshal ad event payload %+v", err)
			continue
		}
		request := Request{
			OperationName: RECORD_AD_EVENT_OPERATION,
			Variables: map[string]interface{}{
				"input": map[string]interface{}{
					"eventName":    event.EventName,
					"eventPayload": string(payload),
				},
			},
			Extensions: &Extensions{
				PersistedQuery: PersistedQuery{Version: 1, Sha256Hash: RECORD_AD_EVENT_HASH},
			},
		}
		err = c.post(request, nil)
		atypes.Stat(err != nil, "gql_ad_event", event.EventName, "")
		if err != nil {
			logrus.Debugf("ad event dropped %+v", err)
		}
	}
}

func (c *Client) EnsureDeviceId() string {
	if id := c.session.DeviceId(); id != "" {
		return id
	}
	id := strings.Replace(uuid.New().String(), "-", "", -1)
	c.session.SetDeviceId(id)
	logrus.Debugf("generated device id %s", id)

	return id
}

func (c *Client) post(request Request, response interface{}) error {
	body, err := json.Marshal(request)
	if err != nil {
		return errors.Wrap(err, "cannot marshal gql request")
	}
	httpRequest, err := http.NewRequest("POST", c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "cannot build gql request")
	}
	c.setHeaders(httpRequest)
	httpResponse, err := c.http.Do(httpRequest)
	if err != nil {
		return errors.Wrap(err, "gql request failed")
	}
	defer httpResponse.Body.Close()
	if httpResponse.StatusCode != http.StatusOK {
		return errors.Errorf("gql endpoint returned %d", httpResponse.StatusCode)
	}
	if response == nil {
		return nil
	}
	if err := json.NewDecoder(httpResponse.Body).Decode(response); err != nil {
		return errors.Wrap(err, "cannot decode gql response")
	}
	return nil
}

func (c *Client) setHeaders(request *http.Request) {
	request.Header.Set("Content-Type", "application/json")
	clientId := c.session.ClientId()
	if clientId == "" {
		clientId = c.config.ClientId
	}
	request.Header.Set("Client-ID", clientId)
	if v := c.session.DeviceId(); v != "" {
		request.Header.Set("X-Device-Id", v)
	}
	if v := c.session.ClientVersion(); v != "" {
		request.Header.Set("Client-Version", v)
	}
	if v := c.session.ClientSession(); v != "" {
		request.Header.Set("Client-Session-Id", v)
	}
	if v := c.session.Integrity(); v != "" {
		request.Header.Set("Client-Integrity", v)
	}
	if v := c.session.Authorization(); v != "" {
		request.Header.Set("Authorization", v)
	}
}
