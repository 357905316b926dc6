package worker

import (
	"github.com/sirupsen/logrus"

	"adsift/atypes"
	"adsift/gql"
	"adsift/playlist"
)

const (
	POD_LENGTH_ATTR = "X-TV-TWITCH-AD-POD-LENGTH"
	RAD_TOKEN_ATTR  = "X-TV-TWITCH-AD-RAD-TOKEN"
)

// BuildAdEvents expands stitched ad pods into the accounting events the
// platform expects: one impression per pod position and one completion per
// pod. Events are built once per declared pod and never retried.
func BuildAdEvents(pods []playlist.PodInfo) []gql.AdEvent {
	events := make([]gql.AdEvent, 0, len(pods)*2)
	for _, pod := range pods {
		length := int(pod.Attrs.Int(POD_LENGTH_ATTR))
		if length <= 0 {
			length = 1
		}
		rollType := pod.RollType()
		radToken := pod.Attrs.String(RAD_TOKEN_ATTR)
		for position := 0; position < length; position++ {
			events = append(events, gql.AdEvent{
				EventName:   gql.EVENT_AD_IMPRESSION,
				RollType:    rollType,
				PodPosition: position,
				RadToken:    radToken,
			})
		}
		events = append(events, gql.AdEvent{
			EventName:   gql.EVENT_POD_COMPLETE,
			RollType:    rollType,
			PodPosition: length - 1,
			RadToken:    radToken,
		})
	}
	return events
}

func (w *Worker) declarePods(channelName string, pods []playlist.PodInfo) {
	events := BuildAdEvents(pods)
	if len(events) == 0 {
		return
	}

	logrus.WithField("channel", channelName).Debugf("declaring %d ad events for %d pods", len(events), len(pods))
	queued := w.resolver.Enqueue("ad_events", func() {
		w.gqlClient.SendAdEvents(events)
	})
	if !queued {
		atypes.Stat(true, "ad_events", "queue_full", channelName)
	}
}
