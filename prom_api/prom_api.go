package prom_api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"adsift/atypes"
	"adsift/noop_api"
)

var (
	statEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adsift_stat_events_total",
		Help: "Internal stat events by event, context and error flag",
	}, []string{"event", "context", "error"})

	channelsWatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adsift_channels_watched_total",
		Help: "Channels registered for manifest suppression",
	})

	watchingChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "adsift_watching_channels",
		Help: "Channels currently being watched",
	})
)

// PromApi decorates the noop api with prometheus counters and an optional
// /metrics listener.
type PromApi struct {
	noop_api.NoopApi
	MetricsAddr string
}

func NewPromApi(metricsAddr string) *PromApi {
	return &PromApi{MetricsAddr: metricsAddr}
}

func (pa *PromApi) OnChannelWatch(channelName, playerType string, params map[string]string) (atypes.Channel, error) {
	handle, err := pa.NoopApi.OnChannelWatch(channelName, playerType, params)
	if err != nil {
		return handle, err
	}
	channelsWatched.Inc()
	watchingChannels.Inc()
	return &promChannel{Channel: handle}, nil
}

// Stat labels on event and context only, extra is unbounded.
func (pa *PromApi) Stat(isError bool, event string, context string, extra string) {
	errorLabel := "false"
	if isError {
		errorLabel = "true"
	}
	statEvents.WithLabelValues(event, context, errorLabel).Inc()
}

func (pa *PromApi) Serve() error {
	if pa.MetricsAddr == "" {
		return nil
	}

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         pa.MetricsAddr,
		Handler:      router,
		WriteTimeout: 30 * time.Second,
		ReadTimeout:  30 * time.Second,
	}

	go func() {
		logrus.Infof("Metrics listening on %s", pa.MetricsAddr)
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logrus.Errorf("metrics listener failed %+v", err)
		}
	}()

	return nil
}

type promChannel struct {
	atypes.Channel
}

func (pc *promChannel) Disconnect() {
	watchingChannels.Dec()
	pc.Channel.Disconnect()
}
