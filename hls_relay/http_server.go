package hls_relay

import (
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"reflect"
	"time"

	"github.com/gorilla/mux"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"adsift/atypes"
	"adsift/wsync"
)

func LogHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logrus.Debugf("req: %+v,  map: %+v, %+v", r.RequestURI, mux.Vars(r), r)
		next.ServeHTTP(w, r)
		logrus.Infof("req: %+v, response headers %+v", r, w.Header())
	})
}

type HttpResponse struct {
	HttpStatus int
	Reader     io.ReadCloser
}

type Relay struct {
	httpServer *http.Server
	httpRouter *mux.Router

	config RelayConfig

	HandleVariantPlaylist func(*VariantPlaylistRequest) (HttpResponse, error)
	HandleMediaPlaylist   func(*MediaPlaylistRequest) (HttpResponse, error)
	HandleStatus          func(*StatusRequest) (StatusPage, error)

	HandleBridgeHealth func(duration time.Duration) error

	variantMutex *wsync.Semaphore
	mediaMutex   *wsync.Semaphore
	statusMutex  *wsync.Semaphore
}

func parseRequest(req interface{}, r *http.Request) error {
	vars := mux.Vars(r)
	if err := mapstructure.WeakDecode(vars, req); err != nil {
		return errors.Wrapf(err, "error parsing %+v, on %+v", req, vars)
	}
	logrus.Debugf("Request parse %+v", req)
	return nil
}

func (rl *Relay) handleReqTyped(req interface{}) (HttpResponse, error) {
	switch v := req.(type) {
	case *VariantPlaylistRequest:
		return func() (HttpResponse, error) {
			if !rl.variantMutex.TryLock(time.Second * 10) {
				return HttpResponse{HttpStatus: http.StatusRequestTimeout}, errors.New("timeout")
			}
			defer rl.variantMutex.Unlock()

			return rl.HandleVariantPlaylist(req.(*VariantPlaylistRequest))
		}()
	case *MediaPlaylistRequest:
		return func() (HttpResponse, error) {
			if !rl.mediaMutex.TryLock(time.Second * 15) {
				return HttpResponse{HttpStatus: http.StatusRequestTimeout}, errors.New("timeout")
			}
			defer rl.mediaMutex.Unlock()

			return rl.HandleMediaPlaylist(req.(*MediaPlaylistRequest))
		}()
	default:
		return HttpResponse{
			HttpStatus: http.StatusInternalServerError,
			Reader:     nil,
		}, errors.Errorf("unknown type %+v", v)
	}
}

func (rl *Relay) handleReq(req interface{}, w http.ResponseWriter, r *http.Request) error {
	methodName := reflect.TypeOf(req).String()

	err := parseRequest(req, r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		atypes.Stat(true, "http_handle", methodName, http.StatusText(http.StatusBadRequest))
		return err
	}

	res, err := rl.handleReqTyped(req)

	if err != nil && res.HttpStatus == 0 {
		atypes.Stat(true, "http_handle", methodName, http.StatusText(http.StatusBadRequest))
		w.WriteHeader(http.StatusBadRequest)
		return err
	} else if err != nil && res.HttpStatus != 0 {
		atypes.Stat(true, "http_handle", methodName, http.StatusText(res.HttpStatus))
		w.WriteHeader(res.HttpStatus)
		return err
	}

	w.WriteHeader(res.HttpStatus)
	if res.Reader != nil {
		_, err = io.Copy(w, res.Reader)
		res.Reader.Close()
	}
	if err != nil {
		atypes.Stat(true, "http_handle", methodName, http.StatusText(http.StatusInternalServerError))
		logrus.Errorf("Bad response %+v", res)
		return err
	}
	atypes.Stat(false, "http_handle", methodName, http.StatusText(http.StatusOK))

	return nil
}

func NewRelay(config RelayConfig) (*Relay, error) {
	httpRouter := mux.NewRouter()
	httpRouter.Use(LogHandler)

	rl := &Relay{
		config:       config,
		httpRouter:   httpRouter,
		variantMutex: wsync.NewSemaphore(20, 100),
		mediaMutex:   wsync.NewSemaphore(50, 300),
		statusMutex:  wsync.NewSemaphore(2, 10),
	}

	variantHandler := func(w http.ResponseWriter, r *http.Request) {
		req := &VariantPlaylistRequest{}
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		rl.handleReq(req, w, r)
	}

	mediaHandler := func(w http.ResponseWriter, r *http.Request) {
		req := &MediaPlaylistRequest{}
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		rl.handleReq(req, w, r)
	}

	httpRouter.Path(rl.config.HandleVariantPlaylistUrl()).Queries("vid", "{view_salt}", "quality", "{quality_override}").Name("VariantPlaylistVidQuality").HandlerFunc(variantHandler)
	httpRouter.Path(rl.config.HandleVariantPlaylistUrl()).Queries("quality", "{quality_override}").Name("VariantPlaylistQuality").HandlerFunc(variantHandler)
	httpRouter.Path(rl.config.HandleVariantPlaylistUrl()).Queries("vid", "{view_salt}").Name("VariantPlaylistVid").HandlerFunc(variantHandler)
	httpRouter.HandleFunc(rl.config.HandleVariantPlaylistUrl(), variantHandler).Name("VariantPlaylist")

	httpRouter.Path(rl.config.HandleMediaPlaylistUrl()).Queries("vid", "{view_salt}").Name("MediaPlaylistVid").HandlerFunc(mediaHandler)
	httpRouter.HandleFunc(rl.config.HandleMediaPlaylistUrl(), mediaHandler).Name("MediaPlaylist")

	httpRouter.HandleFunc(rl.config.HandleStatusUrl(), func(w http.ResponseWriter, r *http.Request) {
		if !rl.statusMutex.TryLock(time.Second * 5) {
			w.WriteHeader(http.StatusRequestTimeout)
			return
		}
		defer rl.statusMutex.Unlock()

		req := &StatusRequest{}
		err := parseRequest(req, r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		page, err := rl.HandleStatus(req)
		if err != nil {
			atypes.Stat(true, "http_handle", "status", "")
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		page.ComposeStatusPage(w)
	}).Name("Status")

	pprofr := httpRouter.PathPrefix("/debug/pprof").Subrouter()
	pprofr.HandleFunc("/", pprof.Index)
	pprofr.HandleFunc("/cmdline", pprof.Cmdline)
	pprofr.HandleFunc("/symbol", pprof.Symbol)
	pprofr.HandleFunc("/trace", pprof.Trace)

	profile := pprofr.PathPrefix("/profile").Subrouter()
	profile.HandleFunc("", pprof.Profile)
	profile.Handle("/goroutine", pprof.Handler("goroutine"))
	profile.Handle("/threadcreate", pprof.Handler("threadcreate"))
	profile.Handle("/heap", pprof.Handler("heap"))
	profile.Handle("/block", pprof.Handler("block"))
	profile.Handle("/mutex", pprof.Handler("mutex"))

	httpRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		atypes.Stat(false, "health", "", "")
		if !rl.variantMutex.TryLock(4 * time.Second) {
			w.WriteHeader(http.StatusRequestTimeout)
			w.Write([]byte("variantMutex"))
			atypes.Stat(true, "health", "variantMutex", "")
			return
		}
		rl.variantMutex.Unlock()

		if !rl.mediaMutex.TryLock(4 * time.Second) {
			w.WriteHeader(http.StatusRequestTimeout)
			w.Write([]byte("mediaMutex"))
			atypes.Stat(true, "health", "mediaMutex", "")
			return
		}
		rl.mediaMutex.Unlock()

		if rl.HandleBridgeHealth != nil {
			if err := rl.HandleBridgeHealth(10 * time.Second); err != nil {
				w.WriteHeader(http.StatusRequestTimeout)
				w.Write([]byte("HandleBridgeHealth"))
				atypes.Stat(true, "health", "HandleBridgeHealth", "")
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Ok"))
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", rl.config.HttpHost, rl.config.HttpPort),
		Handler:      httpRouter,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 30,
		IdleTimeout:  time.Second * 30,
	}

	rl.httpServer = httpServer
	return rl, nil
}

func (rl *Relay) Listen() error {
	go func() {
		err := rl.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logrus.Panicf("cannot listen and serve http %+v", err)
		}
	}()
	return nil
}

func (rl *Relay) Serve() error {
	return nil
}

func (rl *Relay) Stop() error {
	return rl.httpServer.Close()
}
