package main

import (
	"flag"
	"github.com/sirupsen/logrus"
	"adsift/atypes"
	"adsift/noop_api"
	"adsift/prom_api"
	"adsift/worker"
	"os"
	"os/signal"
	"syscall"
)

func init() {
	logrus.SetLevel(logrus.DebugLevel)
	logrus.Info("Initializing adsift")
	atypes.ApiInst = &noop_api.NoopApi{}
}

func main() {
	configPath := flag.String("config", "default", "configuration path")
	metricsAddr := flag.String("metrics", "", "prometheus listen address, empty disables metrics")
	flag.Parse()

	if *metricsAddr != "" {
		atypes.ApiInst = prom_api.NewPromApi(*metricsAddr)
	}

	c := worker.NewConfig(*configPath)

	err := atypes.ApiInst.Serve()

	if err != nil {
		logrus.Panic("Cannot start api ", err)
	}

	w, err := worker.NewWorker(c)
	if err != nil {
		logrus.Panic("Cannot create worker ", err)
	}

	err = w.Listen()
	if err != nil {
		logrus.Panic("Cannot listen worker ", err)
	}

	err = w.Serve()
	if err != nil {
		logrus.Panic("Cannot serve worker ", err)
	}

	sigch := make(chan os.Signal)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
	logrus.Info(<-sigch)
	w.Stop()
}
