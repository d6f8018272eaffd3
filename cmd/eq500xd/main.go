// Command eq500xd drives an EQ500X equatorial mount over its serial link and
// exposes it over HTTP, websockets and an optional TCP command bridge.
package main

import (
	"context"
	"errors"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/comptonizing/eq500x/eq500x"
	"github.com/comptonizing/eq500x/internal/observability"
	"github.com/comptonizing/eq500x/site"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	configPath = kingpin.Flag("config", "path to the TOML config file").String()
	serialPort = kingpin.Flag("serial", "serial device the mount is attached to").String()
	simulate   = kingpin.Flag("simulate", "drive the built-in simulator instead of hardware").Bool()
	listenAddr = kingpin.Flag("listen", "HTTP status and metrics address").String()
	lx200Addr  = kingpin.Flag("lx200", "TCP command bridge address").String()
	latitude   = kingpin.Flag("latitude", "observer latitude in degrees").Default("NaN").Float64()
	longitude  = kingpin.Flag("longitude", "observer longitude in degrees, positive east").Default("NaN").Float64()
	debug      = kingpin.Flag("debug", "log at debug level").Bool()
)

func main() {
	kingpin.Parse()
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalln(err)
	}
	if *serialPort != "" {
		cfg.Serial.Port = *serialPort
	}
	if *simulate {
		cfg.Serial.Simulate = true
	}
	if *listenAddr != "" {
		cfg.Server.Listen = *listenAddr
	}
	if *lx200Addr != "" {
		cfg.Server.LX200 = *lx200Addr
	}
	if !math.IsNaN(*latitude) {
		cfg.Site.Latitude = *latitude
	}
	if !math.IsNaN(*longitude) {
		cfg.Site.Longitude = *longitude
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	collector, err := observability.NewMountCollector(nil)
	if err != nil {
		log.Fatalln(err)
	}
	st := site.New(cfg.Site.Latitude, cfg.Site.Longitude)
	srv := NewServer(st, collector)

	var transport eq500x.Transport
	if cfg.Serial.Simulate {
		log.Infoln("driving the built-in simulator")
		transport = eq500x.NewSimulator()
	} else {
		transport, err = eq500x.OpenSerial(cfg.Serial.Port)
		if err != nil {
			log.Fatalln(err)
		}
	}

	m := eq500x.New(transport, st, srv.statusCallback)
	srv.mount = m

	if err := m.Handshake(); err != nil {
		log.Fatalf("connecting to mount: %v", err)
	}
	log.Infoln("mount connected")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.Run(ctx) })

	r := mux.NewRouter()
	r.HandleFunc("/api/status", srv.StatusHandler)
	r.HandleFunc("/api/ws", srv.StatusSocketHandler)
	r.Handle("/metrics", collector.Handler())
	httpSrv := &http.Server{
		Handler:      r,
		Addr:         cfg.Server.Listen,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	g.Go(httpSrv.ListenAndServe)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if cfg.Server.LX200 != "" {
		if err := srv.ListenLX200(ctx, cfg.Server.LX200); err != nil {
			log.Fatalf("lx200 listener: %v", err)
		}
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalln(err)
	}
	log.Infoln("shut down")
}
