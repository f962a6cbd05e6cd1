package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"time"

	"github.com/CodedInternet/rovcontrol/onboard"
	"github.com/CodedInternet/rovcontrol/onboard/hardware"
	"github.com/caarlos0/env/v6"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

type EnvConfig struct {
	LISTEN  string `env:"ROV_LISTEN" envDefault:"0.0.0.0:5001"`
	CONFIG  string `env:"ROV_CONFIG" envDefault:"./rov_config.yaml"`
	SIM     bool   `env:"ROV_SIM" envDefault:"0"`
	PREEMPT bool   `env:"ROV_PREEMPT" envDefault:"1"`
	DEBUG   bool   `env:"DEBUG" envDefault:"0"`
}

const SHUTDOWN_TIMEOUT = 2 * time.Second

var (
	ENV *EnvConfig
)

func init() {
	// Load main config
	ENV = new(EnvConfig)
	if err := env.Parse(ENV); err != nil {
		log.WithError(err).Fatal("Unable to parse environment")
	}

	if ENV.DEBUG {
		log.SetLevel(log.DebugLevel)
	}
}

func main() {
	// process flags
	simulated := flag.Bool("sim", ENV.SIM, "Run without touching the PWM hardware")
	port := flag.String("port", ENV.LISTEN, "Specify the ip:port to listen on")
	configFile := flag.String("config", ENV.CONFIG, "Vehicle config file")
	withShell := flag.Bool("shell", false, "Start the interactive bench shell")
	flag.Parse()

	config, err := onboard.LoadConfig(*configFile)
	if err != nil {
		log.WithError(err).Fatal("Unable to load vehicle config")
	}

	//---
	// Bring up the vehicle
	//---
	// signals are caught before arming so an interrupt always reaches vehicle.Close
	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	var out hardware.Output
	if *simulated {
		log.Info("Running in simulation mode")
		out = hardware.NewSimulated(config.PulseRange())
	} else {
		out = hardware.Open(config.I2C, config.PulseRange())
	}
	trace := onboard.NewTraceOutput(out, onboard.TRACE_DEPTH)

	vehicle := onboard.NewVehicle(config, trace, ENV.PREEMPT)
	defer vehicle.Close()

	if err := bringUp(ctx, vehicle); err != nil {
		if ctx.Err() != nil {
			log.Info("Interrupted while arming, motors stopped")
			return
		}
		log.WithError(err).Fatal("Unable to arm ESCs")
	}

	api := NewMotorAPI(vehicle)

	//---
	// Create a local shell
	//---
	if *withShell {
		shell := NewShell(vehicle, trace)
		go shell.Run()
	}

	//---
	// Serve until asked to stop
	//---
	server := &http.Server{Addr: *port, Handler: NewRouter(api)}
	serveErr := make(chan error, 1)
	go func() {
		log.Infof("SERVER READY. Listening on %s", *port)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("Received interrupt")
	case <-api.Done():
	case err := <-serveErr:
		log.WithError(err).Error("HTTP server stopped")
	}

	// motors first, the HTTP server may take a while to drain
	if err := vehicle.Close(); err != nil {
		log.WithError(err).Error("Cleanup finished with errors")
	}

	stopServer(server, SHUTDOWN_TIMEOUT)
}

// stopServer drains the HTTP server, giving up on open requests after timeout.
func stopServer(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := server.Shutdown(ctx)
	if err != nil {
		log.WithError(err).Error("HTTP server did not shut down cleanly")
	}
	return err
}

// bringUp arms the ESCs. If arming fails or ctx ends first the vehicle is closed before
// returning, so every channel is left switched off.
func bringUp(ctx context.Context, vehicle *onboard.Vehicle) error {
	log.Info("Initializing ESCs with calibrated values...")

	err := vehicle.Arm(ctx)
	if err == nil {
		return nil
	}

	if cerr := vehicle.Close(); cerr != nil {
		log.WithError(cerr).Error("Cleanup finished with errors")
	}
	return err
}

// NewRouter builds the full HTTP surface around api.
func NewRouter(api *MotorAPI) chi.Router {
	r := chi.NewRouter()

	// A good base middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer) // make sure this is last

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.Render(w, r, ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		render.Render(w, r, ErrMethodNotAllowed)
	})

	api.Routes(r)

	return r
}
