package main

import (
	"context"
	"os/signal"
	"time"

	"github.com/CodedInternet/rovcontrol/comms"
	"github.com/CodedInternet/rovcontrol/switches"
	"github.com/caarlos0/env/v6"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

type EnvConfig struct {
	SERVER   string        `env:"SWITCH_SERVER" envDefault:"http://192.168.8.108:5001"`
	CHIP     string        `env:"SWITCH_CHIP" envDefault:"gpiochip0"`
	TIMEOUT  time.Duration `env:"SWITCH_TIMEOUT" envDefault:"1s"`
	DEBOUNCE time.Duration `env:"SWITCH_DEBOUNCE" envDefault:"20ms"`
	POLL     time.Duration `env:"SWITCH_POLL" envDefault:"50ms"`
	DEBUG    bool          `env:"DEBUG" envDefault:"0"`
}

func main() {
	ENV := new(EnvConfig)
	if err := env.Parse(ENV); err != nil {
		log.WithError(err).Fatal("Unable to parse environment")
	}
	if ENV.DEBUG {
		log.SetLevel(log.DebugLevel)
	}

	client := comms.NewClient(ENV.SERVER, ENV.TIMEOUT)

	{
		ctx, cancel := context.WithTimeout(context.Background(), ENV.TIMEOUT)
		version, err := client.CheckVersion(ctx, comms.API_CONSTRAINT)
		cancel()

		switch err.(type) {
		case nil:
			log.Infof("Motor server %s reports API %s", client.Base(), version)
		case comms.VersionError:
			log.WithError(err).Fatal("Incompatible motor server")
		default:
			log.WithError(err).Warnf("Motor server %s not reachable yet, continuing", client.Base())
		}
	}

	pins := switches.DefaultPins()
	reader, err := switches.OpenGPIO(ENV.CHIP, pins)
	if err != nil {
		log.WithError(err).Fatal("GPIO Initialization Error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	log.Infof("Monitoring %d motor switches → controlling motor server at %s.", len(pins), client.Base())
	switches.NewPoller(reader, client, ENV.DEBOUNCE, ENV.POLL).Run(ctx)

	log.Info("Client interrupted, sending server shutdown command...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ENV.TIMEOUT)
	if err := client.Shutdown(shutdownCtx); err != nil {
		// the server often drops the connection while shutting down
		log.WithError(errors.Cause(err)).Debug("shutdown request")
	}
	cancel()

	if err := reader.Close(); err != nil {
		log.WithError(err).Error("Unable to release GPIO lines")
	}
	log.Info("Client application finished and GPIO cleaned up.")
}
