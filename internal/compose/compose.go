// Package compose fans a services.yml document out into one client
// tunnel per entry, all running concurrently.
package compose

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/strawberryfoundations/tunneled/internal/client"
	"github.com/strawberryfoundations/tunneled/internal/config"
)

// Run starts one client.Client per service in cfg and blocks until all
// of them have returned. A failure in one service is logged and does
// not affect the others.
func Run(cfg *config.ComposeConfig, log zerolog.Logger) {
	var wg sync.WaitGroup
	for _, svc := range cfg.Services {
		wg.Add(1)
		go func(svc config.Service) {
			defer wg.Done()
			runService(svc, log)
		}(svc)
	}
	wg.Wait()
}

func runService(svc config.Service, log zerolog.Logger) {
	c := client.New(client.Config{
		LocalHost:   svc.Host,
		LocalPort:   uint16(svc.Port),
		ServerHost:  svc.Server,
		ControlPort: uint16(svc.ControlPort),
		Secret:      svc.Secret,
		StaticPort:  svc.StaticPort,
		RequireID:   svc.UseAuth,
		Label:       svc.Name,
	}, log)

	if err := c.Run(); err != nil {
		log.Error().Err(err).Str("service", svc.Name).Msg("tunnel exited")
	}
}
