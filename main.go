package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/op/go-logging"

	"github.com/wwqgtxx/obfstunnel/client"
	"github.com/wwqgtxx/obfstunnel/common"
	"github.com/wwqgtxx/obfstunnel/config"
	"github.com/wwqgtxx/obfstunnel/server"
)

var log = logging.MustGetLogger("obfstunnel")

func main() {
	configFile := "config.yaml"
	if len(os.Args) == 2 {
		configFile = os.Args[1]
	}
	if !filepath.IsAbs(configFile) {
		currentDir, _ := os.Getwd()
		configFile = filepath.Join(currentDir, configFile)
	}
	buf, err := config.ReadConfig(configFile)
	if err != nil {
		panic(err)
	}
	cfg, err := config.ParseConfig(buf)
	if err != nil {
		panic(err)
	}
	if _, err = common.SetupLogging(cfg.LogLevel); err != nil {
		panic(err)
	}

	services, err := buildServices(cfg)
	if err != nil {
		log.Fatal(err)
	}
	for _, service := range services {
		if err := service.Start(); err != nil {
			log.Fatal(err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	for _, service := range services {
		_ = service.Close()
	}
}

func buildServices(cfg *config.Config) (services []common.Service, err error) {
	if !cfg.DisableClient {
		for _, clientConfig := range cfg.ClientConfigs {
			var c *client.Client
			if c, err = client.New(clientConfig, cfg.Lifetime()); err != nil {
				return
			}
			services = append(services, c)
		}
	}
	if !cfg.DisableServer {
		for _, serverConfig := range cfg.ServerConfigs {
			var s *server.Server
			if s, err = server.New(serverConfig, cfg.Lifetime()); err != nil {
				return
			}
			services = append(services, s)
		}
	}
	return
}
