package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
	"github.com/wechange-eg/conference-hub/api"
	"github.com/wechange-eg/conference-hub/bbb"
	"github.com/wechange-eg/conference-hub/config"
	"github.com/wechange-eg/conference-hub/globals"
	"github.com/wechange-eg/conference-hub/persistence"
	"github.com/wechange-eg/conference-hub/room"
	"github.com/wechange-eg/conference-hub/settings"
	"github.com/wechange-eg/conference-hub/streaming"
)

const sweepSpec = "@every 1m"

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
	addr       = pflag.String("addr", "localhost:8000", "http service address (including port)")
	sslCert    = pflag.String("ssl-cert", "", "SSL cert (optional)")
	sslKey     = pflag.String("ssl-key", "", "SSL key (optional)")
)

func main() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		<-c
		log.Fatal("interrupted!")
	}()

	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)

	pflag.Parse()
	log.SetFlags(0)

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}

	globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))

	persister, err := persistence.NewPersister(globalConfig)
	if err != nil {
		panic(err)
	}
	if persister == nil {
		panic("no persistence configured")
	}
	defer persister.Close()

	cache, err := settings.NewCache(globalConfig.CacheConfig.Size, globalConfig.CacheConfig.TTL)
	if err != nil {
		panic(err)
	}
	resolver := settings.NewResolver(persister, cache, globalConfig.BBBConfig.PortalParams)

	bbbClient := bbb.NewClient(globalConfig)
	manager := room.NewManager(persister, resolver, bbbClient)

	cronRunner := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if globalConfig.StreamingConfig.ApiUrl != "" {
		streamClient := streaming.NewClient(globalConfig)
		sweeper := streaming.NewSweeper(persister, streamClient, globalConfig)
		_, err := cronRunner.AddFunc(sweepSpec, func() {
			sweeper.RunExclusive(globalConfig.StreamingConfig.LockPath)
		})
		if err != nil {
			panic(err)
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	server := api.NewServer(persister, manager, resolver)
	http.Handle("/", server.Routes())

	globals.AppLogger.Info("listening", "addr", *addr)
	if *sslCert != "" && *sslKey != "" {
		err = http.ListenAndServeTLS(*addr, *sslCert, *sslKey, nil)
	} else {
		err = http.ListenAndServe(*addr, nil)
	}
	globals.AppLogger.Error("stopped listening", "error", err)
}
