package main

import (
	"log/slog"

	"ecourts-backend/lib/cachestore"
	"ecourts-backend/lib/configutil"
	"ecourts-backend/lib/scrapers/ecourts"
	"ecourts-backend/lib/serviceutil"
	"ecourts-backend/lib/sqliteutil"
	"ecourts-backend/lib/telemetry"
	"ecourts-backend/services/courtdata"
	courtdatadb "ecourts-backend/services/courtdata/db"
)

type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	Db       int    `json:"db"`
}

type Config struct {
	Port      int    `json:"port"`
	PortalUrl string `json:"portal_url"`
	Database  string `json:"database"`
	// optional shared cache; in-process caching only when absent
	Redis   *RedisConfig `json:"redis"`
	Verbose bool         `json:"verbose"`
}

func main() {
	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	telemetry.InitSlog(config.Verbose)

	ctx := serviceutil.SignalContext()

	tele, err := telemetry.SetupFromEnv(ctx, "cmd/ecourts-server")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer tele.Shutdown(ctx)
	telemetry.InstrumentPerfStats(ctx)

	client, err := ecourts.NewClient(ecourts.ClientOptions{
		BaseUrl: config.PortalUrl,
	})
	if err != nil {
		serviceutil.Fatal("failed to create scrape client", err)
	}

	slog.Info("opening database...", "path", config.Database)
	database, err := sqliteutil.OpenDB(courtdatadb.Schema, config.Database)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}

	var cache cachestore.Store = cachestore.Nop{}
	if config.Redis != nil {
		cache = cachestore.NewRedis(config.Redis.Address, config.Redis.Password, config.Redis.Db)
	}

	service := courtdata.NewService(courtdata.ServiceOptions{
		Scraper: client,
		DB:      database,
		Cache:   cache,
	})

	go serviceutil.StartHttpServer(config.Port, service.Routes())

	<-ctx.Done()
}
