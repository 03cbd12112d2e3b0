package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"parcel-agent/internal/api"
	"parcel-agent/internal/arcgis"
	"parcel-agent/internal/config"
	"parcel-agent/internal/db"
	"parcel-agent/internal/logger"
	"parcel-agent/internal/resolver"
	"parcel-agent/internal/service"
)

func main() {
	_ = godotenv.Load(".env")

	// Parse command line flags
	port := flag.String("port", "", "Port to listen on (overrides config)")
	dbPath := flag.String("db", "", "Path to the SQLite request log (\"off\" disables it)")
	flag.Parse()

	log := logger.Setup()
	cfg := config.Load()

	if *port == "" {
		*port = cfg.Port
	}
	if *dbPath == "" {
		*dbPath = cfg.DBPath
	}
	if *dbPath == "" {
		cwd, _ := os.Getwd()
		*dbPath = filepath.Join(cwd, "data", "parcel-agent.db")
	}

	// Request audit log; the service runs fine without it
	var database *db.DB
	if *dbPath != "off" {
		var err error
		database, err = db.New(*dbPath)
		if err != nil {
			log.Error("failed to open request log, continuing without it", "path", *dbPath, "error", err)
			database = nil
		} else {
			defer database.Close()
			log.Info("request log", "path", *dbPath)
		}
	}

	client := arcgis.NewClient(arcgis.Config{
		BaseURL:      cfg.MapServerBase,
		AddressLayer: cfg.AddressLayer,
		ParcelsLayer: cfg.ParcelsLayer,
		AuthToken:    cfg.ArcGISToken,
		Timeout:      cfg.UpstreamTimeout,
		MaxRetries:   cfg.MaxRetries,
		MaxResults:   cfg.MaxResults,
	}, log)

	res := resolver.New(client, cfg.BatchSize, log)

	var audit service.Auditor
	if database != nil {
		audit = database
	}
	svc := service.New(res, audit, log)

	router := api.NewRouter(svc, database, cfg.APIKey)

	addr := fmt.Sprintf(":%s", *port)
	log.Info("starting server", "addr", addr, "mapserver", cfg.MapServerBase)

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}
