package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	jsoniter "github.com/json-iterator/go"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mellowpine/coinpulse/internal/config"
	"github.com/mellowpine/coinpulse/internal/initializer"
)

func main() {
	cfgPath := flag.String("config", "./config.json", "path to the JSON config file")
	serveDashboard := flag.Bool("dashboard", false, "serve the dashboard instead of running an ingestion")
	flag.Parse()

	cfgFile, err := os.Open(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "not able to find config file :", *cfgPath)
		os.Exit(1)
	}
	var cfg config.Config
	if err = jsoniter.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, "not able to parse JSON from config file :", *cfgPath)
		os.Exit(1)
	}
	cfgFile.Close()

	mainCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serveDashboard {
		err = initializer.StartDashboard(mainCtx, &cfg)
	} else {
		err = initializer.Start(mainCtx, &cfg)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "exiting app with an error :", err)
		os.Exit(1)
	}
}
