package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/go-sql-driver/mysql"
	jsoniter "github.com/json-iterator/go"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mellowpine/coinpulse/internal/coingecko"
	"github.com/mellowpine/coinpulse/internal/config"
	"github.com/mellowpine/coinpulse/internal/connector"
	"github.com/mellowpine/coinpulse/internal/storage"
)

// This script dumps the stored price history of one coin to CSV and JSON
// files under the output directory, and optionally a live metadata snapshot
// next to them. Users can feed the flat files to spreadsheets or notebooks
// without touching the database.
func main() {
	cfgPath := flag.String("config", "./config.json", "path to the JSON config file")
	coin := flag.String("coin", "bitcoin", "coin id to export")
	fromStr := flag.String("from", "", "inclusive start date YYYY-MM-DD, default 30 days back")
	toStr := flag.String("to", "", "inclusive end date YYYY-MM-DD, default today")
	outDir := flag.String("out", "./data", "output directory")
	withMeta := flag.Bool("meta", false, "also fetch a live metadata snapshot")
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

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if *fromStr != "" {
		if from, err = time.Parse("2006-01-02", *fromStr); err != nil {
			fmt.Fprintln(os.Stderr, "invalid from date :", *fromStr)
			os.Exit(1)
		}
	}
	if *toStr != "" {
		if to, err = time.Parse("2006-01-02", *toStr); err != nil {
			fmt.Fprintln(os.Stderr, "invalid to date :", *toStr)
			os.Exit(1)
		}
	}

	store, err := openStore(&cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "storage connection :", err)
		os.Exit(1)
	}

	ctx := context.Background()
	points, err := store.PricePoints(ctx, *coin, from, to)
	if err != nil {
		fmt.Fprintln(os.Stderr, "price history query :", err)
		os.Exit(1)
	}

	if err = os.MkdirAll(*outDir, 0755); err != nil {
		fmt.Fprintln(os.Stderr, "not able to create output directory :", *outDir)
		os.Exit(1)
	}

	csvPath := filepath.Join(*outDir, *coin+"_raw.csv")
	if err = writeCSV(csvPath, points); err != nil {
		fmt.Fprintln(os.Stderr, "csv export :", err)
		os.Exit(1)
	}
	fmt.Printf("exported CSV : %v (%v rows)\n", csvPath, len(points))

	jsonPath := filepath.Join(*outDir, *coin+"_raw.json")
	if err = writeJSON(jsonPath, points); err != nil {
		fmt.Fprintln(os.Stderr, "json export :", err)
		os.Exit(1)
	}
	fmt.Printf("exported JSON : %v (%v rows)\n", jsonPath, len(points))

	if *withMeta {
		rest := connector.InitREST(&cfg.Connection.REST)
		client := coingecko.NewClient(config.SelectEndpoint(cfg.APIKey, cfg.BaseURL), rest, &cfg.Retry)
		meta, err := client.CoinMetadata(ctx, *coin)
		if err != nil {
			fmt.Fprintln(os.Stderr, "metadata fetch :", err)
			os.Exit(1)
		}
		metaPath := filepath.Join(*outDir, *coin+"_metadata.json")
		metaFile, err := os.Create(metaPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "metadata file create :", err)
			os.Exit(1)
		}
		enc := jsoniter.NewEncoder(metaFile)
		enc.SetIndent("", "  ")
		if err = enc.Encode(meta); err != nil {
			metaFile.Close()
			fmt.Fprintln(os.Stderr, "metadata encode :", err)
			os.Exit(1)
		}
		metaFile.Close()
		fmt.Println("exported metadata :", metaPath)
	}
}

func openStore(cfg *config.Config) (storage.Store, error) {
	for _, str := range cfg.Storages {
		switch str {
		case "sqlite":
			return storage.InitSQLite(&cfg.Connection.SQLite)
		case "mysql":
			return storage.InitMySQL(&cfg.Connection.MySQL)
		}
	}
	return nil, fmt.Errorf("no relational store in configured storages : %v", cfg.Storages)
}

func writeCSV(path string, points []storage.PricePoint) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()

	if err = w.Write([]string{"coin_id", "ts_utc", "price", "market_cap", "total_volume"}); err != nil {
		return err
	}
	for _, point := range points {
		record := []string{
			point.CoinID,
			time.Unix(point.TsMs/1000, 0).UTC().Format("2006-01-02 15:04:05"),
			fmtFloat(point.Price),
			fmtFloat(point.MarketCap),
			fmtFloat(point.TotalVolume),
		}
		if err = w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, points []storage.PricePoint) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	type row struct {
		CoinID      string   `json:"coin_id"`
		TsUTC       string   `json:"ts_utc"`
		Price       *float64 `json:"price"`
		MarketCap   *float64 `json:"market_cap"`
		TotalVolume *float64 `json:"total_volume"`
	}
	rows := make([]row, 0, len(points))
	for _, point := range points {
		rows = append(rows, row{
			CoinID:      point.CoinID,
			TsUTC:       time.Unix(point.TsMs/1000, 0).UTC().Format(time.RFC3339),
			Price:       point.Price,
			MarketCap:   point.MarketCap,
			TotalVolume: point.TotalVolume,
		})
	}
	return jsoniter.NewEncoder(f).Encode(rows)
}

func fmtFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
