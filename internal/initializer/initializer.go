package initializer

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mellowpine/coinpulse/internal/coingecko"
	"github.com/mellowpine/coinpulse/internal/config"
	"github.com/mellowpine/coinpulse/internal/connector"
	"github.com/mellowpine/coinpulse/internal/dashboard"
	"github.com/mellowpine/coinpulse/internal/pipeline"
	"github.com/mellowpine/coinpulse/internal/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

// Start will initialize various required systems and then execute one
// ingestion run.
func Start(mainCtx context.Context, cfg *config.Config) error {
	logFile, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer logFile.Close()

	store, mirror, err := setupStorages(cfg)
	if err != nil {
		return err
	}

	rest := connector.InitREST(&cfg.Connection.REST)
	client := coingecko.NewClient(config.SelectEndpoint(cfg.APIKey, cfg.BaseURL), rest, &cfg.Retry)

	// A typed nil mirror must stay a nil interface inside the pipeline.
	var mir pipeline.Mirror
	if mirror != nil {
		mir = mirror
	}

	summary, err := pipeline.New(client, store, mir, cfg).Run(mainCtx)
	log.Info().Int("coins_processed", summary.CoinsProcessed).Int64("rows_inserted", summary.RowsInserted).Strs("failed_coins", summary.FailedCoins).Msg("ingestion finished")
	if err != nil {
		log.Error().Msg("exiting the app")
		return err
	}
	return nil
}

// StartDashboard will initialize required systems and then serve the
// dashboard till the context is canceled.
func StartDashboard(mainCtx context.Context, cfg *config.Config) error {
	logFile, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer logFile.Close()

	store, _, err := setupStorages(cfg)
	if err != nil {
		return err
	}

	rest := connector.InitREST(&cfg.Connection.REST)
	client := coingecko.NewClient(config.SelectEndpoint(cfg.APIKey, cfg.BaseURL), rest, &cfg.Retry)

	return dashboard.New(store, client, &cfg.Dashboard, cfg.VsCurrency).Run(mainCtx)
}

// setupLogger prepares the zerolog file logger.
// If the path given in the config for logging ends with .log then create a log file with the same name and
// write log messages to it. Otherwise, create a new log file with a timestamp attached to it's name in the given path.
func setupLogger(cfg *config.Config) (*os.File, error) {
	var (
		logFile *os.File
		err     error
	)
	if strings.HasSuffix(cfg.Log.FilePath, ".log") {
		logFile, err = os.OpenFile(cfg.Log.FilePath, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0666)
		if err != nil {
			return nil, fmt.Errorf("not able to open or create log file: %v", cfg.Log.FilePath)
		}
	} else {
		logFile, err = os.Create(cfg.Log.FilePath + "_" + strconv.Itoa(int(time.Now().Unix())) + ".log")
		if err != nil {
			return nil, fmt.Errorf("not able to create log file: %v", cfg.Log.FilePath+"_"+strconv.Itoa(int(time.Now().Unix()))+".log")
		}
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	switch cfg.Log.Level {
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	fileLogger := zerolog.New(logFile).With().Timestamp().Logger()
	log.Logger = fileLogger
	log.Info().Msg("logger setup is done")
	return logFile, nil
}

// setupStorages establishes connections to the storage systems named in the
// config. Exactly one relational store carries the price history, elastic
// search is an optional mirror on top of it.
func setupStorages(cfg *config.Config) (storage.Store, *storage.ElasticSearch, error) {
	var (
		store  storage.Store
		mirror *storage.ElasticSearch
		err    error
	)
	for _, str := range cfg.Storages {
		switch str {
		case "sqlite":
			if store != nil {
				return nil, nil, errors.New("only one relational store can be configured")
			}
			store, err = storage.InitSQLite(&cfg.Connection.SQLite)
			if err != nil {
				err = errors.Wrap(err, "sqlite connection")
				log.Error().Stack().Err(errors.WithStack(err)).Msg("")
				return nil, nil, err
			}
			log.Info().Msg("sqlite connected")
		case "mysql":
			if store != nil {
				return nil, nil, errors.New("only one relational store can be configured")
			}
			store, err = storage.InitMySQL(&cfg.Connection.MySQL)
			if err != nil {
				err = errors.Wrap(err, "mysql connection")
				log.Error().Stack().Err(errors.WithStack(err)).Msg("")
				return nil, nil, err
			}
			log.Info().Msg("mysql connected")
		case "elastic_search":
			mirror, err = storage.InitElasticSearch(&cfg.Connection.ES)
			if err != nil {
				err = errors.Wrap(err, "elastic search connection")
				log.Error().Stack().Err(errors.WithStack(err)).Msg("")
				return nil, nil, err
			}
			log.Info().Msg("elastic search connected")
		default:
			return nil, nil, fmt.Errorf("unknown storage: %v", str)
		}
	}
	if store == nil {
		return nil, nil, errors.New("a relational store (sqlite or mysql) is required")
	}
	return store, mirror, nil
}
