package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v7"
	jsoniter "github.com/json-iterator/go"
	"github.com/mellowpine/coinpulse/internal/config"
)

// ElasticSearch is for connecting and indexing data to elastic search.
// It is an optional mirror of the relational store for search and dashboards,
// never the source of truth.
type ElasticSearch struct {
	ES        *elasticsearch.Client
	IndexName string
	Cfg       *config.ES
}

var elasticSearch ElasticSearch

// InitElasticSearch initializes elastic search connection with configured values.
func InitElasticSearch(cfg *config.ES) (*ElasticSearch, error) {
	if elasticSearch.ES == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.MaxIdleConns = cfg.MaxIdleConns
		t.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
		esCfg := elasticsearch.Config{
			Addresses: cfg.Addresses,
			Username:  cfg.Username,
			Password:  cfg.Password,
			Transport: t,
		}
		es, err := elasticsearch.NewClient(esCfg)
		if err != nil {
			return nil, err
		}
		var ctx context.Context
		if cfg.ReqTimeoutSec > 0 {
			timeoutCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ReqTimeoutSec)*time.Second)
			ctx = timeoutCtx
			defer cancel()
		} else {
			ctx = context.Background()
		}
		_, err = es.Ping(es.Ping.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		elasticSearch = ElasticSearch{
			ES:        es,
			IndexName: cfg.IndexName,
			Cfg:       cfg,
		}
	}
	return &elasticSearch, nil
}

// GetElasticSearch returns already prepared elastic search instance.
func GetElasticSearch() *ElasticSearch {
	return &elasticSearch
}

// esData is one price point document sent to elastic search.
type esData struct {
	CoinID      string    `json:"coin_id"`
	TsMs        int64     `json:"ts_ms"`
	Price       *float64  `json:"price"`
	MarketCap   *float64  `json:"market_cap"`
	TotalVolume *float64  `json:"total_volume"`
	CreatedAt   time.Time `json:"created_at"`
}

// MirrorPricePoints bulk indexes input price point data to elastic search.
// Documents are created with a deterministic id of coin_id:ts_ms, so
// re-ingesting an overlapping window leaves already indexed documents
// untouched instead of duplicating them.
func (e *ElasticSearch) MirrorPricePoints(appCtx context.Context, data []PricePoint) error {
	var buf bytes.Buffer
	for _, point := range data {
		meta := []byte(fmt.Sprintf(`{"create":{"_id":"%v:%v"}}%s`, point.CoinID, point.TsMs, "\n"))
		ed := esData{
			CoinID:      point.CoinID,
			TsMs:        point.TsMs,
			Price:       point.Price,
			MarketCap:   point.MarketCap,
			TotalVolume: point.TotalVolume,
			CreatedAt:   time.Now().UTC(),
		}
		esBytes, err := jsoniter.Marshal(ed)
		if err != nil {
			return err
		}
		esBytes = append(esBytes, "\n"...)
		buf.Grow(len(meta) + len(esBytes))
		buf.Write(meta)
		buf.Write(esBytes)
	}
	var ctx context.Context
	if e.Cfg.ReqTimeoutSec > 0 {
		timeoutCtx, cancel := context.WithTimeout(appCtx, time.Duration(e.Cfg.ReqTimeoutSec)*time.Second)
		ctx = timeoutCtx
		defer cancel()
	} else {
		ctx = context.Background()
	}
	resp, err := e.ES.Bulk(bytes.NewReader(buf.Bytes()), e.ES.Bulk.WithIndex(e.IndexName), e.ES.Bulk.WithContext(ctx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("code : %v, status : %v", resp.StatusCode, resp.Status())
	}
	_, err = io.Copy(io.Discard, resp.Body)
	if err != nil {
		return err
	}
	return nil
}
