package metrics

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"meridian/pkg/logger"
)

// EntityCollector exposes entity counts from postgres as gauges, scraped
// lazily so the database is only queried when prometheus asks.
type EntityCollector struct {
	log *logger.Logger
	db  *sqlx.DB

	fundsByStatus       *prometheus.Desc
	investmentsByStatus *prometheus.Desc
	kycByStatus         *prometheus.Desc
}

// NewEntityCollector creates a collector over the given database
func NewEntityCollector(log *logger.Logger, db *sqlx.DB) *EntityCollector {
	return &EntityCollector{
		log: log,
		db:  db,

		fundsByStatus: prometheus.NewDesc(
			"meridian_funds",
			"Number of funds by status",
			[]string{"status"}, nil,
		),
		investmentsByStatus: prometheus.NewDesc(
			"meridian_investments",
			"Number of investments by status",
			[]string{"status"}, nil,
		),
		kycByStatus: prometheus.NewDesc(
			"meridian_kyc_records",
			"Number of KYC records by status",
			[]string{"status"}, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *EntityCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.fundsByStatus
	ch <- c.investmentsByStatus
	ch <- c.kycByStatus
}

// Collect implements prometheus.Collector
func (c *EntityCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.collectCounts(ctx, ch, c.fundsByStatus, `SELECT status, COUNT(*) FROM funds GROUP BY status`)
	c.collectCounts(ctx, ch, c.investmentsByStatus, `SELECT status, COUNT(*) FROM investments GROUP BY status`)
	c.collectCounts(ctx, ch, c.kycByStatus, `SELECT status, COUNT(*) FROM kyc_records GROUP BY status`)
}

func (c *EntityCollector) collectCounts(ctx context.Context, ch chan<- prometheus.Metric, desc *prometheus.Desc, query string) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		c.log.Debugw("Entity metric query failed", "error", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count float64
		if err := rows.Scan(&status, &count); err != nil {
			continue
		}
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, count, status)
	}
}
