package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/verifyhub/case-engine/internal/store/model"
	"go.uber.org/zap"
)

const collectTimeout = 5 * time.Second

type StatsSource interface {
	Statistics(ctx context.Context) (model.CaseStats, error)
}

// CaseStatsCollector reads case counts from the store on every scrape.
type CaseStatsCollector struct {
	source    StatsSource
	casesDesc *prometheus.Desc
	openDesc  *prometheus.Desc
}

func NewCaseStatsCollector(source StatsSource) *CaseStatsCollector {
	return &CaseStatsCollector{
		source: source,
		casesDesc: prometheus.NewDesc(
			prometheus.BuildFQName("", caseEngine, "cases"),
			"number of cases partitioned by status",
			[]string{"status"}, nil,
		),
		openDesc: prometheus.NewDesc(
			prometheus.BuildFQName("", caseEngine, "open_cases_per_verifier"),
			"number of assigned or in progress cases held by each verifier",
			[]string{"verifier"}, nil,
		),
	}
}

func (c *CaseStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.casesDesc
	ch <- c.openDesc
}

func (c *CaseStatsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	stats, err := c.source.Statistics(ctx)
	if err != nil {
		zap.S().Named("metrics").Warnw("failed to collect case statistics", "error", err)
		return
	}

	for status, total := range stats.TotalByStatus {
		ch <- prometheus.MustNewConstMetric(c.casesDesc, prometheus.GaugeValue, float64(total), status)
	}
	for verifier, open := range stats.OpenByVerifier {
		ch <- prometheus.MustNewConstMetric(c.openDesc, prometheus.GaugeValue, float64(open), verifier)
	}
}
