package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

var (
	ActivitiesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fedcomment_activities_processed_total",
		Help: "Inbound activities by kind and outcome reason.",
	}, []string{"kind", "reason"})

	DeliveriesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fedcomment_deliveries_total",
		Help: "Outbound deliveries by result (delivered, retried, rejected, abandoned).",
	}, []string{"result"})

	ResolvesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fedcomment_resolves_total",
		Help: "Remote object resolutions by result.",
	}, []string{"result"})

	RemoteLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fedcomment_remote_request_latency",
		Help:    "Histogram of outbound federation request latency in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"method", "status_code"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fedcomment_queue_depth",
		Help: "Pending messages per work queue.",
	}, []string{"queue"})

	tableCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fedcomment_table_count",
		Help: "Record count for a table.",
	}, []string{"table"})
)

// Collector 采集各表行数
type Collector struct {
	DB *gorm.DB
}

// CollectTables 刷新每张表的行数指标
func (c *Collector) CollectTables(ctx context.Context, tablers ...schema.Tabler) error {
	for _, t := range tablers {
		var count int64
		if err := c.DB.WithContext(ctx).Table(t.TableName()).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count %s: %w", t.TableName(), err)
		}
		tableCount.WithLabelValues(t.TableName()).Set(float64(count))
	}
	return nil
}
