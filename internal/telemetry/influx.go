package telemetry

import (
	"context"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"
	"github.com/pkg/errors"
)

const (
	DefaultInfluxDatabase = "petridish"
	DefaultInfluxInterval = 5 * time.Second
	influxMeasurement     = "arena"
)

// InfluxConfig configures the periodic metrics exporter. An empty Addr
// disables it.
type InfluxConfig struct {
	Addr     string
	Username string
	Password string
	Database string
	Interval time.Duration
	Tags     map[string]string
}

// pointWriter is the subset of the influx client the reporter relies on.
type pointWriter interface {
	Write(bp client.BatchPoints) error
	Close() error
}

// InfluxReporter pushes Counters snapshots to InfluxDB on an interval.
type InfluxReporter struct {
	cfg      InfluxConfig
	counters *Counters
	writer   pointWriter
	logger   Logger
	now      func() time.Time
}

// NewInfluxReporter returns nil when no address is configured.
func NewInfluxReporter(cfg InfluxConfig, counters *Counters, logger Logger) (*InfluxReporter, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  5 * time.Second,
	})
	if err != nil {
		return nil, errors.Wrap(err, "influx client")
	}
	return newInfluxReporter(cfg, counters, c, logger), nil
}

func newInfluxReporter(cfg InfluxConfig, counters *Counters, writer pointWriter, logger Logger) *InfluxReporter {
	if cfg.Database == "" {
		cfg.Database = DefaultInfluxDatabase
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInfluxInterval
	}
	if logger == nil {
		logger = LoggerFunc(nil)
	}
	return &InfluxReporter{cfg: cfg, counters: counters, writer: writer, logger: logger, now: time.Now}
}

// Run reports until ctx is cancelled.
func (r *InfluxReporter) Run(ctx context.Context) {
	if r == nil {
		return
	}
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	defer r.writer.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Report(); err != nil {
				r.logger.Printf("influx report failed: %v", err)
			}
		}
	}
}

// Report writes a single point holding every counter.
func (r *InfluxReporter) Report() error {
	snapshot := r.counters.Snapshot()
	if len(snapshot) == 0 {
		return nil
	}
	bp, err := client.NewBatchPoints(client.BatchPointsConfig{Database: r.cfg.Database, Precision: "ms"})
	if err != nil {
		return errors.Wrap(err, "batch points")
	}
	fields := make(map[string]interface{}, len(snapshot))
	for k, v := range snapshot {
		fields[k] = int64(v)
	}
	pt, err := client.NewPoint(influxMeasurement, r.cfg.Tags, fields, r.now())
	if err != nil {
		return errors.Wrap(err, "new point")
	}
	bp.AddPoint(pt)
	return errors.Wrap(r.writer.Write(bp), "write points")
}
