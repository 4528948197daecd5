package observe

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Stats is a snapshot of the pipeline metrics since startup.
type Stats struct {
	// Stages holds the totals of each pipeline stage keyed by stage name.
	Stages map[string]StageStats

	// Requests holds provider request counts keyed by provider name.
	Requests map[string]RequestStats

	// Audio is the total length of processed meeting audio.
	Audio time.Duration

	PromptTokens     int64
	CompletionTokens int64
}

// StageStats are the totals of one pipeline stage.
type StageStats struct {
	Runs   uint64
	Errors int64
	Total  time.Duration
}

// Mean returns the average stage duration, or zero without runs.
func (s StageStats) Mean() time.Duration {
	if s.Runs == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Runs)
}

// RequestStats counts the requests sent to one provider.
type RequestStats struct {
	OK     int64
	Failed int64
}

// StatsReader collects [Stats] from an SDK meter provider. Register
// [StatsReader.Reader] with the provider that backs [Metrics].
type StatsReader struct {
	reader *sdkmetric.ManualReader
}

// NewStatsReader returns a StatsReader with its own manual reader.
func NewStatsReader() *StatsReader {
	return &StatsReader{reader: sdkmetric.NewManualReader()}
}

// Reader returns the SDK reader to register with a meter provider.
func (r *StatsReader) Reader() sdkmetric.Reader { return r.reader }

// Collect reads the current metric values.
func (r *StatsReader) Collect(ctx context.Context) (Stats, error) {
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(ctx, &rm); err != nil {
		return Stats{}, fmt.Errorf("observe: collect stats: %w", err)
	}

	st := Stats{
		Stages:   make(map[string]StageStats),
		Requests: make(map[string]RequestStats),
	}
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != meterName {
			continue
		}
		for _, m := range sm.Metrics {
			switch m.Name {
			case metricStageDuration:
				h, _ := m.Data.(metricdata.Histogram[float64])
				for _, dp := range h.DataPoints {
					name := attrString(dp.Attributes, "stage")
					s := st.Stages[name]
					s.Runs += dp.Count
					s.Total += seconds(dp.Sum)
					st.Stages[name] = s
				}
			case metricStageErrors:
				sum, _ := m.Data.(metricdata.Sum[int64])
				for _, dp := range sum.DataPoints {
					name := attrString(dp.Attributes, "stage")
					s := st.Stages[name]
					s.Errors += dp.Value
					st.Stages[name] = s
				}
			case metricAudioDuration:
				h, _ := m.Data.(metricdata.Histogram[float64])
				for _, dp := range h.DataPoints {
					st.Audio += seconds(dp.Sum)
				}
			case metricProviderRequests:
				sum, _ := m.Data.(metricdata.Sum[int64])
				for _, dp := range sum.DataPoints {
					name := attrString(dp.Attributes, "provider")
					rs := st.Requests[name]
					if attrString(dp.Attributes, "status") == StatusOK {
						rs.OK += dp.Value
					} else {
						rs.Failed += dp.Value
					}
					st.Requests[name] = rs
				}
			case metricTokens:
				sum, _ := m.Data.(metricdata.Sum[int64])
				for _, dp := range sum.DataPoints {
					switch attrString(dp.Attributes, "direction") {
					case "prompt":
						st.PromptTokens += dp.Value
					case "completion":
						st.CompletionTokens += dp.Value
					}
				}
			}
		}
	}
	return st, nil
}

func attrString(set attribute.Set, key string) string {
	v, _ := set.Value(attribute.Key(key))
	return v.AsString()
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
