package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func newStatsMetrics(t *testing.T) (*Metrics, *StatsReader) {
	t.Helper()
	stats := NewStatsReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(stats.Reader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, stats
}

func TestStatsReader_Collect(t *testing.T) {
	m, stats := newStatsMetrics(t)
	ctx := context.Background()

	m.RecordStage(ctx, StageTranscription, 2*time.Second, nil)
	m.RecordStage(ctx, StageTranscription, 4*time.Second, nil)
	m.RecordStage(ctx, StageSummarization, time.Second, errors.New("boom"))
	m.AudioDuration.Record(ctx, 90)
	m.RecordProviderRequest(ctx, "local", "llm", StatusOK)
	m.RecordProviderRequest(ctx, "local", "llm", StatusError)
	m.RecordProviderRequest(ctx, "whisper-native", "stt", StatusOK)
	m.RecordTokens(ctx, "local", 120, 30)

	st, err := stats.Collect(ctx)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	tr := st.Stages[StageTranscription]
	if tr.Runs != 2 || tr.Errors != 0 || tr.Total != 6*time.Second {
		t.Errorf("transcription = %+v", tr)
	}
	if got := tr.Mean(); got != 3*time.Second {
		t.Errorf("transcription mean = %v, want 3s", got)
	}
	if s := st.Stages[StageSummarization]; s.Runs != 1 || s.Errors != 1 {
		t.Errorf("summarization = %+v", s)
	}
	if _, ok := st.Stages[StageRecording]; ok {
		t.Error("recording stage reported without runs")
	}
	if st.Audio != 90*time.Second {
		t.Errorf("audio = %v, want 1m30s", st.Audio)
	}
	if got := st.Requests["local"]; got != (RequestStats{OK: 1, Failed: 1}) {
		t.Errorf("local requests = %+v", got)
	}
	if got := st.Requests["whisper-native"]; got != (RequestStats{OK: 1}) {
		t.Errorf("whisper-native requests = %+v", got)
	}
	if st.PromptTokens != 120 || st.CompletionTokens != 30 {
		t.Errorf("tokens = %d/%d, want 120/30", st.PromptTokens, st.CompletionTokens)
	}
}

func TestStatsReader_Empty(t *testing.T) {
	_, stats := newStatsMetrics(t)
	st, err := stats.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(st.Stages) != 0 || len(st.Requests) != 0 || st.PromptTokens != 0 {
		t.Errorf("expected empty stats, got %+v", st)
	}
	if got := (StageStats{}).Mean(); got != 0 {
		t.Errorf("Mean without runs = %v", got)
	}
}
