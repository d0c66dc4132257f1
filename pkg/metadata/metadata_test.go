package metadata

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	t1 = t0.Add(90 * time.Second)
)

func TestNewBronzeMetadata(t *testing.T) {
	m, err := NewBronzeMetadata("property", "bronze_properties", []string{"a.json", "b.json"}, 420, 0, t0, t1)
	require.NoError(t, err)
	assert.Equal(t, int64(420), m.RowCount)
	assert.Equal(t, 90*time.Second, m.Duration)
	assert.Equal(t, []string{"a.json", "b.json"}, m.SourcePaths)
}

func TestNewBronzeMetadataRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		entity string
		table  string
		rows   int64
		sample int
		end    time.Time
	}{
		{"empty entity", "", "bronze_properties", 1, 0, t1},
		{"empty table", "property", "", 1, 0, t1},
		{"negative rows", "property", "bronze_properties", -1, 0, t1},
		{"negative sample", "property", "bronze_properties", 1, -5, t1},
		{"finished before started", "property", "bronze_properties", 1, 0, t0.Add(-time.Second)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBronzeMetadata(tt.entity, tt.table, nil, tt.rows, tt.sample, t0, tt.end)
			assert.Error(t, err)
		})
	}
}

func TestNewSilverMetadataDerivesDropped(t *testing.T) {
	m, err := NewSilverMetadata("property", "silver_properties", 100, 93, 90, t0, t1)
	require.NoError(t, err)
	assert.Equal(t, int64(7), m.Dropped)
}

func TestNewSilverMetadataRejectsInflation(t *testing.T) {
	_, err := NewSilverMetadata("property", "silver_properties", 10, 11, 0, t0, t1)
	assert.Error(t, err, "output larger than input must be rejected")

	_, err = NewSilverMetadata("property", "silver_properties", 10, 8, 9, t0, t1)
	assert.Error(t, err, "more embedding texts than rows must be rejected")
}

func TestNewEmbeddingMetadata(t *testing.T) {
	m, err := NewEmbeddingMetadata("property", "voyage", "voyage-3", 1024, 200, 180, 20, 2, t0, t1)
	require.NoError(t, err)
	assert.Equal(t, int64(180), m.Embedded)

	_, err = NewEmbeddingMetadata("property", "voyage", "voyage-3", 1024, 100, 90, 20, 2, t0, t1)
	assert.Error(t, err, "embedded+failed beyond requested must be rejected")

	_, err = NewEmbeddingMetadata("property", "voyage", "voyage-3", 0, 10, 10, 0, 1, t0, t1)
	assert.Error(t, err, "zero dimension must be rejected")
}

func TestValidationResult(t *testing.T) {
	clean := ValidationResult{
		Entity: "property",
		Table:  "bronze_properties",
		Checks: []CheckResult{{Name: "null_pk"}, {Name: "dup_pk"}},
	}
	assert.True(t, clean.Passed())
	assert.Equal(t, int64(0), clean.TotalFailed())

	dirty := ValidationResult{
		Checks: []CheckResult{{Name: "null_pk", Failed: 2}, {Name: "dup_pk", Failed: 3}},
	}
	assert.False(t, dirty.Passed())
	assert.Equal(t, int64(5), dirty.TotalFailed())
}

func TestStageMetricsRates(t *testing.T) {
	m := StageMetrics{
		Stage:      "silver",
		Entity:     "property",
		InputRows:  1000,
		OutputRows: 900,
		StartedAt:  t0,
		FinishedAt: t0.Add(10 * time.Second),
	}
	assert.InDelta(t, 90.0, m.RecordsPerSecond(), 0.001)
	assert.InDelta(t, 0.9, m.SuccessRate(), 0.001)

	empty := StageMetrics{Stage: "gold", StartedAt: t0, FinishedAt: t0}
	assert.Equal(t, 1.0, empty.SuccessRate(), "no-input stages count as fully successful")
	assert.Equal(t, 0.0, empty.RecordsPerSecond())
}

func TestPipelineMetricsStatus(t *testing.T) {
	p := NewPipelineMetrics()
	require.NotEmpty(t, p.RunID)

	p.AddStage(StageMetrics{Stage: "bronze", OutputRows: 10})
	p.Finish()
	assert.Equal(t, RunSucceeded, p.Status)

	p2 := NewPipelineMetrics()
	p2.AddStage(StageMetrics{Stage: "bronze", OutputRows: 10})
	p2.AddFailure("silver:property", errors.New("boom"))
	p2.Finish()
	assert.Equal(t, RunPartial, p2.Status)

	p3 := NewPipelineMetrics()
	p3.AddFailure("bronze:property", errors.New("boom"))
	p3.Finish()
	assert.Equal(t, RunFailed, p3.Status)
}
