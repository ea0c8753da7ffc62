package config

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/mihcharts/chartcore/internal/pipeline"
	"github.com/mihcharts/chartcore/internal/types"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadFromBytes(t *testing.T) {
	yaml := []byte(`
data:
  path: /tmp/bars.db
  symbol: ES
  interval: 5m
indicators:
  heiken_ashi:
    enabled: true
    as_source: true
  bands:
    enabled: true
    period: 10
    ma_type: ema
    multipliers: [1, 2, 3]
  sequential:
    enabled: false
metrics:
  enabled: true
  port: 9100
logging:
  level: debug
`)
	cfg, err := LoadFromBytes(yaml)
	if err != nil {
		t.Fatalf("LoadFromBytes: %v", err)
	}

	if cfg.Data.Symbol != "ES" || cfg.Data.Interval != "5m" {
		t.Errorf("data = %+v", cfg.Data)
	}
	if cfg.Indicators.Bands.Period != 10 || cfg.Indicators.Bands.MAType != "ema" {
		t.Errorf("bands = %+v", cfg.Indicators.Bands)
	}
	if cfg.Metrics.Port != 9100 {
		t.Errorf("metrics port = %d", cfg.Metrics.Port)
	}
	if cfg.Logging.SlogLevel() != slog.LevelDebug {
		t.Errorf("level = %v", cfg.Logging.SlogLevel())
	}
}

func TestLoadFromBytesExpandsEnv(t *testing.T) {
	os.Setenv("CHARTCORE_TEST_DB", "/tmp/env.db")
	defer os.Unsetenv("CHARTCORE_TEST_DB")

	cfg, err := LoadFromBytes([]byte("data:\n  path: ${CHARTCORE_TEST_DB}\n  interval: 1d\n"))
	if err != nil {
		t.Fatalf("LoadFromBytes: %v", err)
	}
	if cfg.Data.Path != "/tmp/env.db" {
		t.Errorf("path = %s", cfg.Data.Path)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Data.Path = ""
	cfg.Indicators.Bands.Period = 0
	cfg.Indicators.Sequential.QualifierBar = 99
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = -1
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	if !errors.Is(err, types.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
	for _, want := range []string{"data.path", "indicators.bands", "indicators.sequential", "metrics.port", "logging.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestValidateSourceRequiresTransform(t *testing.T) {
	cfg := Default()
	cfg.Indicators.HeikenAshi.Enabled = false
	cfg.Indicators.HeikenAshi.AsSource = true

	if err := cfg.Validate(); !errors.Is(err, types.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestRequests(t *testing.T) {
	cfg := Default()
	cfg.Indicators.HeikenAshi.AsSource = true

	reqs := cfg.Requests()
	if len(reqs) != 3 {
		t.Fatalf("got %d requests, want 3", len(reqs))
	}
	if reqs[0].Kind != pipeline.KindHeikenAshi {
		t.Errorf("first request %v", reqs[0].Kind)
	}
	if reqs[1].Kind != pipeline.KindBands || reqs[1].Source != pipeline.SourceHeikenAshi {
		t.Errorf("bands request = %+v", reqs[1])
	}
	if reqs[2].Kind != pipeline.KindSequential || reqs[2].Sequential.SetupTarget != 9 {
		t.Errorf("sequential request = %+v", reqs[2])
	}
}
