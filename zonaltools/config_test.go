package zonaltools

import (
	"errors"
	"testing"
)

func TestWorkerCount(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		budget    uint64
		peak      uint64
		want      int
	}{
		{"no budget", 8, 0, 1 << 30, 8},
		{"unknown peak", 8, 1 << 30, 0, 8},
		{"budget allows all", 4, 8 << 30, 1 << 30, 4},
		{"budget limits", 8, 3 << 30, 1 << 30, 3},
		{"cube exceeds budget", 8, 1 << 20, 1 << 30, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WorkerCount(tt.requested, tt.budget, tt.peak); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
	if got := WorkerCount(0, 0, 0); got < 1 {
		t.Errorf("default worker count got %d", got)
	}
}

func TestEstimateCubeBytes(t *testing.T) {
	cfg := testConfig()
	cfg.Start = day(1)
	cfg.End = day(11)
	cfg.RevisitDays = 5
	f := Feature{Geometry: box(0, 0, 9, 4), CRS: testCRS}

	// 10 x 5 pixels, 3 acquisitions, 2 bands, 8 bytes.
	if got, want := EstimateCubeBytes(f, cfg), uint64(10*5*3*2*8); got != want {
		t.Errorf("got %d, want %d", got, want)
	}

	f.CRS = "EPSG:4326"
	if got := EstimateCubeBytes(f, cfg); got != 0 {
		t.Errorf("foreign CRS should not be estimated, got %d", got)
	}
	cfg.Resolution = 0
	if got := EstimateCubeBytes(Feature{Geometry: box(0, 0, 9, 4), CRS: testCRS}, cfg); got != 0 {
		t.Errorf("no resolution should not be estimated, got %d", got)
	}
}

func TestValidate(t *testing.T) {
	if err := testConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	cfg := testConfig()
	cfg.Bands = []string{"green", "nir", "green"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for duplicate band")
	}
	cfg = testConfig()
	cfg.Indices = append(cfg.Indices, cfg.Indices[0])
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for duplicate index")
	}
	cfg = testConfig()
	cfg.Indices = []IndexSpec{{Name: "green", A: "nir", B: "green"}}
	var cfgErr *ConfigError
	if err := cfg.Validate(); !errors.As(err, &cfgErr) || cfgErr.Field != "indices" {
		t.Errorf("index named like a band: got %v, want indices ConfigError", err)
	}
}
