package config

import "testing"

func TestValidate_ClampsDefaults(t *testing.T) {
	cfg := Config{}
	cfg.Validate()

	if cfg.Gamma.PollIntervalSec != 5 {
		t.Errorf("PollIntervalSec = %d, want 5", cfg.Gamma.PollIntervalSec)
	}
	if cfg.Gamma.PollTimeoutSec != 300 {
		t.Errorf("PollTimeoutSec = %d, want 300", cfg.Gamma.PollTimeoutSec)
	}
	if cfg.MaxConcurrency != 3 {
		t.Errorf("MaxConcurrency = %d, want 3", cfg.MaxConcurrency)
	}
}

func TestValidate_KeepsExplicitValues(t *testing.T) {
	cfg := Config{
		Gamma:          GammaConfig{PollIntervalSec: 2, PollTimeoutSec: 60},
		MaxConcurrency: 8,
	}
	cfg.Validate()

	if cfg.Gamma.PollIntervalSec != 2 {
		t.Errorf("PollIntervalSec = %d, want 2", cfg.Gamma.PollIntervalSec)
	}
	if cfg.Gamma.PollTimeoutSec != 60 {
		t.Errorf("PollTimeoutSec = %d, want 60", cfg.Gamma.PollTimeoutSec)
	}
	if cfg.MaxConcurrency != 8 {
		t.Errorf("MaxConcurrency = %d, want 8", cfg.MaxConcurrency)
	}
}
