package logging

import "testing"

func TestNewProgressSamplerDefaults(t *testing.T) {
	tests := []struct {
		name   string
		bucket int
		want   int
	}{
		{"zero falls back", 0, 10},
		{"negative falls back", -3, 10},
		{"custom", 25, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucket)
			if s.bucket != tt.want {
				t.Fatalf("bucket = %d, want %d", s.bucket, tt.want)
			}
			if s.lastBucket != -1 {
				t.Fatalf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSamplerNilIsPermissive(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "transcribing") {
		t.Fatal("nil sampler should always log")
	}
	s.Reset()
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(10)
	steps := []struct {
		percent int
		stage   string
		want    bool
	}{
		{0, "loading model", true},
		{3, "loading model", false},
		{9, "loading model", false},
		{10, "loading model", true},
		{15, "loading model", false},
		{15, "transcribing", true},
		{17, "transcribing", false},
		{20, "transcribing", true},
		{150, "transcribing", true},
		{100, "transcribing", false},
		{-1, "transcribing", false},
		{-1, "aligning", true},
	}
	for i, step := range steps {
		if got := s.ShouldLog(step.percent, step.stage); got != step.want {
			t.Fatalf("step %d (%d%% %q): got %v want %v", i, step.percent, step.stage, got, step.want)
		}
	}
}

func TestProgressSamplerReset(t *testing.T) {
	s := NewProgressSampler(10)
	s.ShouldLog(50, "transcribing")
	s.Reset()
	if !s.ShouldLog(50, "transcribing") {
		t.Fatal("expected log after reset")
	}
}
