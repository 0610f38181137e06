package resampler

import "testing"

func TestConverterPassthrough(t *testing.T) {
	c, err := New(16000, 16000)
	if err != nil {
		t.Fatal(err)
	}
	in := []float32{0.1, -0.2, 0.3}
	out, err := c.Process(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d = %v, want %v", i, out[i], in[i])
		}
	}
	in[0] = 1
	if out[0] == 1 {
		t.Error("output aliases input")
	}
}

func TestConverterInvalidRates(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
	}{
		{"zero input", 0, 16000},
		{"zero output", 48000, 0},
		{"negative", -1, 16000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.from, tt.to); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestConverterDownsample(t *testing.T) {
	c, err := New(48000, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if c.InputRate() != 48000 || c.OutputRate() != 16000 {
		t.Fatalf("rates = %d -> %d", c.InputRate(), c.OutputRate())
	}
	var total int
	frame := make([]float32, 4800)
	for range 10 {
		out, err := c.Process(frame)
		if err != nil {
			t.Fatal(err)
		}
		total += len(out)
	}
	// 1s of input; allow for the resampler's internal delay.
	if total > 16000 || total < 14000 {
		t.Errorf("total output = %d samples, want about 16000", total)
	}
}
