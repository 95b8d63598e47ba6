package audio

import "testing"

// TestRemixStereoToMonoAverages checks downmix semantics.
func TestRemixStereoToMonoAverages(t *testing.T) {
	wave := Waveform{SampleRate: 8000, Samples: [][]float32{{1, 0.5}, {0, -0.5}}}

	mono, err := Remix(wave, 1)
	if err != nil {
		t.Fatalf("Remix() error = %v", err)
	}
	if mono.Channels() != 1 || mono.Samples[0][0] != 0.5 || mono.Samples[0][1] != 0 {
		t.Fatalf("mono = %+v", mono.Samples)
	}
}

// TestRemixMonoToStereoReplicates checks upmix semantics.
func TestRemixMonoToStereoReplicates(t *testing.T) {
	wave := Waveform{SampleRate: 8000, Samples: [][]float32{{0.1, 0.2}}}

	stereo, err := Remix(wave, 2)
	if err != nil {
		t.Fatalf("Remix() error = %v", err)
	}
	if stereo.Channels() != 2 {
		t.Fatalf("channels = %d, want 2", stereo.Channels())
	}
	stereo.Samples[1][0] = 9
	if stereo.Samples[0][0] != 0.1 || wave.Samples[0][0] != 0.1 {
		t.Fatal("replicated channels must not share buffers")
	}
}

// TestRemixRejectsUnsupportedLayout checks 3 -> 2 channel refusal.
func TestRemixRejectsUnsupportedLayout(t *testing.T) {
	wave := NewWaveform(Format{SampleRate: 8000, Channels: 3}, 4)
	if _, err := Remix(wave, 2); err == nil {
		t.Fatal("expected error for 3 -> 2 channel remix")
	}
}

// TestResampleChangesLength checks rate conversion length and endpoints.
func TestResampleChangesLength(t *testing.T) {
	wave := sineWave(Format{SampleRate: 16000, Channels: 1}, 1600)

	up, err := Resample(wave, 24000)
	if err != nil {
		t.Fatalf("Resample() error = %v", err)
	}
	if up.SampleRate != 24000 || up.Frames() != 2400 {
		t.Fatalf("resampled = %d Hz / %d frames", up.SampleRate, up.Frames())
	}
	if up.Samples[0][0] != wave.Samples[0][0] {
		t.Fatalf("first sample = %f, want %f", up.Samples[0][0], wave.Samples[0][0])
	}

	same, err := Resample(wave, 16000)
	if err != nil {
		t.Fatalf("Resample() same rate error = %v", err)
	}
	if same.Frames() != wave.Frames() {
		t.Fatal("same-rate resample should pass through")
	}
}

// TestWaveformSliceClampsBounds checks window slicing used by the scheduler.
func TestWaveformSliceClampsBounds(t *testing.T) {
	wave := sineWave(Format{SampleRate: 8000, Channels: 2}, 10)

	tail := wave.Slice(8, 20)
	if tail.Frames() != 2 || tail.Channels() != 2 {
		t.Fatalf("tail = %d frames / %d channels", tail.Frames(), tail.Channels())
	}
	if tail.Samples[1][0] != wave.Samples[1][8] {
		t.Fatal("slice should view the source samples")
	}

	interleaved := wave.Slice(0, 2).Interleaved()
	if len(interleaved) != 4 || interleaved[1] != wave.Samples[1][0] {
		t.Fatalf("interleaved = %v", interleaved)
	}
}
