package encode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"encodec-converter/internal/audio"
	"encodec-converter/internal/codec"
	"encodec-converter/internal/domain"
	"encodec-converter/internal/jobs"
	"encodec-converter/internal/metrics"
)

// Normalizer loads a source file in the layout a codec profile expects.
type Normalizer interface {
	Preflight(path string) error
	TranscoderAvailable() bool
	Normalize(ctx context.Context, req audio.Request) (audio.Waveform, error)
}

// Outcome is the terminal result of one job.
type Outcome struct {
	JobID        string           `json:"jobId"`
	Status       domain.JobStatus `json:"status"`
	OutputPath   string           `json:"outputPath"`
	Chunks       int              `json:"chunks"`
	AudioSeconds float64          `json:"audioSeconds"`
	Elapsed      time.Duration    `json:"elapsed"`
	Err          error            `json:"-"`
}

// ElapsedString renders the wall time as HH:MM:SS.
func (o Outcome) ElapsedString() string {
	return FormatElapsed(o.Elapsed)
}

// Options wires the orchestrator collaborators. Registry and Normalizer are
// required; the rest default to fresh in-process instances.
type Options struct {
	Registry   *codec.Registry
	Normalizer Normalizer
	Guard      *jobs.Guard
	Manager    *jobs.Manager
	Events     *jobs.EventBus
	Metrics    *metrics.Recorder
	Logger     zerolog.Logger
	// Observer is subscribed to Events and sees every event in order.
	Observer   func(jobs.Event)
}

// Orchestrator runs single-flight encoding jobs on a background worker.
type Orchestrator struct {
	registry   *codec.Registry
	normalizer Normalizer
	guard      *jobs.Guard
	manager    *jobs.Manager
	events     *jobs.EventBus
	scheduler  *Scheduler
	writer     *Writer
	metrics    *metrics.Recorder
	logger     zerolog.Logger

	newID    func() string
	now      func() time.Time
	stat     func(name string) (os.FileInfo, error)
	mkdirAll func(path string, perm os.FileMode) error
}

// New builds an orchestrator from opts.
func New(opts Options) *Orchestrator {
	if opts.Guard == nil {
		opts.Guard = jobs.NewGuard("")
	}
	if opts.Manager == nil {
		opts.Manager = jobs.NewManager()
	}
	if opts.Events == nil {
		opts.Events = jobs.NewEventBus(1000)
	}
	opts.Events.Subscribe(opts.Observer)
	return &Orchestrator{
		registry:   opts.Registry,
		normalizer: opts.Normalizer,
		guard:      opts.Guard,
		manager:    opts.Manager,
		events:     opts.Events,
		scheduler:  NewScheduler(opts.Logger),
		writer:     NewWriter(opts.Logger),
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		newID:      uuid.NewString,
		now:        time.Now,
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
	}
}

// Current returns the last observed job.
func (o *Orchestrator) Current() domain.Job {
	return o.manager.Current()
}

// Events returns buffered events newer than sinceSeq.
func (o *Orchestrator) Events(sinceSeq int64) []jobs.Event {
	return o.events.Since(sinceSeq)
}

// Busy reports whether a job holds the guard.
func (o *Orchestrator) Busy() bool {
	return o.guard.Busy()
}

// Validate checks spec against the codec profiles without touching engines.
func (o *Orchestrator) Validate(spec domain.EncodingJobSpec) error {
	source := strings.TrimSpace(spec.SourcePath)
	if source == "" {
		return domain.ConfigurationError("no file selected", nil)
	}

	profile, ok := codec.LookupProfile(spec.Variant)
	if !ok {
		return domain.ConfigurationError(fmt.Sprintf("unknown model variant %q", spec.Variant), nil)
	}
	if !profile.Supports(spec.Bitrate) {
		return domain.ConfigurationError(
			fmt.Sprintf("%g kbps with %s model is not supported (choose %s)", spec.Bitrate, spec.Variant, profile.BitrateList()),
			nil,
		)
	}

	info, err := o.stat(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.ConfigurationError(fmt.Sprintf("file not found: %s", source), err)
		}
		return domain.IOError("validation", fmt.Sprintf("cannot access %s", source), err)
	}
	if !info.Mode().IsRegular() {
		return domain.ConfigurationError(fmt.Sprintf("not a regular file: %s", source), nil)
	}

	if strings.TrimSpace(spec.DestinationPath) == "" {
		return domain.ConfigurationError("destination path is required", nil)
	}
	if spec.ChunkingEnabled {
		if _, err := ChunkFrames(profile.SampleRate, spec.ChunkSeconds); err != nil {
			return err
		}
	}
	return nil
}

// Preflight probes the environment for spec. Destination existence is
// reported, not judged; callers decide whether to overwrite.
func (o *Orchestrator) Preflight(spec domain.EncodingJobSpec) (domain.Preflight, error) {
	facts := domain.Preflight{
		TranscodeRequired:   audio.RequiresTranscode(spec.SourcePath),
		TranscoderAvailable: o.normalizer.TranscoderAvailable(),
		Device:              o.registry.Device().Label(),
	}
	if info, err := o.stat(spec.DestinationPath); err == nil && !info.IsDir() {
		facts.DestinationExists = true
	}

	if err := o.normalizer.Preflight(spec.SourcePath); err != nil {
		return facts, err
	}
	if _, err := o.registry.Lookup(spec.Variant); err != nil {
		return facts, err
	}
	return facts, nil
}

// Submit validates spec, claims the guard and starts the job on a worker.
// The returned channel receives exactly one Outcome. The job is not
// cancelled when ctx is.
func (o *Orchestrator) Submit(ctx context.Context, spec domain.EncodingJobSpec) (domain.Job, <-chan Outcome, error) {
	if err := o.Validate(spec); err != nil {
		return domain.Job{}, nil, o.reject(spec, err)
	}
	if _, err := o.Preflight(spec); err != nil {
		return domain.Job{}, nil, o.reject(spec, err)
	}

	ok, err := o.guard.TryAcquire()
	if err != nil {
		if errors.Is(err, jobs.ErrGuardHeldElsewhere) {
			return domain.Job{}, nil, o.reject(spec, domain.ConcurrencyError(err))
		}
		return domain.Job{}, nil, o.reject(spec, domain.IOError("guard", "failed to acquire job lock", err))
	}
	if !ok {
		return domain.Job{}, nil, o.reject(spec, domain.ConcurrencyError(jobs.ErrJobAlreadyRunning))
	}

	jobID := o.newID()
	if err := o.manager.Start(jobID); err != nil {
		_ = o.guard.Release()
		return domain.Job{}, nil, o.reject(spec, domain.ConcurrencyError(err))
	}

	started := o.now()
	o.metrics.JobStarted()
	o.logger.Info().
		Str("job_id", jobID).
		Str("source", spec.SourcePath).
		Str("destination", spec.DestinationPath).
		Str("variant", string(spec.Variant)).
		Float64("bitrate", spec.Bitrate).
		Bool("chunking", spec.ChunkingEnabled).
		Msg("encoding job started")
	o.publishStatus(jobID, domain.JobStatusConverting, "Job started")

	done := make(chan Outcome, 1)
	go o.work(context.WithoutCancel(ctx), jobID, spec, started, done)
	return o.manager.Current(), done, nil
}

// Run submits spec and waits for its outcome. The returned error is the
// rejection or the job failure.
func (o *Orchestrator) Run(ctx context.Context, spec domain.EncodingJobSpec) (Outcome, error) {
	_, done, err := o.Submit(ctx, spec)
	if err != nil {
		return Outcome{Status: domain.JobStatusFailed, Err: err}, err
	}
	outcome := <-done
	return outcome, outcome.Err
}

func (o *Orchestrator) work(ctx context.Context, jobID string, spec domain.EncodingJobSpec, started time.Time, done chan<- Outcome) {
	outcome := Outcome{JobID: jobID, OutputPath: spec.DestinationPath}
	defer func() {
		if r := recover(); r != nil {
			outcome.Err = domain.CodecError("worker", "unexpected engine failure", fmt.Errorf("panic: %v", r))
		}
		o.finish(&outcome, spec, started)
		done <- outcome
		close(done)
	}()

	outcome.Chunks, outcome.AudioSeconds, outcome.Err = o.pipeline(ctx, jobID, spec)
}

func (o *Orchestrator) pipeline(ctx context.Context, jobID string, spec domain.EncodingJobSpec) (int, float64, error) {
	binding, err := o.registry.Lookup(spec.Variant)
	if err != nil {
		return 0, 0, err
	}
	profile := binding.Profile
	variant := string(spec.Variant)
	logger := o.logger.With().Str("job_id", jobID).Str("variant", variant).Logger()

	if err := o.mkdirAll(filepath.Dir(spec.DestinationPath), 0o755); err != nil {
		return 0, 0, domain.IOError("converting", "cannot create output folder", err)
	}

	message := "Loading audio..."
	if audio.RequiresTranscode(spec.SourcePath) {
		message = "Converting to WAV..."
	}
	o.publishStatus(jobID, domain.JobStatusConverting, message)

	wave, err := o.normalizer.Normalize(ctx, audio.Request{
		SourcePath: spec.SourcePath,
		Target:     profile.Format(),
		OnLog: func(log audio.CommandLog) {
			o.publish(jobs.Event{
				JobID:    jobID,
				Type:     jobs.EventTypeLog,
				Message:  "Command completed",
				Command:  log.Command,
				Args:     log.Args,
				ExitCode: log.ExitCode,
				Stdout:   log.Stdout,
				Stderr:   log.Stderr,
			})
		},
	})
	if err != nil {
		return 0, 0, err
	}
	audioSeconds := wave.Duration().Seconds()
	total := wave.Frames()

	if err := o.transition(jobID, domain.JobStatusEncoding, "Encoding..."); err != nil {
		return 0, 0, err
	}
	planned := plannedChunks(total, profile.SampleRate, spec.ChunkingEnabled, spec.ChunkSeconds)
	logger.Debug().Int("frames", total).Int("chunks", planned).Msg("audio normalized")

	lastProcessed := 0
	chunks, err := o.scheduler.Run(wave, binding, spec.Bitrate, spec.ChunkingEnabled, spec.ChunkSeconds,
		func(ordinal, processed, total int) {
			snapshot := ComputeProgress(processed, total, profile.SampleRate)
			snapshot.Chunk = ordinal + 1
			snapshot.Chunks = planned
			_ = o.manager.SetProgress(snapshot.Percent())
			o.metrics.ChunkEncoded(variant, float64(processed-lastProcessed)/float64(profile.SampleRate))
			lastProcessed = processed
			o.publish(jobs.Event{
				JobID:    jobID,
				Type:     jobs.EventTypeProgress,
				Status:   domain.JobStatusEncoding,
				Message:  "Encoding... " + snapshot.String(),
				Progress: &snapshot,
			})
		})
	if err != nil {
		return 0, audioSeconds, err
	}

	if err := o.transition(jobID, domain.JobStatusSaving, "Saving encoded chunks..."); err != nil {
		return 0, audioSeconds, err
	}
	if err := o.writer.Write(spec.DestinationPath, binding.Engine, chunks); err != nil {
		return 0, audioSeconds, err
	}
	return len(chunks), audioSeconds, nil
}

func (o *Orchestrator) finish(outcome *Outcome, spec domain.EncodingJobSpec, started time.Time) {
	outcome.Elapsed = o.now().Sub(started)
	elapsed := FormatElapsed(outcome.Elapsed)
	variant := string(spec.Variant)
	logger := o.logger.With().Str("job_id", outcome.JobID).Str("variant", variant).Logger()

	if outcome.Err != nil {
		classified := classify(outcome.Err)
		outcome.Err = classified
		outcome.Status = domain.JobStatusFailed
		_ = o.manager.Fail(*classified.Failure())

		logger.Error().Err(classified).Str("kind", string(classified.Kind)).Str("elapsed", elapsed).Msg("encoding job failed")
		o.publish(jobs.Event{
			JobID:     outcome.JobID,
			Type:      jobs.EventTypeError,
			Status:    domain.JobStatusFailed,
			Message:   classified.Error(),
			ErrorKind: classified.Kind,
			Elapsed:   elapsed,
		})
		o.publishStatus(outcome.JobID, domain.JobStatusFailed, "Job failed")
		o.metrics.JobFinished(variant, string(classified.Kind), outcome.Elapsed)
	} else {
		outcome.Status = domain.JobStatusDone
		if err := o.manager.Transition(domain.JobStatusDone); err != nil {
			logger.Warn().Err(err).Msg("job state out of sync")
		}

		logger.Info().
			Str("output", outcome.OutputPath).
			Int("chunks", outcome.Chunks).
			Float64("audio_seconds", outcome.AudioSeconds).
			Str("elapsed", elapsed).
			Msg("encoding complete")
		o.publishStatus(outcome.JobID, domain.JobStatusDone, "Done!")
		o.publish(jobs.Event{
			JobID:      outcome.JobID,
			Type:       jobs.EventTypeResult,
			Status:     domain.JobStatusDone,
			Message:    "Encoding complete! Saved as " + outcome.OutputPath,
			OutputPath: outcome.OutputPath,
			Elapsed:    elapsed,
		})
		o.metrics.JobFinished(variant, string(domain.JobStatusDone), outcome.Elapsed)
	}

	if err := o.guard.Release(); err != nil {
		logger.Warn().Err(err).Msg("failed to release job lock")
	}
}

func (o *Orchestrator) transition(jobID string, status domain.JobStatus, message string) error {
	if err := o.manager.Transition(status); err != nil {
		return domain.NewError(domain.KindCodec, string(status), "job state machine rejected transition", err)
	}
	o.publishStatus(jobID, status, message)
	return nil
}

func (o *Orchestrator) reject(spec domain.EncodingJobSpec, err error) error {
	kind := domain.KindOf(err)
	o.metrics.Rejected(string(spec.Variant), string(kind))
	o.logger.Warn().Err(err).Str("kind", string(kind)).Str("source", spec.SourcePath).Msg("encoding job rejected")
	return err
}

// publishStatus sends a normalized status event.
func (o *Orchestrator) publishStatus(jobID string, status domain.JobStatus, message string) {
	o.publish(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeStatus,
		Status:  status,
		Message: message,
	})
}

func (o *Orchestrator) publish(event jobs.Event) {
	o.events.Publish(event)
}

func classify(err error) *domain.Error {
	if classified, ok := domain.AsError(err); ok {
		return classified
	}
	return domain.NewError(domain.KindIO, "", "unexpected failure", err)
}

func plannedChunks(frames, sampleRate int, chunking bool, seconds float64) int {
	if !chunking {
		return ChunkCount(frames, frames)
	}
	size, err := ChunkFrames(sampleRate, seconds)
	if err != nil {
		return 0
	}
	return ChunkCount(frames, size)
}
