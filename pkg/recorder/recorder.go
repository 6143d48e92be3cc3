package recorder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/T3-Labs/coop-cam/pkg/events"
	"github.com/T3-Labs/coop-cam/pkg/logger"
	"github.com/T3-Labs/coop-cam/pkg/metrics"
	"github.com/T3-Labs/coop-cam/pkg/mjpeg"
	"github.com/T3-Labs/coop-cam/pkg/ring"
	"github.com/T3-Labs/coop-cam/pkg/store"
	"github.com/T3-Labs/coop-cam/pkg/worker"
)

type State int

const (
	StateIdle State = iota
	StateTriggered
	StateRecording
	StateFinalizing
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateTriggered:
		return "TRIGGERED"
	case StateRecording:
		return "RECORDING"
	case StateFinalizing:
		return "FINALIZING"
	case StateCooldown:
		return "COOLDOWN"
	default:
		return "UNKNOWN"
	}
}

// Trigger é o evento de movimento vindo do analisador externo. Score fica em
// [0,1]; Payload é opaco e persiste nos metadados como chegou.
type Trigger struct {
	Score   float64         `json:"score"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type jobPhase int

const (
	phaseRecording jobPhase = iota
	phaseFinalizing
)

// Job acumula os frames de uma gravação: snapshot do pré-buffer no gatilho
// mais os frames ao vivo até o deadline.
type Job struct {
	ID          string
	TriggeredAt time.Time
	Trigger     Trigger

	phase    jobPhase
	frames   []mjpeg.Frame
	capped   bool
	deadline *time.Timer
}

// Metadata é o contrato persistido ao lado de cada vídeo.
type Metadata struct {
	ID         string     `json:"id"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    time.Time  `json:"endTime"`
	FrameCount int        `json:"frameCount"`
	Motion     MotionMeta `json:"motion"`
}

type MotionMeta struct {
	Score   float64         `json:"score"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Options struct {
	PostTrigger   time.Duration
	Cooldown      time.Duration
	MaxConcurrent int
	MaxFrames     int
	EncodeFPS     int
	RetentionTopK int
}

func (o *Options) applyDefaults() {
	if o.PostTrigger <= 0 {
		o.PostTrigger = 10 * time.Second
	}
	if o.Cooldown <= 0 {
		o.Cooldown = 30 * time.Second
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 1
	}
	if o.MaxFrames <= 0 {
		o.MaxFrames = 600
	}
	if o.EncodeFPS <= 0 {
		o.EncodeFPS = 15
	}
	if o.RetentionTopK <= 0 {
		o.RetentionTopK = 10
	}
}

// Recorder é a máquina de estados de gravação, única no processo, arbitrando
// todos os jobs ativos.
type Recorder struct {
	opts     Options
	emitter  *events.Emitter
	pre      *ring.PreBuffer
	pool     *worker.Pool
	provider store.Provider
	encoder  Encoder

	mu            sync.Mutex
	jobs          map[string]*Job
	collectCancel func()
	cooldown      bool
	cooldownTimer *time.Timer
}

func NewRecorder(opts Options, emitter *events.Emitter, pre *ring.PreBuffer, pool *worker.Pool, provider store.Provider, encoder Encoder) *Recorder {
	opts.applyDefaults()
	return &Recorder{
		opts:     opts,
		emitter:  emitter,
		pre:      pre,
		pool:     pool,
		provider: provider,
		encoder:  encoder,
		jobs:     make(map[string]*Job),
	}
}

// State retorna o estado corrente da máquina, derivado dos jobs ativos.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

func (r *Recorder) stateLocked() State {
	if r.cooldown {
		return StateCooldown
	}
	recording, finalizing := 0, 0
	for _, j := range r.jobs {
		switch j.phase {
		case phaseRecording:
			recording++
		case phaseFinalizing:
			finalizing++
		}
	}
	if recording > 0 {
		return StateRecording
	}
	if finalizing > 0 {
		return StateFinalizing
	}
	return StateIdle
}

// ActiveJobs retorna o número de gravações em andamento.
func (r *Recorder) ActiveJobs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// OnMotionTrigger processa um gatilho de movimento. Aceito apenas com a
// máquina ociosa ou gravando abaixo do teto de concorrência; em qualquer
// outro estado o gatilho é descartado em silêncio (só logado).
func (r *Recorder) OnMotionTrigger(trigger Trigger) bool {
	r.mu.Lock()

	state := r.stateLocked()
	if state != StateIdle && state != StateRecording {
		r.mu.Unlock()
		metrics.RecordingsTriggered.WithLabelValues("rejected").Inc()
		logger.Log.Infow("Gatilho descartado: máquina ocupada",
			"state", state.String(),
			"score", trigger.Score)
		return false
	}
	if len(r.jobs) >= r.opts.MaxConcurrent {
		r.mu.Unlock()
		metrics.RecordingsTriggered.WithLabelValues("rejected").Inc()
		logger.Log.Infow("Gatilho descartado: teto de concorrência",
			"active_jobs", r.opts.MaxConcurrent,
			"score", trigger.Score)
		return false
	}

	now := time.Now()
	job := &Job{
		ID:          uuid.New().String(),
		TriggeredAt: now,
		Trigger:     trigger,
		phase:       phaseRecording,
	}

	// TRIGGERED→RECORDING: snapshot do pré-buffer vira o começo do vídeo
	job.frames = r.pre.Snapshot()
	if len(job.frames) > r.opts.MaxFrames {
		job.frames = job.frames[:r.opts.MaxFrames]
		job.capped = true
	}

	r.jobs[job.ID] = job

	if r.collectCancel == nil {
		r.collectCancel = r.emitter.SubscribeFrames(r.collectFrame)
	}

	jobID := job.ID
	job.deadline = time.AfterFunc(r.opts.PostTrigger, func() {
		r.finalize(jobID)
	})
	r.mu.Unlock()

	metrics.RecordingsTriggered.WithLabelValues("accepted").Inc()
	logger.Log.Infow("Gravação disparada",
		"job_id", job.ID,
		"score", trigger.Score,
		"pre_buffer_frames", len(job.frames))
	return true
}

// collectFrame anexa cada frame ao vivo a todos os jobs em fase de coleta,
// respeitando o teto duro de frames por job.
func (r *Recorder) collectFrame(frame mjpeg.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, job := range r.jobs {
		if job.phase != phaseRecording {
			continue
		}
		if len(job.frames) >= r.opts.MaxFrames {
			if !job.capped {
				job.capped = true
				logger.Log.Warnw("Teto de frames atingido, coleta truncada",
					"job_id", job.ID,
					"max_frames", r.opts.MaxFrames)
			}
			continue
		}
		job.frames = append(job.frames, frame.Clone())
	}
}

// finalize move o job para FINALIZING e entrega os frames ao encoder via
// worker pool. Disparado pelo timer de deadline pós-gatilho.
func (r *Recorder) finalize(jobID string) {
	r.mu.Lock()
	job, ok := r.jobs[jobID]
	if !ok || job.phase != phaseRecording {
		r.mu.Unlock()
		return
	}
	job.phase = phaseFinalizing

	// Último coletor sai: cancela a assinatura de frames
	stillRecording := false
	for _, j := range r.jobs {
		if j.phase == phaseRecording {
			stillRecording = true
			break
		}
	}
	if !stillRecording && r.collectCancel != nil {
		r.collectCancel()
		r.collectCancel = nil
	}
	frameCount := len(job.frames)
	r.mu.Unlock()

	logger.Log.Infow("Coleta encerrada, codificação enfileirada",
		"job_id", jobID,
		"frames", frameCount)

	if err := r.pool.Submit(&encodeJob{recorder: r, job: job}); err != nil {
		r.jobFailed(job, fmt.Sprintf("fila de codificação indisponível: %v", err))
	}
}

// encodeJob adapta um Job do recorder para o contrato do worker pool.
type encodeJob struct {
	recorder *Recorder
	job      *Job
}

func (ej *encodeJob) GetID() string { return ej.job.ID }

func (ej *encodeJob) Process(ctx context.Context) error {
	return ej.recorder.processEncode(ctx, ej.job)
}

func (r *Recorder) processEncode(ctx context.Context, job *Job) error {
	if len(job.frames) == 0 {
		r.jobFailed(job, "nenhum frame coletado")
		return fmt.Errorf("job %s sem frames", job.ID)
	}

	start := time.Now()
	video, err := r.encoder.Encode(ctx, job.frames, r.opts.EncodeFPS)
	metrics.EncodeLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		r.jobFailed(job, fmt.Sprintf("falha de codificação: %v", err))
		return err
	}

	base := recordingBase(job)
	videoKey := base + ".mp4"
	endTime := time.Now()

	if err := r.provider.Put(videoKey, bytes.NewReader(video), "video/mp4"); err != nil {
		r.jobFailed(job, fmt.Sprintf("falha ao gravar vídeo: %v", err))
		return err
	}

	// Thumbnail = primeiro frame do vídeo
	if err := r.provider.Put(base+".jpg", bytes.NewReader(job.frames[0].Data), "image/jpeg"); err != nil {
		logger.Log.Warnw("Falha ao gravar thumbnail", "job_id", job.ID, "error", err)
	}

	meta := Metadata{
		ID:         job.ID,
		StartTime:  job.TriggeredAt,
		EndTime:    endTime,
		FrameCount: len(job.frames),
		Motion: MotionMeta{
			Score:   job.Trigger.Score,
			Payload: job.Trigger.Payload,
		},
	}
	metaBytes, _ := json.Marshal(meta)
	if err := r.provider.Put(base+".json", bytes.NewReader(metaBytes), "application/json"); err != nil {
		logger.Log.Warnw("Falha ao gravar metadados", "job_id", job.ID, "error", err)
	}

	duration := float64(len(job.frames)) / float64(r.opts.EncodeFPS)

	metrics.RecordingsCompleted.WithLabelValues("success").Inc()
	logger.Log.Infow("Gravação finalizada",
		"job_id", job.ID,
		"output", videoKey,
		"frames", len(job.frames),
		"duration_s", duration)

	r.emitter.EmitRecordingComplete(events.RecordingComplete{
		JobID:           job.ID,
		OutputPath:      videoKey,
		FrameCount:      len(job.frames),
		DurationSeconds: duration,
		Score:           job.Trigger.Score,
		Timestamp:       endTime,
	})

	if err := EnforceRetention(r.provider, dayFolder(job.TriggeredAt), r.opts.RetentionTopK); err != nil {
		logger.Log.Warnw("Falha na retenção", "error", err)
	}

	r.removeJob(job)
	return nil
}

func (r *Recorder) jobFailed(job *Job, reason string) {
	metrics.RecordingsCompleted.WithLabelValues("failure").Inc()
	logger.Log.Errorw("Gravação descartada",
		"job_id", job.ID,
		"reason", reason)

	r.emitter.EmitRecordingFailed(events.RecordingFailed{
		JobID:     job.ID,
		Reason:    reason,
		Timestamp: time.Now(),
	})

	r.removeJob(job)
}

// removeJob retira o job do conjunto; com o último removido a máquina entra
// em COOLDOWN antes de voltar a aceitar gatilhos.
func (r *Recorder) removeJob(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job.deadline != nil {
		job.deadline.Stop()
	}
	delete(r.jobs, job.ID)
	job.frames = nil

	if len(r.jobs) > 0 {
		return
	}

	if r.collectCancel != nil {
		r.collectCancel()
		r.collectCancel = nil
	}

	r.cooldown = true
	if r.cooldownTimer != nil {
		r.cooldownTimer.Stop()
	}
	r.cooldownTimer = time.AfterFunc(r.opts.Cooldown, func() {
		r.mu.Lock()
		r.cooldown = false
		r.mu.Unlock()
		logger.Log.Debug("Cooldown encerrado, pronto para novos gatilhos")
	})
}

func dayFolder(t time.Time) string {
	return t.Format("2006-01-02")
}

func recordingBase(job *Job) string {
	return fmt.Sprintf("%s/recording_%s_%s",
		dayFolder(job.TriggeredAt),
		job.TriggeredAt.Format("150405"),
		job.ID[:8])
}
