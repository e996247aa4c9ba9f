package renderjob

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobRunning  = errors.New("job is still running")
	ErrJobFinished = errors.New("job already finished")
)

// OpenSource resolves a job input (usually a file path) to a source.
type OpenSource func(ctx context.Context, input string) (Source, error)

// Sink stores a finished export and returns where it ended up.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) (location string, err error)
}

// Publisher fans job updates out to listeners.
type Publisher interface {
	Publish(kind string, v any)
}

// Event is published for every job change.
type Event struct {
	UpdateType string `json:"updateType"`
	Job        Job    `json:"job"`
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	DB        *sql.DB
	Open      OpenSource
	Sink      Sink
	Publisher Publisher
	// Concurrency is the number of renders allowed at once. Defaults to 1.
	Concurrency int
	Now         func() time.Time
}

// Manager queues render jobs, runs them and keeps their history.
type Manager struct {
	renderer *Renderer
	opts     ManagerOptions
	slots    chan struct{}
	log      *logrus.Entry

	mu    sync.Mutex
	jobs  map[string]*Job
	order []string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager loads job history from opts.DB (if set) and returns a manager.
// Jobs that were running when the process stopped are marked as errored.
func NewManager(r *Renderer, opts ManagerOptions) (*Manager, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		renderer: r,
		opts:     opts,
		slots:    make(chan struct{}, opts.Concurrency),
		log:      logrus.WithField("component", "renderjob.manager"),
		jobs:     make(map[string]*Job),
		ctx:      ctx,
		cancel:   cancel,
	}
	if opts.DB != nil {
		if err := m.createTable(); err != nil {
			cancel()
			return nil, fmt.Errorf("create render_jobs table: %w", err)
		}
		if err := m.load(); err != nil {
			cancel()
			return nil, fmt.Errorf("load render jobs: %w", err)
		}
	}
	return m, nil
}

func (m *Manager) createTable() error {
	_, err := m.opts.DB.Exec(`
	CREATE TABLE IF NOT EXISTS render_jobs (
		id TEXT PRIMARY KEY,
		input TEXT NOT NULL,
		spec TEXT NOT NULL, -- JSON
		state INTEGER NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		status TEXT,
		location TEXT,
		width INTEGER,
		height INTEGER,
		frames INTEGER,
		error TEXT,
		created_at DATETIME NOT NULL,
		started_at DATETIME,
		finished_at DATETIME
	)`)
	return err
}

func (m *Manager) load() error {
	rows, err := m.opts.DB.Query(`
	SELECT id, input, spec, state, progress, COALESCE(status, ''), COALESCE(location, ''),
		COALESCE(width, 0), COALESCE(height, 0), COALESCE(frames, 0), COALESCE(error, ''),
		created_at, started_at, finished_at
	FROM render_jobs
	ORDER BY created_at`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var interrupted []*Job
	for rows.Next() {
		var (
			j        Job
			specJSON string
			state    int
			started  sql.NullTime
			finished sql.NullTime
		)
		if err := rows.Scan(&j.ID, &j.Input, &specJSON, &state, &j.Progress, &j.Status, &j.Location,
			&j.Width, &j.Height, &j.Frames, &j.Error, &j.CreatedAt, &started, &finished); err != nil {
			m.log.WithError(err).Warn("skipping unreadable job row")
			continue
		}
		if err := json.Unmarshal([]byte(specJSON), &j.Spec); err != nil {
			m.log.WithError(err).WithField("job", j.ID).Warn("job spec unreadable")
		}
		j.StartedAt, j.FinishedAt = started.Time, finished.Time
		j.State = JobState(state)
		j.Phase = phaseFor(j.State)
		if !j.Done() {
			j.State = StateError
			j.Phase = PhaseFailed
			j.Error = "interrupted by shutdown"
			interrupted = append(interrupted, &j)
		}
		m.jobs[j.ID] = &j
		m.order = append(m.order, j.ID)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, j := range interrupted {
		if err := m.save(j); err != nil {
			m.log.WithError(err).WithField("job", j.ID).Warn("failed to persist interrupted job")
		}
	}
	if len(interrupted) > 0 {
		m.log.WithField("count", len(interrupted)).Info("marked interrupted renders as errored")
	}
	return nil
}

func phaseFor(s JobState) Phase {
	switch s {
	case StateCompleted:
		return PhaseCompleted
	case StateCancelled:
		return PhaseCancelled
	case StateError:
		return PhaseFailed
	default:
		return PhaseIdle
	}
}

func (m *Manager) save(j *Job) error {
	if m.opts.DB == nil {
		return nil
	}
	specJSON, err := json.Marshal(j.Spec)
	if err != nil {
		return err
	}
	_, err = m.opts.DB.Exec(`
	INSERT OR REPLACE INTO render_jobs (
		id, input, spec, state, progress, status, location, width, height, frames, error,
		created_at, started_at, finished_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Input, string(specJSON), int(j.State), j.Progress, j.Status, j.Location,
		j.Width, j.Height, j.Frames, j.Error, j.CreatedAt, j.StartedAt, j.FinishedAt)
	return err
}

// update applies fn to job id under the lock, persists it when persist is
// set and publishes the result.
func (m *Manager) update(id string, persist bool, fn func(*Job)) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	fn(j)
	snapshot := *j
	if persist {
		if err := m.save(j); err != nil {
			m.log.WithError(err).WithField("job", id).Warn("failed to persist job")
		}
	}
	m.mu.Unlock()
	m.publish("update", snapshot)
}

func (m *Manager) publish(kind string, j Job) {
	if m.opts.Publisher == nil {
		return
	}
	j.cancel = nil
	m.opts.Publisher.Publish("render", Event{UpdateType: kind, Job: j})
}

// Submit queues a render of input and returns the new job.
func (m *Manager) Submit(input string, spec Spec) (Job, error) {
	if m.ctx.Err() != nil {
		return Job{}, errors.New("manager is shut down")
	}
	ctx, cancel := context.WithCancel(m.ctx)
	j := &Job{
		ID:        uuid.NewString(),
		Input:     input,
		Spec:      spec,
		State:     StatePending,
		CreatedAt: m.opts.Now(),
		cancel:    cancel,
	}

	m.mu.Lock()
	m.jobs[j.ID] = j
	m.order = append(m.order, j.ID)
	if err := m.save(j); err != nil {
		m.log.WithError(err).WithField("job", j.ID).Warn("failed to persist job")
	}
	snapshot := *j
	m.mu.Unlock()
	m.publish("create", snapshot)

	m.wg.Add(1)
	go m.run(ctx, j.ID)
	return snapshot, nil
}

func (m *Manager) run(ctx context.Context, id string) {
	defer m.wg.Done()
	log := m.log.WithField("job", id)

	select {
	case m.slots <- struct{}{}:
	case <-ctx.Done():
		m.finish(id, Output{}, "", ErrCancelled)
		return
	}
	defer func() { <-m.slots }()
	if ctx.Err() != nil {
		m.finish(id, Output{}, "", ErrCancelled)
		return
	}

	var (
		input string
		spec  Spec
	)
	m.update(id, true, func(j *Job) {
		j.State = StateInProgress
		j.StartedAt = m.opts.Now()
		input, spec = j.Input, j.Spec
	})

	src, err := m.opts.Open(ctx, input)
	if err != nil {
		log.WithError(err).Warn("cannot open render source")
		m.finish(id, Output{}, "", err)
		return
	}
	if c, ok := src.(interface{ Close() error }); ok {
		defer c.Close()
	}

	lastPct := -1
	out, err := m.renderer.Render(ctx, spec, src, Observer{
		Phase: func(p Phase) {
			if p.Terminal() {
				return
			}
			m.update(id, false, func(j *Job) { j.Phase = p })
		},
		Progress: func(pct int) {
			if pct == lastPct {
				return
			}
			lastPct = pct
			m.update(id, false, func(j *Job) { j.Progress = pct })
		},
		Status: func(msg string) {
			m.update(id, false, func(j *Job) { j.Status = msg })
		},
	})
	if err != nil {
		m.finish(id, Output{}, "", err)
		return
	}

	name := OutputName(out, m.opts.Now())
	location := name
	if m.opts.Sink != nil {
		location, err = m.opts.Sink.Put(ctx, name, out.Data)
		if err != nil {
			m.finish(id, out, "", fmt.Errorf("store export: %w", err))
			return
		}
	}
	m.finish(id, out, location, nil)
}

func (m *Manager) finish(id string, out Output, location string, err error) {
	m.update(id, true, func(j *Job) {
		j.FinishedAt = m.opts.Now()
		j.Width, j.Height, j.Frames = out.Width, out.Height, out.Frames
		switch {
		case err == nil:
			j.State, j.Phase = StateCompleted, PhaseCompleted
			j.Progress = 100
			j.Location = location
			j.Status = "Done"
		case errors.Is(err, ErrCancelled):
			j.State, j.Phase = StateCancelled, PhaseCancelled
			j.Status = "Cancelled"
		default:
			j.State, j.Phase = StateError, PhaseFailed
			j.Error = err.Error()
		}
		if j.cancel != nil {
			j.cancel()
		}
	})
}

// OutputName names an exported video.
func OutputName(out Output, at time.Time) string {
	return fmt.Sprintf("fxlab-%dx%d-%d.%s", out.Width, out.Height, at.UnixMilli(), out.Extension)
}

// Cancel stops a pending or running job.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if j.Done() {
		return ErrJobFinished
	}
	if j.cancel != nil {
		j.cancel()
	}
	return nil
}

// Get returns a copy of job id.
func (m *Manager) Get(id string) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// List returns all jobs, newest first.
func (m *Manager) List() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Job, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, *m.jobs[m.order[i]])
	}
	return out
}

// Remove deletes a finished job from history.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return ErrJobNotFound
	}
	if !j.Done() {
		m.mu.Unlock()
		return ErrJobRunning
	}
	delete(m.jobs, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.opts.DB != nil {
		if _, err := m.opts.DB.Exec("DELETE FROM render_jobs WHERE id = ?", id); err != nil {
			m.log.WithError(err).WithField("job", id).Warn("failed to delete job row")
		}
	}
	m.mu.Unlock()
	m.publish("delete", Job{ID: id})
	return nil
}

// Wait blocks until every submitted job has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown cancels all jobs and waits for them to wind down.
func (m *Manager) Shutdown() {
	m.cancel()
	m.wg.Wait()
}
