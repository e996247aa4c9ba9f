package segment

import (
	"image"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/stevecastle/fxlab/surface"
)

// Worker runs a Segmenter on its own goroutine. Request never blocks: a new
// frame replaces any frame still waiting. Each finished mask goes back to the
// caller that asked for it, so it may trail that caller's live frame by
// several ticks.
type Worker struct {
	seg Segmenter
	log *logrus.Entry

	pending chan job
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once

	runs   atomic.Int64
	failed atomic.Bool
}

type job struct {
	frame   *surface.Surface
	deliver func(*image.Gray)
}

// NewWorker starts a worker around seg. A nil seg yields a worker that
// never delivers a mask.
func NewWorker(seg Segmenter) *Worker {
	w := &Worker{
		seg:     seg,
		log:     logrus.WithField("component", "segment"),
		pending: make(chan job, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.quit:
			return
		case j := <-w.pending:
			if w.seg == nil {
				continue
			}
			mask, err := w.seg.Segment(j.frame.Image())
			w.runs.Add(1)
			if err != nil {
				// Log the first failure only; callers keep their last mask.
				if w.failed.CompareAndSwap(false, true) {
					w.log.WithError(err).Warn("segmentation failed")
				}
				continue
			}
			j.deliver(mask)
		}
	}
}

// Request queues frame for segmentation, replacing any queued request, and
// calls deliver with the mask from the worker goroutine. The worker keeps
// the pointer, so callers pass a copy they no longer mutate.
func (w *Worker) Request(frame *surface.Surface, deliver func(*image.Gray)) {
	j := job{frame: frame, deliver: deliver}
	for {
		select {
		case w.pending <- j:
			return
		default:
		}
		select {
		case <-w.pending:
		default:
		}
	}
}

// Runs counts finished segmentation attempts.
func (w *Worker) Runs() int64 { return w.runs.Load() }

// Close stops the worker and releases the segmenter.
func (w *Worker) Close() error {
	var err error
	w.once.Do(func() {
		close(w.quit)
		<-w.done
		if w.seg != nil {
			err = w.seg.Close()
		}
	})
	return err
}
