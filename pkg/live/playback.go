package live

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-go-golems/shift/pkg/audio"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrOutputClosed = errors.New("playback output closed")

// Source is one scheduled buffer.
type Source interface {
	Stop()
}

// Output plays buffers against its own monotonic playback clock.
type Output interface {
	// Now is the current position of the playback clock.
	Now() time.Duration
	// Schedule starts buf at the given clock position.
	Schedule(buf *audio.Buffer, at time.Duration) (Source, error)
	Close() error
}

type scheduledSource struct {
	source Source
	end    time.Duration
}

// Scheduler queues model audio back to back on an Output so that consecutive
// chunks play without gaps or overlap.
type Scheduler struct {
	mu        sync.Mutex
	out       Output
	nextStart time.Duration
	sources   []scheduledSource
}

func NewScheduler(out Output) *Scheduler {
	return &Scheduler{out: out}
}

// Enqueue schedules buf at max(nextStart, now) and advances nextStart by its duration.
func (s *Scheduler) Enqueue(buf *audio.Buffer) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.out.Now()
	s.prune(now)

	start := s.nextStart
	if now > start {
		start = now
	}
	src, err := s.out.Schedule(buf, start)
	if err != nil {
		return 0, err
	}
	s.nextStart = start + buf.Duration()
	s.sources = append(s.sources, scheduledSource{source: src, end: s.nextStart})
	return start, nil
}

// Interrupt stops every scheduled or playing source and resets the playback
// cursor to 0. It returns the number of sources that were dropped.
func (s *Scheduler) Interrupt() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune(s.out.Now())
	n := len(s.sources)
	for _, ss := range s.sources {
		ss.source.Stop()
	}
	s.sources = nil
	s.nextStart = 0
	return n
}

func (s *Scheduler) NextStart() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}

// Pending is the number of sources that have not finished playing.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune(s.out.Now())
	return len(s.sources)
}

// prune forgets sources that ended before now.
func (s *Scheduler) prune(now time.Duration) {
	kept := s.sources[:0]
	for _, ss := range s.sources {
		if ss.end > now {
			kept = append(kept, ss)
		}
	}
	s.sources = kept
}

// WriterOutput renders scheduled buffers as PCM16 LE to a writer, each one
// written when the wall clock reaches its start position.
type WriterOutput struct {
	w       io.Writer
	started time.Time

	queue     chan *writerSource
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type writerSource struct {
	buf      *audio.Buffer
	at       time.Duration
	stopped  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
}

// Stop discards the source and wakes the playback loop if it is waiting for it.
func (s *writerSource) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		close(s.stop)
	})
}

func NewWriterOutput(w io.Writer) *WriterOutput {
	o := &WriterOutput{
		w:       w,
		started: time.Now(),
		queue:   make(chan *writerSource, 64),
		closed:  make(chan struct{}),
	}
	o.wg.Add(1)
	go o.loop()
	return o
}

func (o *WriterOutput) Now() time.Duration {
	return time.Since(o.started)
}

func (o *WriterOutput) Schedule(buf *audio.Buffer, at time.Duration) (Source, error) {
	src := &writerSource{buf: buf, at: at, stop: make(chan struct{})}
	select {
	case <-o.closed:
		return nil, ErrOutputClosed
	default:
	}
	select {
	case o.queue <- src:
		return src, nil
	case <-o.closed:
		return nil, ErrOutputClosed
	}
}

func (o *WriterOutput) loop() {
	defer o.wg.Done()
	for {
		select {
		case <-o.closed:
			return
		case src := <-o.queue:
			if src.stopped.Load() {
				continue
			}
			if wait := src.at - o.Now(); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-o.closed:
					timer.Stop()
					return
				case <-src.stop:
					timer.Stop()
					continue
				case <-timer.C:
				}
			}
			if src.stopped.Load() {
				continue
			}
			if _, err := o.w.Write(audio.FloatToPCM16(src.buf.Samples)); err != nil {
				log.Warn().Err(err).Msg("Could not write playback audio")
			}
		}
	}
}

// Close stops playback and closes the writer when it is closable. Buffers
// not yet written are dropped.
func (o *WriterOutput) Close() error {
	var err error
	o.closeOnce.Do(func() {
		close(o.closed)
		o.wg.Wait()
		if closer, ok := o.w.(io.Closer); ok {
			err = closer.Close()
		}
	})
	return err
}
