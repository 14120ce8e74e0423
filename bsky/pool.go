package main

import (
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	bolt "go.etcd.io/bbolt"

	"bitbucket.org/Davydov/bsky/beast"
	"bitbucket.org/Davydov/bsky/checkpoint"
	"bitbucket.org/Davydov/bsky/skyline"
)

// result is the analysis of one sample. Results are stored in the
// checkpoint.
type result struct {
	Index  int             `json:"index"`
	Label  string          `json:"label"`
	State  string          `json:"state"`
	Values []skyline.Value `json:"values,omitempty"`
	Change skyline.Change  `json:"change"`

	// cached is true for results read from the checkpoint.
	cached bool
}

// sampleSource is a stream of posterior samples ending with io.EOF.
type sampleSource interface {
	Next() (*beast.PosteriorSample, error)
}

// analyzer computes the result for a sample.
type analyzer func(*beast.PosteriorSample) (*result, error)

// task is a sample to analyse, seq is the position in the stream.
type task struct {
	seq    int
	sample *beast.PosteriorSample
}

// outcome is a worker output.
type outcome struct {
	seq int
	res *result
	err error
}

// pool analyses samples in parallel and returns results in sample
// order.
type pool struct {
	nThreads int
	report   int
	db       *bolt.DB
	cp       *checkpoint.CheckpointIO
	cache    map[int]*result
	// resumed counts emitted results taken from the cache.
	resumed int
	// signals stopping the run, none if empty.
	signals []os.Signal
}

// newPool creates a pool for the configuration, opening and loading
// the checkpoint if there is one.
func newPool(cfg *config) (p *pool, err error) {
	p = &pool{
		nThreads: cfg.NThreads,
		report:   cfg.Report,
		cache:    make(map[int]*result),
		signals:  []os.Signal{os.Interrupt, syscall.SIGUSR2},
	}
	if p.nThreads < 1 {
		p.nThreads = 1
	}

	if cfg.Checkpoint == "" {
		p.cp = checkpoint.NewCheckpointIO(nil, nil, 0)
		return p, nil
	}

	key, err := checkpoint.Key(cfg)
	if err != nil {
		return nil, err
	}
	p.db, err = bolt.Open(cfg.Checkpoint, 0666, nil)
	if err != nil {
		return nil, err
	}
	p.cp = checkpoint.NewCheckpointIO(p.db, key, cfg.CheckpointSeconds)
	_, err = p.cp.Results(func(i int, b []byte) error {
		var r result
		if err := checkpoint.Unmarshal(b, &r); err != nil {
			return err
		}
		r.cached = true
		p.cache[i] = &r
		return nil
	})
	if err != nil {
		p.db.Close()
		return nil, err
	}
	return p, nil
}

// close saves the checkpoint and closes the database.
func (p *pool) close() error {
	if p.db == nil {
		return nil
	}
	err := p.cp.Save()
	if cerr := p.db.Close(); err == nil {
		err = cerr
	}
	return err
}

// run reads all samples from src, analyses them with nThreads
// workers and passes the results to emit ordered as in src. The run
// stops early on the first error or on a signal; interrupted is true
// in the latter case.
func (p *pool) run(src sampleSource, analyze analyzer, emit func(*result) error) (n int, interrupted bool, err error) {
	tasks := make(chan task, p.nThreads*2)
	results := make(chan outcome, p.nThreads*2)
	quit := make(chan struct{})
	var quitOnce sync.Once
	stop := func() {
		quitOnce.Do(func() { close(quit) })
	}

	var mu sync.Mutex
	var firstErr error
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		stop()
	}
	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}

	// the signal handler owns interrupted until sigDone is closed
	finished := make(chan struct{})
	sigDone := make(chan struct{})
	if len(p.signals) > 0 {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, p.signals...)
		defer signal.Stop(sig)
		go func() {
			defer close(sigDone)
			select {
			case s := <-sig:
				log.Warningf("Received signal %v, exiting.", s)
				interrupted = true
				stop()
			case <-finished:
			}
		}()
	} else {
		close(sigDone)
	}

	var wg sync.WaitGroup
	for i := 0; i < p.nThreads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				if r, ok := p.cache[t.sample.Index]; ok {
					results <- outcome{seq: t.seq, res: r}
					continue
				}
				r, err := analyze(t.sample)
				results <- outcome{seq: t.seq, res: r, err: err}
			}
		}()
	}

	// producer
	go func() {
		defer close(tasks)
		for seq := 0; ; seq++ {
			s, err := src.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				fail(err)
				return
			}
			if p.report > 0 && seq%p.report == 0 {
				log.Noticef("Analysing tree %d", seq)
			}
			select {
			case tasks <- task{seq: seq, sample: s}:
			case <-quit:
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// collector, emits results in order
	pending := make(map[int]*result)
	next := 0
	for o := range results {
		if o.err != nil {
			fail(o.err)
			continue
		}
		if failed() {
			continue
		}
		pending[o.seq] = o.res
		for r, ok := pending[next]; ok; r, ok = pending[next] {
			delete(pending, next)
			next++
			if r.cached {
				p.resumed++
			} else {
				if err := p.cp.Add(r.Index, r); err != nil {
					log.Warning("Checkpoint not saved:", err)
				}
			}
			if err := emit(r); err != nil {
				fail(err)
				break
			}
			n++
		}
	}

	close(finished)
	<-sigDone

	mu.Lock()
	defer mu.Unlock()
	return n, interrupted, firstErr
}
