// Package saver coalesces rapid saves of one profile into a single write.
package saver

import (
	"log"
	"sync"
	"time"
)

// SaveFunc persists a document. Failures are logged and the next Schedule
// retries with a newer document.
type SaveFunc func(doc []byte) error

type Debouncer struct {
	delay  time.Duration
	save   SaveFunc
	logger *log.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending []byte
	gen     uint64
	flying  sync.WaitGroup

	// serializes writes so an older document never lands after a newer one
	writeMu sync.Mutex
	written uint64
}

func New(delay time.Duration, save SaveFunc, logger *log.Logger) *Debouncer {
	return &Debouncer{delay: delay, save: save, logger: logger}
}

// Schedule replaces any pending document and restarts the delay.
func (d *Debouncer) Schedule(doc []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	d.pending = doc
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Pending reports whether a scheduled document has not been written yet.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Flush writes the pending document now, or waits for a write already in
// progress.
func (d *Debouncer) Flush() error {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	doc, gen := d.pending, d.gen
	d.pending = nil
	d.mu.Unlock()
	if doc == nil {
		d.flying.Wait()
		return nil
	}
	return d.write(gen, doc)
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.pending == nil {
		d.mu.Unlock()
		return
	}
	doc := d.pending
	d.pending = nil
	d.timer = nil
	d.flying.Add(1)
	d.mu.Unlock()
	defer d.flying.Done()
	_ = d.write(gen, doc)
}

func (d *Debouncer) write(gen uint64, doc []byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	if gen <= d.written {
		return nil
	}
	if err := d.save(doc); err != nil {
		if d.logger != nil {
			d.logger.Printf("save failed: %v", err)
		}
		return err
	}
	d.written = gen
	return nil
}
