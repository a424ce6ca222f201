// Package dashboard derives display aggregates from the live book list. It is
// a consumer of the repository, not part of the transactional core.
package dashboard

import (
	"context"
	"sync"

	"libman/library"
)

// Summary is the aggregate rendered on the dashboard.
type Summary struct {
	TotalTitles      int
	TotalCopies      int
	AvailableCopies  int
	CheckedOutCopies int
	Empty            bool
}

// Summarize folds a book snapshot into dashboard counts.
func Summarize(books []library.Book) Summary {
	s := Summary{TotalTitles: len(books), Empty: len(books) == 0}
	for _, b := range books {
		s.TotalCopies += b.CopyCount
		s.AvailableCopies += b.AvailableCount
	}
	if out := s.TotalCopies - s.AvailableCopies; out > 0 {
		s.CheckedOutCopies = out
	}
	return s
}

// Watcher keeps the latest Summary current against the repository's live book
// list. Cancel the ctx passed to Watch to stop it.
type Watcher struct {
	mu      sync.RWMutex
	latest  Summary
	updates chan Summary
}

// Watch subscribes to the book list and starts folding snapshots. The first
// summary is available synchronously via Latest.
func Watch(ctx context.Context, repo *library.Repository) (*Watcher, error) {
	ch, err := repo.ObserveBooks(ctx)
	if err != nil {
		return nil, err
	}

	w := &Watcher{updates: make(chan Summary, 1)}
	if books, ok := <-ch; ok {
		w.latest = Summarize(books)
	}

	go func() {
		defer close(w.updates)
		for books := range ch {
			s := Summarize(books)
			w.mu.Lock()
			w.latest = s
			w.mu.Unlock()
			select {
			case w.updates <- s:
			default:
				select {
				case <-w.updates:
				default:
				}
				select {
				case w.updates <- s:
				default:
				}
			}
		}
	}()
	return w, nil
}

// Latest returns the most recently folded summary.
func (w *Watcher) Latest() Summary {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.latest
}

// Updates delivers summaries as fresh snapshots arrive, latest-wins.
func (w *Watcher) Updates() <-chan Summary {
	return w.updates
}
