package library

import (
	"context"

	"go.uber.org/zap"
)

// ObserveBooks returns a live view of all books ordered by title, case-
// insensitively. The current snapshot is delivered on subscription and a fresh
// one after every committed mutation of the books table. Delivery is
// latest-wins: a slow consumer sees a state at least as new as the previous
// emission, never one per intermediate change. Canceling ctx unsubscribes,
// closes the channel, and releases the registration without touching data.
func (r *Repository) ObserveBooks(ctx context.Context) (<-chan []Book, error) {
	snapshot, err := r.books.listOrdered(ctx, r.db.DB())
	if err != nil {
		return nil, err
	}

	ch := make(chan []Book, 1)
	ch <- snapshot

	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		if c, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(c)
		}
		r.mu.Unlock()
	}()

	return ch, nil
}

// notifyBooks re-reads the ordered list and fans it out to all subscribers,
// replacing any undelivered snapshot.
func (r *Repository) notifyBooks(ctx context.Context) {
	r.mu.Lock()
	n := len(r.subs)
	r.mu.Unlock()
	if n == 0 {
		return
	}

	books, err := r.books.listOrdered(ctx, r.db.DB())
	if err != nil {
		r.log.Warn("refresh book snapshot", zap.Error(err))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- books:
		default:
			// Drop the stale snapshot, then push the fresh one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- books:
			default:
			}
		}
	}
}
