package privmsg

import (
	"context"
	"sync"
	"time"

	"github.com/rbaliyan/privmsg/store"
)

// StatsReader provides aggregate mailbox counts.
type StatsReader interface {
	// Stats returns folder counts for the caller. Results are cached per
	// principal for the refresh interval and dropped when this service
	// changes one of the principal's messages.
	Stats(ctx context.Context) (*MailboxStats, error)
	// UnreadCount returns the number of unread, undeleted inbox messages.
	// It does not mark anything as read.
	UnreadCount(ctx context.Context) (int64, error)
}

// statsEntry holds a cached stats snapshot for a single principal.
// gen counts invalidations; a refresh only stores its result if gen did
// not move while the store query ran.
type statsEntry struct {
	mu        sync.Mutex
	stats     *store.MailboxStats
	updatedAt time.Time
	gen       uint64
}

// getOrRefreshStats returns cached stats if within TTL, otherwise refreshes from the store.
func (s *service) getOrRefreshStats(ctx context.Context, owner PrincipalRef) (*store.MailboxStats, error) {
	val, _ := s.statsCache.LoadOrStore(owner.String(), &statsEntry{})
	entry := val.(*statsEntry)

	entry.mu.Lock()
	if entry.stats != nil && time.Since(entry.updatedAt) < s.opts.statsRefreshInterval {
		clone := entry.stats.Clone()
		entry.mu.Unlock()
		return clone, nil
	}
	gen := entry.gen
	entry.mu.Unlock()

	stats, err := s.store.MailboxStats(ctx, owner)
	if err != nil {
		return nil, wrapStoreError("mailbox stats", err)
	}

	entry.mu.Lock()
	if entry.gen == gen {
		entry.stats = stats
		entry.updatedAt = time.Now()
	}
	entry.mu.Unlock()
	return stats.Clone(), nil
}

// invalidateStats drops the cached stats of every party of msg.
func (s *service) invalidateStats(msg store.Message) {
	s.invalidateOwner(msg.GetSender())
	s.invalidateOwner(msg.GetRecipient())
}

func (s *service) invalidateOwner(owner PrincipalRef) {
	val, ok := s.statsCache.Load(owner.String())
	if !ok {
		return
	}
	entry := val.(*statsEntry)
	entry.mu.Lock()
	entry.gen++
	entry.stats = nil
	entry.mu.Unlock()
}

// Stats returns folder counts for this principal.
func (m *userMailbox) Stats(ctx context.Context) (*MailboxStats, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	return m.service.getOrRefreshStats(ctx, m.ref)
}

// UnreadCount counts inbox messages the principal has not read.
func (m *userMailbox) UnreadCount(ctx context.Context) (int64, error) {
	if err := m.checkAccess(); err != nil {
		return 0, err
	}
	filters := append(store.RecipientIs(m.ref), store.RecipientDeleted(false), store.Unread())
	n, err := m.service.store.Count(ctx, filters)
	if err != nil {
		return 0, wrapStoreError("count unread", err)
	}
	return n, nil
}
