package store

import "context"

// MailboxStats holds aggregate counts for one principal.
type MailboxStats struct {
	// Inbox is the number of messages in the inbox view.
	Inbox int64
	// Unread is the number of inbox messages not yet read.
	Unread int64
	// Outbox is the number of messages in the outbox view.
	Outbox int64
	// Trash is the number of messages in the trash view.
	Trash int64
}

// Clone returns a copy of the stats.
func (s *MailboxStats) Clone() *MailboxStats {
	c := *s
	return &c
}

// StatsStore provides aggregate statistics.
type StatsStore interface {
	// MailboxStats returns the folder counts for owner. Implementations
	// should compute them in a single query (conditional aggregation,
	// $facet) rather than one round-trip per folder.
	MailboxStats(ctx context.Context, owner PrincipalRef) (*MailboxStats, error)
}

// Tally adds m to stats from owner's point of view. Backends that scan
// messages in process use it to build MailboxStats.
func (s *MailboxStats) Tally(m Message, owner PrincipalRef) {
	p := PartyOf(m, owner)
	if p.Has(PartyRecipient) {
		if m.GetRecipientDeletedAt() == nil {
			s.Inbox++
			if m.GetReadAt() == nil {
				s.Unread++
			}
		}
	}
	if p.Has(PartySender) && m.GetSenderDeletedAt() == nil {
		s.Outbox++
	}
	if (p.Has(PartyRecipient) && m.GetRecipientDeletedAt() != nil) ||
		(p.Has(PartySender) && m.GetSenderDeletedAt() != nil) {
		s.Trash++
	}
}
