package session

import (
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Per-chat workflow position with expiry. This replaces exact prompt-text
// equality as the primary way to know what a chat is in the middle of;
// the text match stays as a fallback for replies that outlive the record
// (process restart, late reply).

type Awaiting string

const (
	AwaitingInvoiceFields Awaiting = "INVOICE_FIELDS"
	AwaitingListAddress   Awaiting = "LIST_ADDRESS"
)

type Record struct {
	ChatID    int64
	Awaiting  Awaiting
	CreatedAt time.Time
}

type Store interface {
	Begin(chatID int64, awaiting Awaiting)
	// Take returns and consumes the chat's record. A record answers at
	// most one update.
	Take(chatID int64) (Record, bool)
}

const defaultTTL = 10 * time.Minute

type store struct {
	cache *gocache.Cache
}

func NewStore() Store {
	return &store{cache: gocache.New(defaultTTL, 2*defaultTTL)}
}

func (s *store) Begin(chatID int64, awaiting Awaiting) {
	rec := Record{ChatID: chatID, Awaiting: awaiting, CreatedAt: time.Now()}
	s.cache.Set(key(chatID), rec, gocache.DefaultExpiration)
}

func (s *store) Take(chatID int64) (Record, bool) {
	v, ok := s.cache.Get(key(chatID))
	if !ok {
		return Record{}, false
	}
	s.cache.Delete(key(chatID))
	return v.(Record), true
}

func key(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
