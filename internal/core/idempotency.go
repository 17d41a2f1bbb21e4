package core

import (
	"container/list"
	"fmt"
)

// Deduper implements two-tier command deduplication: an in-memory LRU over
// composite "{type}:{key}" strings in front of a Postgres lookup.
// Not thread-safe; only the single-threaded core touches it.
type Deduper struct {
	lru       *dedupLRU
	dbChecker DBDeduper
}

// DBDeduper is the Postgres dedup lookup.
type DBDeduper interface {
	IsDuplicate(commandType, idempotencyKey string) (bool, error)
}

func NewDeduper(capacity int, dbChecker DBDeduper) *Deduper {
	return &Deduper{
		lru:       newDedupLRU(capacity),
		dbChecker: dbChecker,
	}
}

// IsDuplicate reports whether a command was already processed. A DB error on
// the cold path is treated as "not a duplicate" so a Postgres hiccup cannot
// stall command processing; the event log constraint catches the rare replay
// that slips through.
func (d *Deduper) IsDuplicate(commandType, idempotencyKey string) (bool, string) {
	key := fmt.Sprintf("%s:%s", commandType, idempotencyKey)

	if d.lru.contains(key) {
		return true, "lru"
	}

	if d.dbChecker != nil {
		isDup, err := d.dbChecker.IsDuplicate(commandType, idempotencyKey)
		if err != nil {
			return false, ""
		}
		if isDup {
			d.lru.add(key)
			return true, "postgres"
		}
	}

	return false, ""
}

// MarkProcessed records a command after successful application.
func (d *Deduper) MarkProcessed(commandType, idempotencyKey string) {
	d.lru.add(fmt.Sprintf("%s:%s", commandType, idempotencyKey))
}

// Warm preloads recent composite keys, avoiding cold-path DB lookups right
// after a restart.
func (d *Deduper) Warm(keys []string) {
	for _, key := range keys {
		d.lru.add(key)
	}
}

// Keys returns every cached composite key (snapshot support).
func (d *Deduper) Keys() []string {
	return d.lru.keys()
}

// Size returns the current LRU occupancy.
func (d *Deduper) Size() int {
	return d.lru.list.Len()
}

type dedupLRU struct {
	capacity int
	cache    map[string]*list.Element
	list     *list.List
}

func newDedupLRU(capacity int) *dedupLRU {
	return &dedupLRU{
		capacity: capacity,
		cache:    make(map[string]*list.Element, capacity),
		list:     list.New(),
	}
}

func (l *dedupLRU) contains(key string) bool {
	elem, ok := l.cache[key]
	if ok {
		l.list.MoveToFront(elem)
	}
	return ok
}

func (l *dedupLRU) add(key string) {
	if elem, ok := l.cache[key]; ok {
		l.list.MoveToFront(elem)
		return
	}
	l.cache[key] = l.list.PushFront(key)
	if l.list.Len() > l.capacity {
		oldest := l.list.Back()
		if oldest != nil {
			l.list.Remove(oldest)
			delete(l.cache, oldest.Value.(string))
		}
	}
}

func (l *dedupLRU) keys() []string {
	out := make([]string, 0, l.list.Len())
	for elem := l.list.Front(); elem != nil; elem = elem.Next() {
		out = append(out, elem.Value.(string))
	}
	return out
}
