package infra

import (
	"fmt"
	"sync"
	"time"

	"task-service/middleware/ratelimit/domain"

	"github.com/cespare/xxhash/v2"
)

// CounterStore é a implementação em memória de domain.CounterStore com
// janela fixa por (cliente, regra).
//
// As entradas são particionadas em shards pelo hash do ClientKey: todas as
// entradas de um cliente ficam no mesmo shard, então Atomically só precisa
// de um mutex. Clientes em shards diferentes nunca disputam o mesmo lock.
type CounterStore struct {
	shards       []*shard
	clock        domain.Clock
	cleanupEvery time.Duration
}

type shard struct {
	mu      sync.Mutex
	entries map[entryKey]*counterEntry
}

type entryKey struct {
	client domain.ClientKey
	rule   domain.RuleID
}

type counterEntry struct {
	windowStart time.Time
	window      time.Duration
	hits        int64
}

func (e *counterEntry) expired(now time.Time) bool {
	return !now.Before(e.windowStart.Add(e.window))
}

type StoreOption func(*CounterStore)

// WithShards define o número de shards (padrão 64).
func WithShards(n int) StoreOption {
	return func(s *CounterStore) {
		if n > 0 {
			s.shards = make([]*shard, n)
		}
	}
}

// WithCleanupEvery define o intervalo do janitor. 0 desliga.
func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *CounterStore) { s.cleanupEvery = d }
}

// WithClock troca o relógio usado pelo janitor.
func WithClock(c domain.Clock) StoreOption {
	return func(s *CounterStore) {
		if c != nil {
			s.clock = c
		}
	}
}

func NewCounterStore(opts ...StoreOption) *CounterStore {
	s := &CounterStore{
		shards:       make([]*shard, 64),
		clock:        SystemClock{},
		cleanupEvery: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[entryKey]*counterEntry)}
	}
	return s
}

func (s *CounterStore) CleanupEvery() time.Duration { return s.cleanupEvery }

func (s *CounterStore) shardFor(key domain.ClientKey) *shard {
	return s.shards[xxhash.Sum64String(string(key))%uint64(len(s.shards))]
}

// Peek implementa domain.CounterStore.
func (s *CounterStore) Peek(key domain.ClientKey, rule domain.Rule, now time.Time) (int64, error) {
	var n int64
	err := s.Atomically(key, func(tx domain.CounterTx) error {
		var err error
		n, err = tx.Peek(rule, now)
		return err
	})
	return n, err
}

// RecordHit implementa domain.CounterStore.
func (s *CounterStore) RecordHit(key domain.ClientKey, rule domain.Rule, now time.Time) (int64, error) {
	var n int64
	err := s.Atomically(key, func(tx domain.CounterTx) error {
		var err error
		n, err = tx.RecordHit(rule, now)
		return err
	})
	return n, err
}

// Atomically implementa domain.CounterStore.
func (s *CounterStore) Atomically(key domain.ClientKey, fn func(tx domain.CounterTx) error) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return fn(shardTx{sh: sh, client: key})
}

// shardTx só é válido enquanto o mutex do shard está travado.
type shardTx struct {
	sh     *shard
	client domain.ClientKey
}

func (tx shardTx) lookup(rule domain.Rule) (entryKey, *counterEntry, error) {
	k := entryKey{client: tx.client, rule: ruleKey(rule)}
	e := tx.sh.entries[k]
	if e != nil && e.hits < 0 {
		return k, nil, fmt.Errorf("%w: client %q rule %q holds %d hits", domain.ErrStoreCorruption, tx.client, k.rule, e.hits)
	}
	return k, e, nil
}

func (tx shardTx) Peek(rule domain.Rule, now time.Time) (int64, error) {
	_, e, err := tx.lookup(rule)
	if err != nil {
		return 0, err
	}
	if e == nil || e.expired(now) {
		return 0, nil
	}
	return e.hits, nil
}

func (tx shardTx) RecordHit(rule domain.Rule, now time.Time) (int64, error) {
	k, e, err := tx.lookup(rule)
	if err != nil {
		return 0, err
	}
	if e == nil {
		e = &counterEntry{}
		tx.sh.entries[k] = e
	}
	if e.hits == 0 || e.expired(now) {
		e.windowStart = now
		e.window = rule.Window
		e.hits = 1
		return 1, nil
	}
	e.hits++
	return e.hits, nil
}

func (tx shardTx) WindowEnd(rule domain.Rule, now time.Time) time.Time {
	_, e, err := tx.lookup(rule)
	if err != nil || e == nil || e.expired(now) {
		return now.Add(rule.Window)
	}
	return e.windowStart.Add(e.window)
}

// ruleKey usa o ID atribuído pelo RuleSet; regras avulsas (sem ID) são
// identificadas pelo conteúdo.
func ruleKey(r domain.Rule) domain.RuleID {
	if r.ID != "" {
		return r.ID
	}
	return domain.RuleID(fmt.Sprintf("%s|%d|%s", r.Scope, r.MaxHits, r.Window))
}

// Cleanup remove entradas cuja janela já terminou.
func (s *CounterStore) Cleanup(now time.Time) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, e := range sh.entries {
			if e.expired(now) {
				delete(sh.entries, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len retorna o número de entradas vivas ou expiradas ainda não coletadas.
func (s *CounterStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}

// StartJanitor inicia uma goroutine que limpa entradas expiradas periodicamente.
// Pare cancelando o contexto.
func (s *CounterStore) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup(s.clock.Now())
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
type DoneContext interface {
	Done() <-chan struct{}
}

var _ domain.CounterStore = (*CounterStore)(nil)
