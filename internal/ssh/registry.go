// internal/ssh/registry.go

package ssh

import (
	"sync"

	"sshTerm/internal/models"

	"github.com/rs/zerolog"
)

// Registry to mapa sesja -> połączenie dla całego procesu. Jedna
// instancja, jawnie skonstruowana i posiadana przez kontroler
// aplikacji - nie ukryty singleton. Mapa jest jedynym współdzielonym
// zasobem silnika i chroni ją pojedynczy mutex.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*Connection
	opts  Options
	log   zerolog.Logger
}

// NewRegistry tworzy pusty rejestr; opts są dziedziczone przez
// wszystkie tworzone połączenia.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		conns: make(map[string]*Connection),
		opts:  opts,
		log:   opts.Logger.With().Str("component", "registry").Logger(),
	}
}

// GetOrCreate zwraca istniejące połączenie dla identyfikatora sesji
// albo tworzy nowe. Sekcja krytyczna gwarantuje, że nawet przy
// równoczesnych wywołaniach powstaje co najwyżej jedno połączenie na
// identyfikator - zdalna sesja nigdy nie jest po cichu duplikowana.
func (r *Registry) GetOrCreate(desc models.Session) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.conns[desc.ID]; ok {
		return conn
	}
	conn := NewConnection(desc, r.opts)
	r.conns[desc.ID] = conn
	r.log.Debug().Str("session", desc.ID).Msg("connection registered")
	return conn
}

// Lookup zwraca połączenie dla identyfikatora, bez blokowania na I/O.
func (r *Registry) Lookup(id string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// Remove odpina identyfikator od rejestru. Celowo NIE rozłącza:
// połączenie wciąż w stanie Connected działa dalej odczepione, a jego
// sprzątaniem rządzi wyłącznie własna pętla. Wołający, który chce
// zakończyć sesję, wysyła najpierw Disconnect.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; ok {
		delete(r.conns, id)
		r.log.Debug().Str("session", id).Msg("connection removed from registry")
	}
}

// All zwraca migawkę zarejestrowanych połączeń.
func (r *Registry) All() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		out = append(out, conn)
	}
	return out
}

// CloseAll prosi wszystkie połączenia o rozłączenie i czyści mapę.
// Do użycia przy zamykaniu aplikacji.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.conns = make(map[string]*Connection)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Disconnect()
	}
}
