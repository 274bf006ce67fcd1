// internal/ssh/queue.go

package ssh

import "sync"

// fifo to nieograniczona kolejka FIFO pomiędzy dwiema domenami
// wykonania. Nadawca nigdy nie blokuje się na odbiorcy - elementy
// buforowane są w pompie pomiędzy kanałami in i out. Wolumen danych
// interaktywnych ogranicza człowiek, nie kolejka.
type fifo[T any] struct {
	mu     sync.Mutex
	closed bool
	drop   bool
	in     chan T
	out    chan T
}

func newFifo[T any]() *fifo[T] {
	f := &fifo[T]{
		in:  make(chan T),
		out: make(chan T),
	}
	go f.pump()
	return f
}

// pump przenosi elementy z in do out, buforując nadwyżkę.
// Po zamknięciu in opróżnia bufor i zamyka out; zamknięcie w trybie
// discard porzuca bufor, żeby pompa nie wisiała bez odbiorcy.
func (f *fifo[T]) pump() {
	var buf []T
	in := f.in
	for in != nil || len(buf) > 0 {
		var out chan T
		var head T
		if len(buf) > 0 {
			out = f.out
			head = buf[0]
		}
		select {
		case v, ok := <-in:
			if !ok {
				in = nil
				f.mu.Lock()
				if f.drop {
					buf = nil
				}
				f.mu.Unlock()
				continue
			}
			buf = append(buf, v)
		case out <- head:
			buf = buf[1:]
		}
	}
	close(f.out)
}

// push dodaje element do kolejki. Zwraca false po zamknięciu.
func (f *fifo[T]) push(v T) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.in <- v
	return true
}

// close zamyka kolejkę; zbuforowane elementy są jeszcze doręczane,
// potem out zostaje zamknięty. Tylko dla ścieżek, na których odbiorca
// faktycznie doczytuje do końca.
func (f *fifo[T]) close() {
	f.shutdown(false)
}

// discard zamyka kolejkę i porzuca niedoręczone elementy - dla ścieżek,
// na których nikt już nie czyta (anulowana subskrypcja, zakończona
// pętla połączenia).
func (f *fifo[T]) discard() {
	f.shutdown(true)
}

// Kolejne wywołania po pierwszym zamknięciu są ignorowane.
func (f *fifo[T]) shutdown(drop bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.drop = drop
	close(f.in)
}

// Subscription to strumień zdarzeń jednego odbiorcy. Kanał Events
// zostaje zamknięty po DisconnectedEvent albo po Cancel.
type Subscription struct {
	q      *fifo[Event]
	cancel func()
	once   sync.Once
}

// Events zwraca kanał zdarzeń subskrypcji.
func (s *Subscription) Events() <-chan Event {
	return s.q.out
}

// Cancel odpina subskrypcję od połączenia i porzuca niedoręczone
// zdarzenia; kanał Events zostaje zamknięty. Po Cancel nikt już nie
// czyta, więc doręczanie resztek trzymałoby pompę przy życiu na zawsze.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.cancel()
		s.q.discard()
	})
}

// broadcaster rozsyła zdarzenia do wszystkich subskrybentów. Każdy
// subskrybent ma własną nieograniczoną kolejkę i widzi wszystkie
// zdarzenia opublikowane od chwili subskrypcji - to rozgłaszanie,
// nie konkurencja o wspólną kolejkę.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[*Subscription]struct{})}
}

// subscribe rejestruje nowego odbiorcę. Po zamknięciu broadcastera
// zwracana subskrypcja ma od razu zamknięty kanał.
func (b *broadcaster) subscribe() *Subscription {
	sub := &Subscription{q: newFifo[Event]()}
	sub.cancel = func() { b.unsubscribe(sub) }

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.q.close()
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

func (b *broadcaster) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, sub)
}

// publish rozsyła zdarzenie do wszystkich aktywnych subskrypcji.
// Po zamknięciu jest ignorowane - nic nie następuje po Disconnected.
func (b *broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for sub := range b.subs {
		sub.q.push(ev)
	}
}

// close zamyka broadcaster i kolejki wszystkich subskrybentów.
func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		sub.q.close()
	}
	b.subs = nil
}
