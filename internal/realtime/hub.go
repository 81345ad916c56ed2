package realtime

import (
	"sort"
	"sync"

	"github.com/smallbiznis/kolaffiliate/internal/realtime/domain"
)

const DefaultConnBuffer = 16

// Hub fans stats messages out to connections by KOL id. Every connection
// owns its buffered channel and its subscription set; a slow reader loses
// messages instead of blocking publishers.
type Hub struct {
	mu     sync.RWMutex
	conns  map[uint64]*Conn
	byKol  map[int64]map[uint64]*Conn
	nextID uint64
	buffer int
}

type Conn struct {
	hub  *Hub
	id   uint64
	ch   chan domain.Message
	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	kols map[int64]struct{}
}

func NewHub() *Hub {
	return &Hub{
		conns:  make(map[uint64]*Conn),
		byKol:  make(map[int64]map[uint64]*Conn),
		buffer: DefaultConnBuffer,
	}
}

func (h *Hub) Connect() *Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	conn := &Conn{
		hub:  h,
		id:   h.nextID,
		ch:   make(chan domain.Message, h.buffer),
		done: make(chan struct{}),
		kols: make(map[int64]struct{}),
	}
	h.conns[conn.id] = conn
	return conn
}

// Publish delivers msg to every connection subscribed to kolID and returns
// how many accepted it.
func (h *Hub) Publish(kolID int64, msg domain.Message) int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, conn := range h.byKol[kolID] {
		if conn.offer(msg) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) HasSubscribers(kolID int64) bool {
	if h == nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byKol[kolID]) > 0
}

func (h *Hub) ConnectionCount() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// SubscribedKols lists KOL ids with at least one subscriber, ascending.
func (h *Hub) SubscribedKols() []int64 {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	out := make([]int64, 0, len(h.byKol))
	for kolID := range h.byKol {
		out = append(out, kolID)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (h *Hub) subscribe(c *Conn, kolID int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c.id]; !ok {
		return domain.ErrHubClosed
	}
	subs := h.byKol[kolID]
	if subs == nil {
		subs = make(map[uint64]*Conn)
		h.byKol[kolID] = subs
	}
	subs[c.id] = c
	return nil
}

func (h *Hub) unsubscribe(c *Conn, kolID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c.id, kolID)
}

func (h *Hub) dropLocked(connID uint64, kolID int64) {
	subs := h.byKol[kolID]
	if subs == nil {
		return
	}
	delete(subs, connID)
	if len(subs) == 0 {
		delete(h.byKol, kolID)
	}
}

func (h *Hub) remove(c *Conn, kols []int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, kolID := range kols {
		h.dropLocked(c.id, kolID)
	}
	delete(h.conns, c.id)
}

func (c *Conn) Subscribe(kolID int64) error {
	if kolID <= 0 {
		return domain.ErrInvalidKolID
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.hub.subscribe(c, kolID); err != nil {
		return err
	}
	c.kols[kolID] = struct{}{}
	return nil
}

func (c *Conn) Unsubscribe(kolID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.kols, kolID)
	c.hub.unsubscribe(c, kolID)
}

func (c *Conn) Subscriptions() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int64, 0, len(c.kols))
	for kolID := range c.kols {
		out = append(out, kolID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *Conn) Messages() <-chan domain.Message {
	return c.ch
}

func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Send queues a message for this connection only.
func (c *Conn) Send(msg domain.Message) bool {
	return c.offer(msg)
}

// Close drops every subscription of the connection. It is safe to call
// more than once.
func (c *Conn) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		kols := make([]int64, 0, len(c.kols))
		for kolID := range c.kols {
			kols = append(kols, kolID)
		}
		c.kols = map[int64]struct{}{}
		c.hub.remove(c, kols)
		close(c.done)
	})
}

func (c *Conn) offer(msg domain.Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.ch <- msg:
		return true
	default:
		return false
	}
}
