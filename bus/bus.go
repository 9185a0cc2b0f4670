// Package bus carries board observability records: pin transitions,
// register traces and interrupt assertions published by the signal router.
// Delivery is best-effort and never a control path; device-to-device
// signalling stays on the synchronous observer interfaces.
package bus

import (
	"sync"
)

// -----------------------------------------------------------------------------
// Tokens + Topics
// -----------------------------------------------------------------------------

// Token is a single element in a topic path, either a string or an int
// (pin and interrupt source numbers are int tokens).
type Token struct {
	kind byte // 0 = string, 1 = int
	sval string
	ival int
}

// Constructors
func S(s string) Token { return Token{kind: 0, sval: s} }
func I(i int) Token    { return Token{kind: 1, ival: i} }

func (t Token) String() string {
	if t.kind == 1 {
		return itoa(t.ival)
	}
	return t.sval
}

// Topic is a sequence of tokens, e.g. T("gpio", 22, "out").
type Topic []Token

// T builds a Topic from string and int elements. Any other element type
// panics; topics are built from literals at wiring time.
func T(elems ...any) Topic {
	tp := make(Topic, len(elems))
	for i, e := range elems {
		switch v := e.(type) {
		case string:
			tp[i] = S(v)
		case int:
			tp[i] = I(v)
		case Token:
			tp[i] = v
		default:
			panic("bus: topic element must be string, int or Token")
		}
	}
	return tp
}

func (tp Topic) String() string {
	s := ""
	for i, tok := range tp {
		if i > 0 {
			s += "/"
		}
		s += tok.String()
	}
	return s
}

// -----------------------------------------------------------------------------
// Record
// -----------------------------------------------------------------------------

// Record is one observability datum. Retained records stay on the topic so
// late subscribers (and Retained lookups) see the latest state, which is how
// board pins remain inspectable without touching device registers.
type Record struct {
	Topic    Topic
	Payload  any
	Retained bool
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Record
	conn  *Connection // owning connection
}

func (s *Subscription) Topic() Topic            { return s.topic }
func (s *Subscription) Channel() <-chan *Record { return s.ch }
func (s *Subscription) Unsubscribe()            { s.conn.Unsubscribe(s) }

// -----------------------------------------------------------------------------
// Trie node
// -----------------------------------------------------------------------------

type node struct {
	children map[Token]*node
	subs     []*Subscription
	retained *Record
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu   sync.RWMutex
	root *node
	qLen int
}

// New creates a bus with the given per-subscription queue length.
func New(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8 // safe default
	}
	return &Bus{
		root: &node{},
		qLen: queueLen,
	}
}

// addSubscription inserts a subscription into the trie.
func (b *Bus) addSubscription(topic Topic, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, tok := range topic {
		if n.children == nil {
			n.children = make(map[Token]*node)
		}
		child, ok := n.children[tok]
		if !ok {
			child = &node{}
			n.children[tok] = child
		}
		n = child
	}

	n.subs = append(n.subs, sub)

	// Deliver the retained record if present.
	if n.retained != nil {
		select {
		case sub.ch <- n.retained:
		default:
		}
	}
}

// Publish delivers a record to all subscribers of its topic.
func (b *Bus) Publish(rec *Record) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, token := range rec.Topic {
		if n.children == nil {
			if !rec.Retained {
				return
			}
			n.children = make(map[Token]*node)
		}
		child, exists := n.children[token]
		if !exists {
			if !rec.Retained {
				return
			}
			child = &node{}
			n.children[token] = child
		}
		n = child
	}

	for _, sub := range n.subs {
		select {
		case sub.ch <- rec:
		default:
			// drop oldest if queue full
			<-sub.ch
			sub.ch <- rec
		}
	}

	// Store or clear the retained record.
	if rec.Retained {
		if rec.Payload == nil {
			n.retained = nil
		} else {
			n.retained = rec
		}
	}
}

// Retained returns the payload last retained on topic, if any. This is the
// synchronous inspection path used by harnesses to read pin state.
func (b *Bus) Retained(topic Topic) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := b.root
	for _, tok := range topic {
		child, ok := n.children[tok]
		if !ok {
			return nil, false
		}
		n = child
	}
	if n.retained == nil {
		return nil, false
	}
	return n.retained.Payload, true
}

// unsubscribe removes a subscription from the trie.
func (b *Bus) unsubscribe(topic Topic, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	var stack []*node
	for _, t := range topic {
		if n.children == nil {
			return
		}
		child, ok := n.children[t]
		if !ok {
			return
		}
		stack = append(stack, n)
		n = child
	}

	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}

	// Prune empty nodes.
	for i := len(topic) - 1; i >= 0; i-- {
		parent := stack[i]
		key := topic[i]
		child := parent.children[key]
		if len(child.subs) == 0 && len(child.children) == 0 && child.retained == nil {
			delete(parent.children, key)
		} else {
			break
		}
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	subs []*Subscription
	mu   sync.Mutex
	id   string // publisher identity, e.g. "router" or "harness"
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{
		bus: b,
		id:  id,
	}
}

// Publish sends a record via the bus.
func (c *Connection) Publish(rec *Record) {
	c.bus.Publish(rec)
}

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Record, c.bus.qLen),
		conn:  c,
	}
	c.bus.addSubscription(topic, sub)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription owned by this connection.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.bus.unsubscribe(sub.topic, sub)
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	close(sub.ch)
}

// Disconnect closes all subscriptions and clears them.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub.topic, sub)
		close(sub.ch)
	}
}

// itoa avoids strconv for the hot Token.String path.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	p := len(buf)
	for i > 0 {
		p--
		buf[p] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		p--
		buf[p] = '-'
	}
	return string(buf[p:])
}
