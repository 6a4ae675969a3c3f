// bus.go
package bus

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
)

// -----------------------------------------------------------------------------
// Tokens + Topics
// -----------------------------------------------------------------------------

// Token is a single element in a topic path. Any comparable value is allowed;
// in practice strings and small integers.
type Token = any

// Wildcards usable in subscription topics.
const (
	SingleWild = "+" // exactly one level
	MultiWild  = "#" // the remainder, including zero levels
)

// Topic is a sequence of tokens.
type Topic []Token

// T builds a topic. It panics on a nil or non-comparable token because such a
// token could never be used as a trie key.
func T(tokens ...Token) Topic {
	for _, tok := range tokens {
		if tok == nil || !reflect.TypeOf(tok).Comparable() {
			panic("bus: topic token must be comparable")
		}
	}
	out := make(Topic, len(tokens))
	copy(out, tokens)
	return out
}

// Append returns a new topic with tokens appended; t is not modified.
func (t Topic) Append(tokens ...Token) Topic {
	out := make(Topic, 0, len(t)+len(tokens))
	out = append(out, t...)
	return append(out, T(tokens...)...)
}

// At returns the token at i, or nil when out of range.
func (t Topic) At(i int) Token {
	if i < 0 || i >= len(t) {
		return nil
	}
	return t[i]
}

func (t Topic) Len() int { return len(t) }

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

// CanReply reports whether the sender asked for a reply.
func (m *Message) CanReply() bool { return m != nil && len(m.ReplyTo) > 0 }

// ErrNoReply is returned by RequestWait when the reply subscription closes early.
var ErrNoReply = errors.New("bus: no reply")

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection // owning connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// -----------------------------------------------------------------------------
// Trie node
// -----------------------------------------------------------------------------

type node struct {
	children map[Token]*node
	subs     []*Subscription
	retained *Message
}

func (n *node) child(tok Token, create bool) *node {
	if c, ok := n.children[tok]; ok {
		return c
	}
	if !create {
		return nil
	}
	if n.children == nil {
		n.children = make(map[Token]*node)
	}
	c := &node{}
	n.children[tok] = c
	return c
}

func (n *node) empty() bool {
	return len(n.subs) == 0 && len(n.children) == 0 && n.retained == nil
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu   sync.Mutex
	subs *node // subscription patterns (may contain wildcards)
	ret  *node // retained messages (concrete topics only)
	qLen int
	seq  atomic.Uint32
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{
		subs: &node{},
		ret:  &node{},
		qLen: queueLen,
	}
}

// NewMessage is a convenience constructor.
func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

// deliver enqueues msg, dropping the oldest queued message when full.
func deliver(sub *Subscription, msg *Message) {
	select {
	case sub.ch <- msg:
		return
	default:
	}
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- msg:
	default:
	}
}

// addSubscription inserts a subscription and replays matching retained messages.
func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.subs
	for _, tok := range sub.topic {
		n = n.child(tok, true)
	}
	n.subs = append(n.subs, sub)

	var out []*Message
	collectRetained(b.ret, sub.topic, &out)
	for _, m := range out {
		deliver(sub, m)
	}
}

// collectRetained walks the retained trie with a (possibly wildcard) pattern.
func collectRetained(n *node, pattern Topic, out *[]*Message) {
	if len(pattern) == 0 {
		if n.retained != nil {
			*out = append(*out, n.retained)
		}
		return
	}
	switch pattern[0] {
	case MultiWild:
		var walk func(*node)
		walk = func(x *node) {
			if x.retained != nil {
				*out = append(*out, x.retained)
			}
			for _, c := range x.children {
				walk(c)
			}
		}
		walk(n)
	case SingleWild:
		for _, c := range n.children {
			collectRetained(c, pattern[1:], out)
		}
	default:
		if c := n.child(pattern[0], false); c != nil {
			collectRetained(c, pattern[1:], out)
		}
	}
}

// matchSubs collects subscriptions whose pattern matches the concrete topic.
func matchSubs(n *node, topic Topic, out *[]*Subscription) {
	if c := n.child(MultiWild, false); c != nil {
		*out = append(*out, c.subs...)
	}
	if len(topic) == 0 {
		*out = append(*out, n.subs...)
		return
	}
	if c := n.child(topic[0], false); c != nil {
		matchSubs(c, topic[1:], out)
	}
	if topic[0] != SingleWild {
		if c := n.child(SingleWild, false); c != nil {
			matchSubs(c, topic[1:], out)
		}
	}
}

// Publish delivers a message to all matching subscribers and updates the
// retained store. A retained message with a nil payload clears the slot.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var targets []*Subscription
	matchSubs(b.subs, msg.Topic, &targets)
	for _, sub := range targets {
		deliver(sub, msg)
	}

	if !msg.Retained {
		return
	}
	if msg.Payload != nil {
		n := b.ret
		for _, tok := range msg.Topic {
			n = n.child(tok, true)
		}
		n.retained = msg
		return
	}
	b.prune(b.ret, msg.Topic, func(n *node) { n.retained = nil })
}

// prune walks to topic, applies fn to the final node and removes empty nodes
// on the way back up.
func (b *Bus) prune(root *node, topic Topic, fn func(*node)) {
	n := root
	stack := make([]*node, 0, len(topic))
	for _, tok := range topic {
		c := n.child(tok, false)
		if c == nil {
			return
		}
		stack = append(stack, n)
		n = c
	}
	fn(n)
	for i := len(topic) - 1; i >= 0; i-- {
		parent := stack[i]
		child := parent.children[topic[i]]
		if !child.empty() {
			break
		}
		delete(parent.children, topic[i])
	}
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune(b.subs, sub.topic, func(n *node) {
		for i, s := range n.subs {
			if s == sub {
				n.subs = append(n.subs[:i], n.subs[i+1:]...)
				break
			}
		}
	})
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	subs []*Subscription
	mu   sync.Mutex
	id   string
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.bus.addSubscription(sub)
	return sub
}

// Unsubscribe removes a subscription owned by this connection and closes its
// channel. Calling it twice is a no-op.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	found := false
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			found = true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return
	}
	c.bus.unsubscribe(sub)
	close(sub.ch)
}

// Disconnect closes all subscriptions.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub)
		close(sub.ch)
	}
}

// -----------------------------------------------------------------------------
// Request / Reply
// -----------------------------------------------------------------------------

// Request assigns a private reply topic to msg, subscribes to it and publishes
// msg. The caller owns the returned subscription.
func (c *Connection) Request(msg *Message) *Subscription {
	msg.ReplyTo = T("_reply", c.id, int(c.bus.seq.Add(1)))
	sub := c.Subscribe(msg.ReplyTo)
	c.Publish(msg)
	return sub
}

// RequestWait publishes msg and waits for the first reply or ctx expiry.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)
	select {
	case r, ok := <-sub.Channel():
		if !ok {
			return nil, ErrNoReply
		}
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reply publishes payload on req.ReplyTo. It does nothing when no reply was
// requested.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if !req.CanReply() {
		return
	}
	c.Publish(c.NewMessage(req.ReplyTo, payload, retained))
}
