// Package progress routes per-job progress events to the viewers bound to
// a session. Delivery is best-effort: an unbound session or a full viewer
// buffer drops the event.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/reviewmeter/internal/config"
	"github.com/smallbiznis/reviewmeter/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Kind string

const (
	KindConnected Kind = "connected"
	KindStarted   Kind = "started"
	KindProgress  Kind = "progress"
	KindError     Kind = "error"
	KindDone      Kind = "done"
)

const (
	DefaultSubscriberBuffer = 64
	maxSessionIDLength      = 128
	maxSessionKeyLength     = 512
)

var (
	ErrRegistryUnavailable = errors.New("progress_registry_unavailable")
	ErrInvalidSession      = errors.New("invalid_session_id")
)

type Event struct {
	Seq       uint64          `json:"seq"`
	Kind      Kind            `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	EmittedAt time.Time       `json:"emittedAt"`
}

// publisher fans an event out beyond this process.
type publisher interface {
	publish(ctx context.Context, ev Event) error
}

type Registry struct {
	mu               sync.RWMutex
	sessions         map[string]*session
	subscriberBuffer int
	backlogSize      int

	relayMu sync.RWMutex
	relay   publisher
	log     *zap.Logger
	metrics *metrics.Metrics
}

type session struct {
	mu      sync.Mutex
	backlog []Event
	subs    map[uint64]chan Event
	nextID  uint64
	seq     uint64
}

// Binding is one viewer attached to a session.
type Binding struct {
	registry  *Registry
	sessionID string
	id        uint64
	ch        chan Event
	once      sync.Once
}

type RegistryParam struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

func NewRegistry(p RegistryParam) *Registry {
	buffer := p.Config.Progress.SubscriberBuffer
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Registry{
		sessions:         make(map[string]*session),
		subscriberBuffer: buffer,
		backlogSize:      max(0, p.Config.Progress.BacklogSize),
		log:              p.Log.Named("progress"),
		metrics:          p.Metrics,
	}
}

// ValidateSessionID rejects empty or oversized ids.
func ValidateSessionID(sessionID string) (string, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" || len(id) > maxSessionIDLength {
		return "", ErrInvalidSession
	}
	return id, nil
}

// SessionKey scopes a client-chosen session id to its subscriber so one
// subscriber can never observe or feed another subscriber's session.
func SessionKey(subscriberID, sessionID string) (string, error) {
	subscriberID = strings.TrimSpace(subscriberID)
	if subscriberID == "" || strings.Contains(subscriberID, ":") {
		return "", ErrInvalidSession
	}
	id, err := ValidateSessionID(sessionID)
	if err != nil {
		return "", err
	}
	return subscriberID + ":" + id, nil
}

// Bind attaches a viewer to the session key and returns any retained
// backlog.
func (r *Registry) Bind(key string) (*Binding, []Event, error) {
	if r == nil {
		return nil, nil, ErrRegistryUnavailable
	}
	id := strings.TrimSpace(key)
	if id == "" || len(id) > maxSessionKeyLength {
		return nil, nil, ErrInvalidSession
	}

	// Lookup and insert under r.mu so a concurrent unbind of the last
	// viewer cannot drop the session between the two.
	r.mu.Lock()
	s := r.sessions[id]
	if s == nil {
		s = &session{subs: make(map[uint64]chan Event)}
		r.sessions[id] = s
	}
	s.mu.Lock()
	subID := s.nextID
	s.nextID++
	ch := make(chan Event, r.subscriberBuffer)
	s.subs[subID] = ch
	backlog := append([]Event(nil), s.backlog...)
	s.mu.Unlock()
	r.mu.Unlock()

	return &Binding{registry: r, sessionID: id, id: subID, ch: ch}, backlog, nil
}

// Bound reports whether any viewer is attached to sessionID locally.
func (r *Registry) Bound(sessionID string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	s := r.sessions[strings.TrimSpace(sessionID)]
	r.mu.RUnlock()
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs) > 0
}

// Emit never blocks and never fails the caller.
func (r *Registry) Emit(sessionID string, kind Kind, payload any) {
	if r == nil {
		return
	}
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		r.log.Warn("progress payload not encodable", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	ev := Event{Kind: kind, SessionID: id, Data: data, EmittedAt: time.Now().UTC()}

	if relay := r.currentRelay(); relay != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := relay.publish(ctx, ev)
		cancel()
		if err == nil {
			return
		}
		r.log.Warn("progress relay publish failed, delivering locally", zap.Error(err))
	}
	r.deliver(ev)
}

func (r *Registry) setRelay(p publisher) {
	r.relayMu.Lock()
	r.relay = p
	r.relayMu.Unlock()
}

func (r *Registry) currentRelay() publisher {
	r.relayMu.RLock()
	defer r.relayMu.RUnlock()
	return r.relay
}

// For returns an emitter bound to one session.
func (r *Registry) For(sessionID string) SessionEmitter {
	return SessionEmitter{registry: r, sessionID: sessionID}
}

func (r *Registry) deliver(ev Event) {
	r.mu.RLock()
	s := r.sessions[ev.SessionID]
	r.mu.RUnlock()
	if s == nil {
		return
	}

	s.mu.Lock()
	s.seq++
	ev.Seq = s.seq
	if r.backlogSize > 0 {
		s.backlog = append(s.backlog, ev)
		if len(s.backlog) > r.backlogSize {
			s.backlog = s.backlog[len(s.backlog)-r.backlogSize:]
		}
	}
	subs := make([]chan Event, 0, len(s.subs))
	for _, ch := range s.subs {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			r.metrics.RecordProgressDropped(context.Background(), string(ev.Kind))
		}
	}
}

func (r *Registry) unbind(sessionID string, subID uint64) {
	r.mu.RLock()
	s := r.sessions[sessionID]
	r.mu.RUnlock()
	if s == nil {
		return
	}

	s.mu.Lock()
	delete(s.subs, subID)
	remaining := len(s.subs)
	s.mu.Unlock()
	if remaining != 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[sessionID] != s {
		return
	}
	s.mu.Lock()
	empty := len(s.subs) == 0
	s.mu.Unlock()
	if empty {
		delete(r.sessions, sessionID)
	}
}

func (b *Binding) SessionID() string {
	if b == nil {
		return ""
	}
	return b.sessionID
}

func (b *Binding) Events() <-chan Event {
	if b == nil {
		return nil
	}
	return b.ch
}

// Close unbinds the viewer. Safe to call more than once.
func (b *Binding) Close() {
	if b == nil || b.registry == nil {
		return
	}
	b.once.Do(func() {
		b.registry.unbind(b.sessionID, b.id)
	})
}

// SessionEmitter emits to a fixed session.
type SessionEmitter struct {
	registry  *Registry
	sessionID string
}

func (e SessionEmitter) Emit(kind Kind, payload any) {
	e.registry.Emit(e.sessionID, kind, payload)
}
