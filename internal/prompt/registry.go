package prompt

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/medreturn-api/internal/config"
)

const defaultSessionTTL = 30 * time.Minute

var ErrSessionNotFound = errors.New("prompt session not found")

type session struct {
	owner    uuid.UUID
	notifier *Notifier
}

// Registry owns the notifiers of every mounted prompt session. Sessions that
// sit idle for longer than the configured TTL are evicted and torn down.
type Registry struct {
	cfg      config.PromptConfig
	sink     Sink
	opts     []Option
	options  options
	sessions *cache.Cache
	refresh  func(key string, value interface{}, d time.Duration) error
}

func NewRegistry(cfg config.PromptConfig, sink Sink, opts ...Option) *Registry {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	r := &Registry{
		cfg:      cfg,
		sink:     sink,
		opts:     opts,
		options:  buildOptions(opts),
		sessions: cache.New(ttl, ttl/2),
	}
	r.sessions.OnEvicted(r.evicted)
	r.refresh = r.sessions.Replace
	return r
}

func (r *Registry) evicted(key string, value interface{}) {
	s, ok := value.(*session)
	if !ok {
		return
	}
	s.notifier.Teardown()
	if r.options.metrics != nil {
		r.options.metrics.PromptSessions.Dec()
	}
	r.options.logger.Debug("prompt session released", "session_id", key)
}

// Mount creates and arms a notifier for owner and returns its session ID.
func (r *Registry) Mount(ctx context.Context, owner uuid.UUID) (uuid.UUID, View, error) {
	n := NewNotifier(Config{
		Delay:     r.cfg.Delay,
		Title:     r.cfg.Title,
		Message:   r.cfg.Message,
		Recipient: owner,
	}, r.sink, r.opts...)

	if err := n.Arm(ctx); err != nil {
		return uuid.Nil, View{}, err
	}

	id := uuid.New()
	r.sessions.Set(id.String(), &session{owner: owner, notifier: n}, cache.DefaultExpiration)
	if r.options.metrics != nil {
		r.options.metrics.PromptSessions.Inc()
	}
	return id, n.Render(), nil
}

// lookup returns the session if owner mounted it and refreshes its idle TTL.
func (r *Registry) lookup(id, owner uuid.UUID) (*session, error) {
	key := id.String()
	value, found := r.sessions.Get(key)
	if !found {
		return nil, ErrSessionNotFound
	}
	s := value.(*session)
	if s.owner != owner {
		return nil, ErrSessionNotFound
	}
	// Replace fails when the session expired or was unmounted after Get.
	if err := r.refresh(key, s, cache.DefaultExpiration); err != nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (r *Registry) Interact(id, owner uuid.UUID) (View, error) {
	s, err := r.lookup(id, owner)
	if err != nil {
		return View{}, err
	}
	s.notifier.Cancel()
	return s.notifier.Render(), nil
}

func (r *Registry) Dismiss(id, owner uuid.UUID) (View, error) {
	s, err := r.lookup(id, owner)
	if err != nil {
		return View{}, err
	}
	s.notifier.Dismiss()
	return s.notifier.Render(), nil
}

func (r *Registry) View(id, owner uuid.UUID) (View, error) {
	s, err := r.lookup(id, owner)
	if err != nil {
		return View{}, err
	}
	return s.notifier.Render(), nil
}

// Unmount tears the session's notifier down and forgets it.
func (r *Registry) Unmount(id, owner uuid.UUID) error {
	if _, err := r.lookup(id, owner); err != nil {
		return err
	}
	r.sessions.Delete(id.String())
	return nil
}

func (r *Registry) Len() int {
	return r.sessions.ItemCount()
}

// Close tears down every session, expired or not.
func (r *Registry) Close() {
	r.sessions.DeleteExpired()
	for key := range r.sessions.Items() {
		r.sessions.Delete(key)
	}
}
