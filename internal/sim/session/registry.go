package session

import "sync"

// Registry tracks the single session a profile may have. A profile is
// reserved while its session is opening, or while a caller edits the stored
// document directly, and attached once the session runs.
type Registry struct {
	mu   sync.Mutex
	live map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{live: map[string]*Session{}}
}

// Reserve claims profile. It fails when the profile is reserved or attached.
func (r *Registry) Reserve(profile string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[profile]; ok {
		return false
	}
	r.live[profile] = nil
	return true
}

// Attach publishes a running session under its reserved profile.
func (r *Registry) Attach(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[s.Profile()] = s
}

func (r *Registry) Release(profile string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, profile)
}

// Live returns the attached session for profile, or nil when the profile is
// free or only reserved.
func (r *Registry) Live(profile string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live[profile]
}
