package wizard

import "sync"

// Registry keeps one Project per browser session for the lifetime of the
// process.
type Registry struct {
	mu       sync.Mutex
	projects map[string]*Project
}

func NewRegistry() *Registry { return &Registry{projects: map[string]*Project{}} }

// Get returns sid's project, creating an empty one on first use.
func (r *Registry) Get(sid string) *Project {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[sid]
	if !ok {
		p = NewProject()
		r.projects[sid] = p
	}
	return p
}

// Drop forgets sid's project and returns it, or nil if there was none.
func (r *Registry) Drop(sid string) *Project {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.projects[sid]
	delete(r.projects, sid)
	return p
}
