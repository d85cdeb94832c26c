package transport

import (
	"sync"

	"github.com/spec-kit/clinic-service/internal/domain"
)

// Navigator performs the redirect side effect of a 403.
type Navigator interface {
	Navigate(path string)
}

// DashboardPath is the landing page for role; unknown roles go to the welcome page.
func DashboardPath(role domain.Role) string {
	switch role {
	case domain.RoleAdmin:
		return "/admin/dashboard"
	case domain.RoleDoctor:
		return "/doctor/dashboard"
	case domain.RolePatient:
		return "/patient/dashboard"
	default:
		return "/"
	}
}

// Location is a Navigator that remembers the last path it was sent to.
type Location struct {
	mu      sync.Mutex
	current string
	visits  int
}

// Navigate records path.
func (l *Location) Navigate(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = path
	l.visits++
}

// Current returns the last path navigated to.
func (l *Location) Current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Visits counts navigations.
func (l *Location) Visits() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.visits
}
