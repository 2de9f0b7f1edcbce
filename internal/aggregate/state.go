package aggregate

import "sync"

// State is owned by exactly one aggregation call. visited is shared by all
// goroutines of that call; the result set is filled by the caller in merge
// order.
type State struct {
	mu      sync.Mutex
	visited map[string]struct{}

	seen  map[string]struct{}
	links []string
}

func NewState() *State {
	return &State{
		visited: make(map[string]struct{}),
		seen:    make(map[string]struct{}),
	}
}

// claim marks rawURL visited and reports whether the caller should fetch it.
// It fails for URLs already visited or when max sources were claimed.
func (s *State) claim(rawURL string, max int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.visited[rawURL]; ok {
		return false
	}
	if max > 0 && len(s.visited) >= max {
		return false
	}
	s.visited[rawURL] = struct{}{}
	return true
}

// Visited returns the number of URLs claimed so far.
func (s *State) Visited() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visited)
}

func (s *State) add(l string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[l]; ok {
		return
	}
	s.seen[l] = struct{}{}
	s.links = append(s.links, l)
}

func (s *State) merge(links []string) {
	for _, l := range links {
		s.add(l)
	}
}

// Links returns the deduplicated links in first-seen order.
func (s *State) Links() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.links...)
}
