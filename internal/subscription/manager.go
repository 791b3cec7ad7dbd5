package subscription

import (
	"sort"
	"sync"
)

// Manager holds one identifier set per category.
type Manager struct {
	mu   sync.Mutex
	sets map[string]map[string]struct{}
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		sets: make(map[string]map[string]struct{}),
	}
}

// Subscribe tracks ids under category and returns a subscribe message holding
// only the ids that were not tracked before. Returns nil when there are none.
func (m *Manager) Subscribe(category string, ids []string) *Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.sets[category]
	var added []string
	for _, id := range ids {
		if _, ok := set[id]; ok {
			continue
		}
		if set == nil {
			set = make(map[string]struct{})
			m.sets[category] = set
		}
		set[id] = struct{}{}
		added = append(added, id)
	}

	if len(added) == 0 {
		return nil
	}
	return &Message{Action: ActionSubscribe, Category: category, IDs: added}
}

// Unsubscribe stops tracking ids under category and returns an unsubscribe
// message holding only the ids that were tracked. Returns nil when there are
// none.
func (m *Manager) Unsubscribe(category string, ids []string) *Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.sets[category]
	var removed []string
	for _, id := range ids {
		if _, ok := set[id]; !ok {
			continue
		}
		delete(set, id)
		removed = append(removed, id)
	}
	if len(set) == 0 {
		delete(m.sets, category)
	}

	if len(removed) == 0 {
		return nil
	}
	return &Message{Action: ActionUnsubscribe, Category: category, IDs: removed}
}

// Clear forgets every tracked id.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets = make(map[string]map[string]struct{})
}

// Snapshot returns one subscribe message per non-empty category with the full
// tracked set. Categories and ids are sorted.
func (m *Manager) Snapshot() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	categories := make([]string, 0, len(m.sets))
	for c, set := range m.sets {
		if len(set) > 0 {
			categories = append(categories, c)
		}
	}
	sort.Strings(categories)

	msgs := make([]Message, 0, len(categories))
	for _, c := range categories {
		msgs = append(msgs, Message{
			Action:   ActionSubscribe,
			Category: c,
			IDs:      sortedKeys(m.sets[c]),
		})
	}
	return msgs
}

// Tracked returns the sorted ids currently tracked under category.
func (m *Manager) Tracked(category string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.sets[category])
}

// Len returns the total number of tracked ids across categories.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, set := range m.sets {
		n += len(set)
	}
	return n
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
