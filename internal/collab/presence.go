package collab

import (
	"maps"
	"slices"
	"sync"
)

// PresenceManager tracks cursors and selections per connected client.
type PresenceManager struct {
	mu        sync.RWMutex
	presences map[string]*PresencePayload // clientID -> presence
}

func NewPresenceManager() *PresenceManager {
	return &PresenceManager{
		presences: make(map[string]*PresencePayload),
	}
}

func (pm *PresenceManager) Update(clientID string, p *PresencePayload) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.presences[clientID] = p
}

func (pm *PresenceManager) Remove(clientID string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.presences, clientID)
}

// Forget drops deleted figures from every selection and returns the
// clients whose selection changed.
func (pm *PresenceManager) Forget(figureIDs []string) []string {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	var changed []string
	for clientID, p := range pm.presences {
		kept := slices.DeleteFunc(slices.Clone(p.Selection), func(id string) bool {
			return slices.Contains(figureIDs, id)
		})
		if len(kept) != len(p.Selection) {
			next := *p
			next.Selection = kept
			pm.presences[clientID] = &next
			changed = append(changed, clientID)
		}
	}
	slices.Sort(changed)
	return changed
}

func (pm *PresenceManager) Get(clientID string) (*PresencePayload, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	p, ok := pm.presences[clientID]
	return p, ok
}

func (pm *PresenceManager) GetAll() map[string]*PresencePayload {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return maps.Clone(pm.presences)
}

func (pm *PresenceManager) StateMessage() *Message {
	all := pm.GetAll()
	if all == nil {
		all = map[string]*PresencePayload{}
	}
	return newMessage(TypePresenceState, PresenceStatePayload{Presences: all})
}
