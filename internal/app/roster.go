package app

import (
	"sort"
	"time"

	"livequiz-service/internal/domain"
)

// roster tracks contestant presence and per-question lock status. Snapshot
// and incremental delivery both read from this single map, so a full
// snapshot always reflects exactly what the delta stream would have produced.
type roster struct {
	players map[string]*domain.Player
}

func newRoster() *roster {
	return &roster{players: make(map[string]*domain.Player)}
}

// join registers a new player or re-admits an existing one. A rejoin must
// present the pin the name was registered with.
func (r *roster) join(name, pin string, now time.Time) (*domain.Player, error) {
	if p, ok := r.players[name]; ok {
		if p.Pin != pin {
			return nil, domain.ErrWrongPin
		}
		p.Status = domain.StatusActive
		p.LastActive = now
		return p, nil
	}
	p := &domain.Player{
		Name:       name,
		Pin:        pin,
		Status:     domain.StatusActive,
		LastActive: now,
	}
	r.players[name] = p
	return p, nil
}

func (r *roster) setStatus(name string, status domain.PlayerStatus, now time.Time) (*domain.Player, bool) {
	p, ok := r.players[name]
	if !ok {
		return nil, false
	}
	p.Status = status
	p.LastActive = now
	return p, true
}

// lock marks one player as locked for the remainder of the current question.
// unlockAll clears those locks when the next question activates.
func (r *roster) lock(name string, now time.Time) bool {
	_, ok := r.setStatus(name, domain.StatusLocked, now)
	return ok
}

func (r *roster) unlockAll(now time.Time) {
	for _, p := range r.players {
		if p.Status == domain.StatusLocked {
			p.Status = domain.StatusActive
			p.LastActive = now
		}
	}
}

func (r *roster) isLocked(name string) bool {
	p, ok := r.players[name]
	return ok && p.Status == domain.StatusLocked
}

func (r *roster) delete(name string) bool {
	if _, ok := r.players[name]; !ok {
		return false
	}
	delete(r.players, name)
	return true
}

func (r *roster) get(name string) (*domain.Player, bool) {
	p, ok := r.players[name]
	return p, ok
}

func (r *roster) names() []string {
	names := make([]string, 0, len(r.players))
	for name := range r.players {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// snapshot returns the roster sorted by name for deterministic delivery.
func (r *roster) snapshot() []domain.PlayerInfo {
	infos := make([]domain.PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		infos = append(infos, domain.PlayerInfo{Name: p.Name, Score: p.Score, Status: p.Status})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
