package memory

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/samirrijal/fieldgeo/internal/core/domain"
)

// LocationStore implements ports.LocationStore on a sharded concurrent map.
// Each agent key lives in exactly one shard, so writes for different agents
// rarely contend and the staleness check runs under that shard's lock.
type LocationStore struct {
	positions cmap.ConcurrentMap[string, domain.AgentPosition]
}

// NewLocationStore creates an empty store.
func NewLocationStore() *LocationStore {
	return &LocationStore{positions: cmap.New[domain.AgentPosition]()}
}

func agentKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Upsert stores pos unless the held entry has a newer RecordedAt. Equal
// timestamps are accepted so retried reports are idempotent.
func (s *LocationStore) Upsert(pos domain.AgentPosition) bool {
	accepted := false
	s.positions.Upsert(agentKey(pos.AgentID), pos, func(exists bool, current, incoming domain.AgentPosition) domain.AgentPosition {
		if exists && incoming.RecordedAt.Before(current.RecordedAt) {
			return current
		}
		if incoming.Name == "" && exists {
			incoming.Name = current.Name
		}
		accepted = true
		return incoming
	})
	return accepted
}

// Get returns the held position for an agent regardless of its age.
func (s *LocationStore) Get(agentID int64) (domain.AgentPosition, error) {
	pos, ok := s.positions.Get(agentKey(agentID))
	if !ok {
		return domain.AgentPosition{}, domain.NewError(domain.KindNotFound, fmt.Sprintf("no position for agent %d", agentID))
	}
	return pos, nil
}

// CurrentFleet returns every entry recorded no more than maxAge before now,
// ordered by agent id.
func (s *LocationStore) CurrentFleet(now time.Time, maxAge time.Duration) []domain.AgentPosition {
	snapshot := s.positions.Items()

	fleet := make([]domain.AgentPosition, 0, len(snapshot))
	for _, pos := range snapshot {
		if now.Sub(pos.RecordedAt) <= maxAge {
			fleet = append(fleet, pos)
		}
	}

	sort.Slice(fleet, func(i, j int) bool { return fleet[i].AgentID < fleet[j].AgentID })
	return fleet
}

// Sweep deletes entries recorded before olderThan and returns how many were
// removed. The age check is repeated under the shard lock so a report that
// lands mid-sweep is never lost.
func (s *LocationStore) Sweep(olderThan time.Time) int {
	removed := 0
	for _, key := range s.positions.Keys() {
		ok := s.positions.RemoveCb(key, func(_ string, pos domain.AgentPosition, exists bool) bool {
			return exists && pos.RecordedAt.Before(olderThan)
		})
		if ok {
			removed++
		}
	}
	return removed
}

// Count returns the number of held entries, fresh or stale.
func (s *LocationStore) Count() int {
	return s.positions.Count()
}
