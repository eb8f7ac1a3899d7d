package intern

import (
	"time"

	"github.com/ValentinKolb/hashcons/lib/util"
)

// --------------------------------------------------------------------------
// Background sweeper
// --------------------------------------------------------------------------

// startSweeper starts the background sweeper
func (s *Store) startSweeper() {
	s.wg.Add(1)
	go s.sweeper()
}

// sweeper collects reclaim notifications and adjusts dirty shards, oldest first.
// At most MaxSweepPerTick shards are adjusted per SweepInterval.
// WARNING: this method should never be called directly! It is started by NewStore and stopped by Close.
//
// Thread-safety: This function is not thread-safe!
func (s *Store) sweeper() {
	defer s.wg.Done()

	dirty := util.NewDirtyHeap()
	collect := func(e reclaimEvent) {
		dirty.MarkDirty(e.shard, e.generation)
	}

	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return

		case <-s.events.Ready():
			s.events.Drain(collect)

		case <-ticker.C:
			s.events.Drain(collect)
			if dirty.Len() == 0 {
				continue
			}

			swept, pending := 0, 0
			for swept < s.opts.MaxSweepPerTick {
				item, ok := dirty.PopOldest()
				if !ok {
					break
				}
				s.Adjust(item.Shard)
				swept++
				pending += item.Pending
			}
			Logger.Debugf("%s: swept %d shards (%d reclamations, %d shards still dirty)",
				s.opts.Name, swept, pending, dirty.Len())
		}
	}
}
