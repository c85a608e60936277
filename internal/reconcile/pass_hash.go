package reconcile

import (
	"context"
	"time"
)

// MatchByHash pairs every incoming record with every non-ignored saved record
// that has the same content hash. Such pairs are certain: score 1, hash match.
func (cs *ChangeSet) MatchByHash(ctx context.Context) (*ChangeSet, error) {
	if err := cs.require(PassHash, StageNew); err != nil {
		return cs, err
	}

	started := time.Now()

	byHash := make(map[string][]int, len(cs.saved))
	for j, s := range cs.saved {
		if s.Ignored {
			continue
		}
		byHash[s.ContentHash] = append(byHash[s.ContentHash], j)
	}

	stat := PassStat{Pass: PassHash}
	for i, in := range cs.incoming {
		if err := ctx.Err(); err != nil {
			return cs, err
		}

		for _, j := range byHash[in.Hash()] {
			added, err := cs.add(PassHash, 1, i, j, 1, true)
			if err != nil {
				return cs, err
			}
			if added {
				stat.Added++
			}
		}
	}

	cs.stage = StageHashed
	cs.record(stat, started)

	return cs, nil
}
