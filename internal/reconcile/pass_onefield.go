package reconcile

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/persistorai/credsync/internal/models"
)

type canonicalFields [len(models.Fields)]string

func canonicalize(r models.IncomingRecord) canonicalFields {
	var c canonicalFields
	for i, f := range models.Fields {
		c[i] = models.Canonical(r.Value(f))
	}

	return c
}

// differsByOne reports whether exactly one canonical field differs.
func differsByOne(a, b *canonicalFields) bool {
	diff := 0
	for i := range a {
		if a[i] != b[i] {
			diff++
			if diff > 1 {
				return false
			}
		}
	}

	return diff == 1
}

type shardMatch struct {
	in, saved int
}

// MatchOneFieldChanges pairs records still unmatched after the hash pass that
// differ in exactly one canonical field. Incoming records are split into at
// most workers shards scanned concurrently; results are merged in shard order.
func (cs *ChangeSet) MatchOneFieldChanges(ctx context.Context, workers int) (*ChangeSet, error) {
	if err := cs.require(PassOneField, StageHashed); err != nil {
		return cs, err
	}

	started := time.Now()
	workers = max(workers, 1)

	var waitErr error

	inIdx := cs.unmatchedIncoming()
	savIdx := cs.unmatchedSaved()

	savFields := make([]canonicalFields, len(savIdx))
	for k, j := range savIdx {
		savFields[k] = canonicalize(cs.saved[j].Content())
	}

	var shards [][]shardMatch
	if len(inIdx) > 0 {
		shardSize := (len(inIdx) + workers - 1) / workers
		shards = make([][]shardMatch, (len(inIdx)+shardSize-1)/shardSize)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)

		for s := range shards {
			part := inIdx[s*shardSize : min((s+1)*shardSize, len(inIdx))]

			g.Go(func() error {
				for _, i := range part {
					if err := gctx.Err(); err != nil {
						return err
					}

					in := canonicalize(cs.incoming[i])
					for k := range savFields {
						if differsByOne(&in, &savFields[k]) {
							shards[s] = append(shards[s], shardMatch{in: i, saved: savIdx[k]})
						}
					}
				}

				return nil
			})
		}

		waitErr = g.Wait()
	}

	stat := PassStat{Pass: PassOneField}
	for _, shard := range shards {
		for _, m := range shard {
			added, err := cs.add(PassOneField, 1, m.in, m.saved, 1, false)
			if err != nil {
				return cs, err
			}
			if added {
				stat.Added++
			}
		}
	}

	if waitErr != nil {
		return cs, waitErr
	}

	if err := ctx.Err(); err != nil {
		return cs, err
	}

	cs.stage = StageOneField
	cs.record(stat, started)

	return cs, nil
}
