package solvency

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// VerifyAll verifies independent public views concurrently, running at most
// limit verifications at once (limit <= 0 means no bound). The result is
// index-aligned with pubs; views not reached before ctx is done report
// ctx.Err().
func (a *Audit) VerifyAll(ctx context.Context, e Verifier, pubs []*PublicAccount, limit int) []error {
	results := make([]error, len(pubs))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	table := a.Rates()
	for i, pub := range pubs {
		i, pub := i, pub
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = err
				return nil
			}
			results[i] = a.verifyWith(e, table, pub)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
