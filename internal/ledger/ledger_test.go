package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"solvency/internal/commitment"
)

func TestStoreIssueAndResolve(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	code, err := commitment.RandomAssetCode()
	if err != nil {
		t.Fatalf("RandomAssetCode failed: %v", err)
	}

	pub, err := store.Issue(120, code, false)
	if err != nil {
		t.Fatalf("Issue public failed: %v", err)
	}
	if pub.Blinds != nil {
		t.Errorf("public outputs carry no blinds")
	}

	conf, err := store.Issue(1<<40+5, code, true)
	if err != nil {
		t.Fatalf("Issue confidential failed: %v", err)
	}
	if conf.Blinds == nil {
		t.Fatalf("confidential outputs must carry blinds")
	}
	if conf.Ref == pub.Ref {
		t.Fatalf("refs must be distinct")
	}

	t.Run("Public Output", func(t *testing.T) {
		a, err := store.Resolve(ctx, pub.Ref)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if a.Confidential || a.Value != 120 {
			t.Errorf("unexpected public amount %+v", a)
		}
	})

	t.Run("Confidential Output Opens", func(t *testing.T) {
		a, err := store.Resolve(ctx, conf.Ref)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if !a.Confidential {
			t.Fatalf("expected confidential amount")
		}
		combined, err := commitment.CombineCommitments(a.Low, a.High)
		if err != nil {
			t.Fatalf("CombineCommitments failed: %v", err)
		}
		blind := commitment.CombineLimbs(conf.Blinds.AmountLow, conf.Blinds.AmountHigh)
		if combined != commitment.Commit(commitment.NewScalar(conf.Amount), blind) {
			t.Errorf("limb commitments must open to the issued amount")
		}
	})

	t.Run("Unknown Ref", func(t *testing.T) {
		if _, err := store.Resolve(ctx, OutputRef(99)); !errors.Is(err, ErrUnknownOutput) {
			t.Errorf("expected ErrUnknownOutput, got %v", err)
		}
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := store.Resolve(cctx, pub.Ref); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestStoreSaveLoad(t *testing.T) {
	store := NewStore()
	var code commitment.AssetCode
	if _, err := store.Issue(7, code, false); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := store.Issue(9, code, true); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "ledger.json")
	if err := store.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}
	loaded, err := LoadStoreFromFile(path)
	if err != nil {
		t.Fatalf("LoadStoreFromFile failed: %v", err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("expected 2 outputs, got %d", loaded.Len())
	}
	for ref := OutputRef(0); ref < 2; ref++ {
		want, _ := store.Resolve(context.Background(), ref)
		got, _ := loaded.Resolve(context.Background(), ref)
		if want != got {
			t.Errorf("output %s differs after reload", ref)
		}
	}

	missing, err := LoadOrCreateStore(filepath.Join(t.TempDir(), "none.json"))
	if err != nil || missing.Len() != 0 {
		t.Errorf("LoadOrCreateStore on a missing file must return an empty store, got %v", err)
	}
}

func TestQuerierFunc(t *testing.T) {
	var q Querier = QuerierFunc(func(ctx context.Context, ref OutputRef) (Amount, error) {
		return PublicAmount(uint64(ref) * 10), nil
	})
	a, err := q.Resolve(context.Background(), 4)
	if err != nil || a.Value != 40 {
		t.Errorf("QuerierFunc returned (%+v, %v)", a, err)
	}
	if _, err := ParseOutputRef("x"); err == nil {
		t.Errorf("expected parse error")
	}
}
