package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"solvency/internal/commitment"
	"solvency/internal/ledger"
	"solvency/internal/prover"
	"solvency/internal/solvency"
)

func TestConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "solvency.json")

	created, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if err := created.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	created.HiddenAssets = 7
	if err := SaveConfig(created, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Shape().HiddenAssets != 7 {
		t.Errorf("saved value not reloaded: %+v", loaded.Shape())
	}

	bad := DefaultConfig()
	bad.RateSlots = 0
	if err := bad.Validate(); err == nil {
		t.Errorf("zero rate slots must not validate")
	}
	bad = DefaultConfig()
	bad.MaxConcurrency = 0
	if err := bad.Validate(); err == nil {
		t.Errorf("zero concurrency must not validate")
	}
}

func TestMetrics(t *testing.T) {
	mc := NewMetricsCollector()
	mc.RecordUpdate(solvency.Asset, true, nil)
	mc.RecordUpdate(solvency.Asset, true, nil)
	mc.RecordUpdate(solvency.Liability, false, solvency.ErrInputMismatch)

	ok := map[string]string{"kind": "asset", "mode": "confidential", "outcome": "ok"}
	if got := mc.Counter(MetricUpdateCount, ok); got != 2 {
		t.Errorf("expected 2 successful updates, got %d", got)
	}
	if got := mc.Counter(MetricErrorCount, map[string]string{"type": "input_mismatch"}); got != 1 {
		t.Errorf("expected 1 input mismatch, got %d", got)
	}

	mc.RecordHistogram("h", 1, nil)
	mc.RecordHistogram("h", 3, nil)
	h := mc.Histogram("h", nil)
	if h.Count != 2 || h.Min != 1 || h.Max != 3 || h.Avg() != 2 {
		t.Errorf("unexpected histogram stats %+v", h)
	}

	if makeKey("m", map[string]string{"b": "2", "a": "1"}) != makeKey("m", map[string]string{"a": "1", "b": "2"}) {
		t.Errorf("metric keys must not depend on label order")
	}
	if errorKind(errors.New("x")) != "other" {
		t.Errorf("unknown errors map to other")
	}

	mc.Reset()
	if mc.GetMetric(MetricUpdateCount, ok) != nil {
		t.Errorf("Reset must drop all series")
	}
}

func TestRenderAccount(t *testing.T) {
	store := ledger.NewStore()
	acct := solvency.NewAccount()
	code, _ := commitment.RandomAssetCode()
	for _, confidential := range []bool{false, true} {
		o, err := store.Issue(12345, code, confidential)
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		if err := acct.Update(context.Background(), solvency.Asset, o.Amount, o.Code, o.Blinds, o.Ref, store); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := renderAccount(&buf, acct); err != nil {
		t.Fatalf("renderAccount failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"public asset", "hidden asset", "12345", "proof: false"} {
		if !strings.Contains(strings.ToLower(out), want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStateChecker(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.KeyDir = filepath.Join(dir, "keys")
	cfg.LedgerPath = filepath.Join(dir, "ledger.json")
	cfg.AccountPath = filepath.Join(dir, "account.cbor")
	cfg.AuditPath = filepath.Join(dir, "audit.cbor")

	h := stateChecker(cfg).CheckHealth()
	if h.OverallStatus != Degraded {
		t.Fatalf("fresh state should be degraded, got %s", h.OverallStatus)
	}
	if len(h.Components) != 4 || h.Components[0].Name != "account" {
		t.Errorf("components must be reported in name order: %+v", h.Components)
	}

	if err := os.WriteFile(cfg.LedgerPath, []byte("{"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	h = stateChecker(cfg).CheckHealth()
	if h.OverallStatus != Unhealthy {
		t.Errorf("a corrupt ledger must be unhealthy, got %s", h.OverallStatus)
	}

	var buf bytes.Buffer
	if err := h.Render(&buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "overall: unhealthy") {
		t.Errorf("unexpected render output:\n%s", buf.String())
	}
}

// writeTestConfig puts every state file under dir and uses the smallest
// useful circuit.
func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	cfg := DefaultConfig()
	cfg.HiddenAssets, cfg.HiddenLiabilities, cfg.RateSlots = 1, 1, 1
	cfg.KeyDir = filepath.Join(dir, "keys")
	cfg.LedgerPath = filepath.Join(dir, "ledger.json")
	cfg.AccountPath = filepath.Join(dir, "account.cbor")
	cfg.AuditPath = filepath.Join(dir, "audit.json")
	cfg.PublicPath = filepath.Join(dir, "public.json")
	cfg.LogLevel = "error"
	path := filepath.Join(dir, "solvency.json")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	return path
}

func TestCommandFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("runs a Groth16 setup")
	}
	dir := t.TempDir()
	conf := writeTestConfig(t, dir)
	code := commitment.AssetCode{1, 2, 3}.String()

	step := func(t *testing.T, want int, args ...string) {
		t.Helper()
		if got := run(append([]string{"-config", conf}, args...)); got != want {
			t.Fatalf("solvencyd %s: exit %d, want %d", strings.Join(args, " "), got, want)
		}
	}

	asset := filepath.Join(dir, "asset.json")
	liability := filepath.Join(dir, "liability.json")

	step(t, 0, "setup")
	step(t, 0, "issue", "-amount", "50", "-code", code, "-confidential", "-out", asset)
	step(t, 0, "issue", "-amount", "30", "-code", code, "-out", liability)
	step(t, 0, "update", "-kind", "asset", "-opening", asset)
	step(t, 0, "update", "-kind", "liability", "-opening", liability)

	// No rate yet.
	step(t, 1, "prove")

	step(t, 0, "rate", "-code", code, "-rate", "2")
	step(t, 0, "prove")
	if _, err := os.Stat(filepath.Join(dir, "public.json")); err != nil {
		t.Fatalf("prove must export the public view: %v", err)
	}
	step(t, 0, "verify")
	step(t, 0, "inspect")
	step(t, 0, "check")

	t.Run("Insolvent", func(t *testing.T) {
		debt := filepath.Join(dir, "debt.json")
		step(t, 0, "issue", "-amount", "100", "-code", code, "-confidential", "-out", debt)
		step(t, 0, "update", "-kind", "liability", "-opening", debt)
		step(t, 1, "prove")

		acct, err := solvency.LoadAccount(filepath.Join(dir, "account.cbor"))
		if err != nil {
			t.Fatalf("LoadAccount failed: %v", err)
		}
		if acct.HasProof() {
			t.Errorf("the update must have cleared the stored proof")
		}
		// The exported view still proves the earlier state.
		step(t, 0, "verify")
	})

	t.Run("Usage Errors", func(t *testing.T) {
		step(t, 2, "nosuchcommand")
		if got := run([]string{"-config", conf}); got != 2 {
			t.Errorf("missing command: exit %d, want 2", got)
		}
		step(t, 1, "update", "-kind", "asset")
	})
}

// blockingProver never returns until release is closed.
type blockingProver struct{ release chan struct{} }

func (b blockingProver) Prove(*prover.Witness) ([]byte, error) {
	<-b.release
	return nil, errors.New("released")
}

func TestProveTimeout(t *testing.T) {
	p := blockingProver{release: make(chan struct{})}
	defer close(p.release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := proveWithin(ctx, solvency.NewAudit(), p, solvency.NewAccount())
	if !errors.Is(err, solvency.ErrProveFailed) {
		t.Fatalf("expected ErrProveFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), context.DeadlineExceeded.Error()) {
		t.Errorf("timeout must be reported, got %v", err)
	}

	acct := solvency.NewAccount()
	if err := proveWithin(context.Background(), solvency.NewAudit(), stubProver{proof: []byte{1}}, acct); err != nil {
		t.Fatalf("a prove that finishes in time must succeed: %v", err)
	}
	if !acct.HasProof() {
		t.Errorf("expected the proof to be stored")
	}
}

type stubProver struct{ proof []byte }

func (s stubProver) Prove(*prover.Witness) ([]byte, error) {
	return s.proof, nil
}
