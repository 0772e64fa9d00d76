// commands.go - Subcommand implementations
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"

	"solvency/internal/commitment"
	"solvency/internal/ledger"
	"solvency/internal/prover"
	"solvency/internal/solvency"
)

type app struct {
	cfg     *Config
	metrics *MetricsCollector
	out     io.Writer
}

func (a *app) engineOptions() []prover.Option {
	return []prover.Option{prover.WithLogger(log.Logger.With().Str("component", "prover").Logger())}
}

func (a *app) loadEngine() (*prover.Engine, error) {
	start := time.Now()
	e, err := prover.SetupOrLoadKeys(a.cfg.Shape(), a.cfg.KeyDir, a.engineOptions()...)
	if err != nil {
		return nil, fmt.Errorf("keys in %s: %w", a.cfg.KeyDir, err)
	}
	a.metrics.RecordSetup(time.Since(start))
	return e, nil
}

func (a *app) setup(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	e, err := a.loadEngine()
	if err != nil {
		return err
	}
	shape := e.Shape()
	log.Info().
		Str("key_dir", a.cfg.KeyDir).
		Int("hidden_assets", shape.HiddenAssets).
		Int("hidden_liabilities", shape.HiddenLiabilities).
		Int("rates", shape.Rates).
		Msg("keys ready")
	return nil
}

func parseCode(s string) (commitment.AssetCode, error) {
	if s == "" {
		return commitment.RandomAssetCode()
	}
	return commitment.ParseAssetCode(s)
}

func (a *app) issue(args []string) error {
	fs := flag.NewFlagSet("issue", flag.ContinueOnError)
	amount := fs.Uint64("amount", 0, "output amount")
	codeFlag := fs.String("code", "", "asset code (base64url, random when empty)")
	confidential := fs.Bool("confidential", false, "commit to the amount instead of publishing it")
	outPath := fs.String("out", "", "write the opening to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	code, err := parseCode(*codeFlag)
	if err != nil {
		return err
	}

	store, err := ledger.LoadOrCreateStore(a.cfg.LedgerPath)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	opening, err := store.Issue(*amount, code, *confidential)
	if err != nil {
		return err
	}
	if err := store.SaveToFile(a.cfg.LedgerPath); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	log.Info().Stringer("ref", opening.Ref).Bool("confidential", *confidential).Msg("output issued")

	data, err := json.MarshalIndent(opening, "", "  ")
	if err != nil {
		return err
	}
	if *outPath != "" {
		return os.WriteFile(*outPath, data, 0o600)
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}

func (a *app) update(args []string) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	kindFlag := fs.String("kind", "asset", "asset or liability")
	openingPath := fs.String("opening", "", "opening file written by issue")
	refFlag := fs.String("ref", "", "output ref (when no opening file is given)")
	amount := fs.Uint64("amount", 0, "claimed amount (when no opening file is given)")
	codeFlag := fs.String("code", "", "asset code (when no opening file is given)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	kind, err := solvency.ParseAmountType(*kindFlag)
	if err != nil {
		return err
	}

	var opening ledger.Opening
	if *openingPath != "" {
		data, err := os.ReadFile(*openingPath)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &opening); err != nil {
			return fmt.Errorf("decode opening %s: %w", *openingPath, err)
		}
	} else {
		if *refFlag == "" || *codeFlag == "" {
			return errors.New("update needs -opening, or -ref, -amount and -code")
		}
		if opening.Ref, err = ledger.ParseOutputRef(*refFlag); err != nil {
			return err
		}
		if opening.Code, err = commitment.ParseAssetCode(*codeFlag); err != nil {
			return err
		}
		opening.Amount = *amount
	}

	store, err := ledger.LoadStoreFromFile(a.cfg.LedgerPath)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	acct, err := solvency.LoadAccount(a.cfg.AccountPath)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}

	err = acct.Update(context.Background(), kind, opening.Amount, opening.Code, opening.Blinds, opening.Ref, store)
	a.metrics.RecordUpdate(kind, opening.Blinds != nil, err)
	if err != nil {
		return err
	}
	a.metrics.RecordAccount(acct.Summary())
	if err := solvency.SaveAccount(a.cfg.AccountPath, acct); err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	log.Info().Stringer("kind", kind).Stringer("ref", opening.Ref).Msg("account updated")
	return nil
}

func (a *app) rate(args []string) error {
	fs := flag.NewFlagSet("rate", flag.ContinueOnError)
	codeFlag := fs.String("code", "", "asset code (base64url)")
	rate := fs.Uint64("rate", 0, "conversion rate")
	if err := fs.Parse(args); err != nil {
		return err
	}
	code, err := commitment.ParseAssetCode(*codeFlag)
	if err != nil {
		return err
	}
	audit, err := solvency.LoadAudit(a.cfg.AuditPath)
	if err != nil {
		return fmt.Errorf("load audit: %w", err)
	}
	audit.SetRate(code, *rate)
	if err := solvency.SaveAudit(a.cfg.AuditPath, audit); err != nil {
		return fmt.Errorf("save audit: %w", err)
	}
	log.Info().Stringer("code", code).Uint64("rate", *rate).Int("distinct_codes", audit.Rates().Len()).Msg("rate set")
	return nil
}

func (a *app) prove(args []string) error {
	fs := flag.NewFlagSet("prove", flag.ContinueOnError)
	publicPath := fs.String("public", a.cfg.PublicPath, "where to write the public view")
	if err := fs.Parse(args); err != nil {
		return err
	}
	acct, err := solvency.LoadAccount(a.cfg.AccountPath)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	audit, err := solvency.LoadAudit(a.cfg.AuditPath)
	if err != nil {
		return fmt.Errorf("load audit: %w", err)
	}
	e, err := a.loadEngine()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ProveTimeout())
	defer cancel()
	start := time.Now()
	if err := proveWithin(ctx, audit, e, acct); err != nil {
		a.metrics.RecordError(err)
		return err
	}
	a.metrics.RecordProof(time.Since(start))

	if err := solvency.SaveAccount(a.cfg.AccountPath, acct); err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	if err := solvency.SavePublic(*publicPath, acct.Public()); err != nil {
		return fmt.Errorf("save public view: %w", err)
	}
	log.Info().Str("public", *publicPath).Int("proof_bytes", len(acct.Proof())).Dur("took", time.Since(start)).Msg("account proven solvent")
	return nil
}

// proveWithin runs audit.Prove until ctx is done. A prove still running at
// the deadline is abandoned and its result dropped.
func proveWithin(ctx context.Context, audit *solvency.Audit, e solvency.Prover, acct *solvency.Account) error {
	done := make(chan error, 1)
	go func() {
		done <- audit.Prove(e, acct)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", solvency.ErrProveFailed, ctx.Err())
	}
}

func (a *app) verify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	paths := fs.Args()
	if len(paths) == 0 {
		paths = []string{a.cfg.PublicPath}
	}

	pubs := make([]*solvency.PublicAccount, len(paths))
	for i, p := range paths {
		pub, err := solvency.LoadPublic(p)
		if err != nil {
			return fmt.Errorf("load public view: %w", err)
		}
		pubs[i] = pub
	}
	audit, err := solvency.LoadAudit(a.cfg.AuditPath)
	if err != nil {
		return fmt.Errorf("load audit: %w", err)
	}
	e, err := prover.LoadVerifier(a.cfg.KeyDir, a.engineOptions()...)
	if err != nil {
		return fmt.Errorf("load verifier: %w", err)
	}

	start := time.Now()
	results := audit.VerifyAll(context.Background(), e, pubs, a.cfg.MaxConcurrency)
	elapsed := time.Since(start)

	failed := 0
	for i, err := range results {
		a.metrics.RecordVerify(elapsed/time.Duration(len(results)), err)
		if err != nil {
			failed++
			a.metrics.RecordError(err)
			log.Warn().Str("view", paths[i]).Err(err).Msg("verification failed")
			continue
		}
		log.Info().Str("view", paths[i]).Msg("verified")
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d views failed verification", failed, len(results))
	}
	return nil
}

func (a *app) inspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	acct, err := solvency.LoadAccount(a.cfg.AccountPath)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	return renderAccount(a.out, acct)
}

func renderAccount(w io.Writer, acct *solvency.Account) error {
	table := tablewriter.NewWriter(w)
	table.Header("List", "#", "Amount", "Code", "Amount Commitment")

	rows := [][]string{}
	addPublic := func(list string, entries []solvency.AmountAndCode) {
		for i, e := range entries {
			rows = append(rows, []string{list, fmt.Sprint(i), e.Amount.BigInt().String(), shortHex(e.Code.String()), "-"})
		}
	}
	addHidden := func(list string, entries []solvency.HiddenEntry) {
		for i, e := range entries {
			rows = append(rows, []string{list, fmt.Sprint(i), e.Value.Amount.BigInt().String(), shortHex(e.Value.Code.String()), shortHex(e.Commitment.Amount.String())})
		}
	}
	addPublic("public asset", acct.PublicAssets())
	addHidden("hidden asset", acct.HiddenAssets())
	addPublic("public liability", acct.PublicLiabilities())
	addHidden("hidden liability", acct.HiddenLiabilities())

	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	s := acct.Summary()
	_, err := fmt.Fprintf(w, "proof: %v\n", s.HasProof)
	return err
}

func shortHex(s string) string {
	if len(s) <= 16 {
		return s
	}
	return s[:8] + ".." + s[len(s)-8:]
}
