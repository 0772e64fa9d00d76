// main.go - Command-line front end for confidential solvency proofs.
//
// The tool keeps a local append-only ledger of outputs, an owner's account
// state, an audit rate table and Groth16 keys on disk, and drives the
// account/audit protocol over them:
//
//	solvencyd setup                                   compile circuit, create or load keys
//	solvencyd issue -amount 10 -confidential          mint an output, print its opening
//	solvencyd update -kind asset -opening out.json    apply an output to the account
//	solvencyd rate -code <code> -rate 3               append a conversion rate
//	solvencyd prove                                   prove solvency, export the public view
//	solvencyd verify [public.json ...]                verify shared public views
//	solvencyd inspect                                 print the account
//	solvencyd check                                   report the health of the on-disk state
//
// Paths and circuit capacities come from the JSON config (default
// solvency.json, created on first use).

package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog/log"
)

type command struct {
	run     func(a *app, args []string) error
	summary string
}

var commands = map[string]command{
	"setup":   {(*app).setup, "compile the circuit and generate or load Groth16 keys"},
	"issue":   {(*app).issue, "mint an output into the ledger and print its opening"},
	"update":  {(*app).update, "apply a ledger output to the account"},
	"rate":    {(*app).rate, "append a conversion rate to the audit"},
	"prove":   {(*app).prove, "prove the account solvent and export its public view"},
	"verify":  {(*app).verify, "verify one or more public views"},
	"inspect": {(*app).inspect, "print the account as a table"},
	"check":   {(*app).check, "report the health of keys, ledger, account and audit files"},
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: solvencyd [-config solvency.json] <command> [flags]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", name, commands[name].summary)
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("solvencyd", flag.ContinueOnError)
	configPath := fs.String("config", "solvency.json", "path to the JSON config file")
	fs.Usage = usage
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		usage()
		return 2
	}
	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		usage()
		return 2
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config %s: %v\n", *configPath, err)
		return 1
	}
	closer, err := setupLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer closer.Close()

	a := &app{cfg: cfg, metrics: NewMetricsCollector(), out: os.Stdout}
	err = cmd.run(a, fs.Args()[1:])
	a.metrics.Log(log.Logger)
	if err != nil {
		log.Error().Err(err).Str("command", name).Msg("command failed")
		return 1
	}
	return 0
}
