// health.go - Health checks over the tool's on-disk state
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"

	"solvency/internal/ledger"
	"solvency/internal/prover"
	"solvency/internal/solvency"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Degraded  HealthStatus = "degraded"
	Unhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a specific component
type ComponentHealth struct {
	Name    string        `json:"name"`
	Status  HealthStatus  `json:"status"`
	Message string        `json:"message"`
	Latency time.Duration `json:"latency,omitempty"`
}

// SystemHealth is the result of one round of checks
type SystemHealth struct {
	OverallStatus HealthStatus      `json:"overall_status"`
	Timestamp     time.Time         `json:"timestamp"`
	Components    []ComponentHealth `json:"components"`
}

// degradedError marks a check that found usable but incomplete state.
type degradedError struct{ msg string }

func (e degradedError) Error() string { return e.msg }

func degraded(format string, args ...interface{}) error {
	return degradedError{msg: fmt.Sprintf(format, args...)}
}

// HealthChecker runs named checks
type HealthChecker struct {
	checkers map[string]func() error
}

// NewHealthChecker creates a checker with no components
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{checkers: make(map[string]func() error)}
}

// RegisterComponent registers a health check for a component
func (hc *HealthChecker) RegisterComponent(name string, checker func() error) {
	hc.checkers[name] = checker
}

// CheckHealth runs every check in name order
func (hc *HealthChecker) CheckHealth() *SystemHealth {
	names := make([]string, 0, len(hc.checkers))
	for name := range hc.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	overall := Healthy
	components := make([]ComponentHealth, 0, len(names))
	for _, name := range names {
		start := time.Now()
		err := hc.checkers[name]()
		c := ComponentHealth{Name: name, Status: Healthy, Message: "OK", Latency: time.Since(start)}

		var d degradedError
		switch {
		case err == nil:
		case errors.As(err, &d):
			c.Status, c.Message = Degraded, err.Error()
		default:
			c.Status, c.Message = Unhealthy, err.Error()
		}

		if c.Status == Unhealthy {
			overall = Unhealthy
		} else if c.Status == Degraded && overall == Healthy {
			overall = Degraded
		}
		components = append(components, c)
	}
	return &SystemHealth{OverallStatus: overall, Timestamp: time.Now(), Components: components}
}

// Render prints the components as a table.
func (h *SystemHealth) Render(w io.Writer) error {
	table := tablewriter.NewWriter(w)
	table.Header("Component", "Status", "Message", "Latency")
	for _, c := range h.Components {
		if err := table.Append([]string{c.Name, string(c.Status), c.Message, c.Latency.Round(time.Microsecond).String()}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "overall: %s\n", h.OverallStatus)
	return err
}

// stateChecker wires checks for the configured files.
func stateChecker(cfg *Config) *HealthChecker {
	hc := NewHealthChecker()
	shape := cfg.Shape()

	hc.RegisterComponent("keys", func() error {
		if _, err := os.Stat(cfg.KeyDir); err != nil {
			return degraded("no keys yet, run setup")
		}
		return prover.ExpectShape(cfg.KeyDir, shape)
	})

	hc.RegisterComponent("ledger", func() error {
		if _, err := os.Stat(cfg.LedgerPath); os.IsNotExist(err) {
			return degraded("no ledger yet")
		}
		store, err := ledger.LoadStoreFromFile(cfg.LedgerPath)
		if err != nil {
			return err
		}
		if store.Len() == 0 {
			return degraded("ledger is empty")
		}
		return nil
	})

	hc.RegisterComponent("account", func() error {
		acct, err := solvency.LoadAccount(cfg.AccountPath)
		if err != nil {
			return err
		}
		s := acct.Summary()
		if s.HiddenAssets > shape.HiddenAssets || s.HiddenLiabilities > shape.HiddenLiabilities {
			return degraded("%d/%d hidden entries exceed capacity %d/%d",
				s.HiddenAssets, s.HiddenLiabilities, shape.HiddenAssets, shape.HiddenLiabilities)
		}
		if !s.HasProof {
			return degraded("no current proof")
		}
		return nil
	})

	hc.RegisterComponent("audit", func() error {
		audit, err := solvency.LoadAudit(cfg.AuditPath)
		if err != nil {
			return err
		}
		table := audit.Rates()
		if table.Len() > shape.Rates {
			return degraded("%d distinct rates exceed capacity %d", table.Len(), shape.Rates)
		}
		acct, err := solvency.LoadAccount(cfg.AccountPath)
		if err != nil {
			return err
		}
		if missing := missingRates(acct, table); missing > 0 {
			return degraded("%d account entries have no rate", missing)
		}
		return nil
	})
	return hc
}

func missingRates(acct *solvency.Account, table solvency.RateTable) int {
	missing := 0
	check := func(e solvency.AmountAndCode) {
		if _, ok := table.Lookup(e.Code); !ok {
			missing++
		}
	}
	for _, e := range acct.PublicAssets() {
		check(e)
	}
	for _, e := range acct.PublicLiabilities() {
		check(e)
	}
	for _, e := range acct.HiddenAssets() {
		check(e.Value)
	}
	for _, e := range acct.HiddenLiabilities() {
		check(e.Value)
	}
	return missing
}

func (a *app) check(args []string) error {
	h := stateChecker(a.cfg).CheckHealth()
	for _, c := range h.Components {
		a.metrics.SetGauge("component_healthy", boolGauge(c.Status == Healthy), map[string]string{"component": c.Name})
	}
	if err := h.Render(a.out); err != nil {
		return err
	}
	if h.OverallStatus == Unhealthy {
		return fmt.Errorf("state is unhealthy")
	}
	return nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
