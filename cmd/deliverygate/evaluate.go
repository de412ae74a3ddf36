package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aristath/deliverygate/internal/gate"
	"github.com/aristath/deliverygate/internal/report"
)

// gateJSON is the machine-readable form of a gate summary.
type gateJSON struct {
	ClientID   string          `json:"client_id"`
	WorkflowID string          `json:"workflow_id"`
	ModuleID   string          `json:"module_id,omitempty"`
	Status     gate.GateStatus `json:"status"`
	Locked     bool            `json:"locked,omitempty"`
	Issues     []string        `json:"issues"`
}

type portfolioJSON struct {
	Gates  []gateJSON              `json:"gates"`
	Counts map[gate.GateStatus]int `json:"counts"`
	Health float64                 `json:"health"`
	Next   map[string]string       `json:"next"`
	Errors map[string]string       `json:"errors,omitempty"`
}

func newEvaluateCmd(opts *rootOptions) *cobra.Command {
	var atRiskOnly bool

	cmd := &cobra.Command{
		Use:     "evaluate",
		GroupID: "views",
		Short:   "Evaluate every gate once and print the portfolio",
		Args:    cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, _ []string) error {
			p, err := a.evaluator.Run(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printPortfolioJSON(cmd.OutOrStdout(), p, atRiskOnly)
			}
			printPortfolio(cmd.OutOrStdout(), p, atRiskOnly)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&atRiskOnly, "at-risk", false, "only list blocked and failed gates")
	return cmd
}

func printPortfolio(w io.Writer, p *report.Portfolio, atRiskOnly bool) {
	gates := p.Gates
	if atRiskOnly {
		gates = p.AtRisk()
	}

	lastClient := ""
	for _, g := range gates {
		if g.ClientID != lastClient {
			fmt.Fprintf(w, "%s\n", g.ClientID)
			lastClient = g.ClientID
		}

		label := g.Label()
		if g.Locked {
			label += " (locked)"
		}
		fmt.Fprintf(w, "  %-9s %s\n", strings.ToUpper(string(g.Verdict.Status)), label)
		for _, msg := range g.Verdict.Messages() {
			fmt.Fprintf(w, "            - %s\n", msg)
		}
	}

	for _, e := range p.Errors {
		fmt.Fprintf(w, "ERROR     %s: %v\n", e.WorkflowID, e.Err)
	}

	fmt.Fprintf(w, "\n%d gates: %d passed, %d pending, %d blocked, %d failed (%.0f%% healthy)\n",
		p.Total(),
		p.Counts[gate.GatePassed],
		p.Counts[gate.GatePending],
		p.Counts[gate.GateBlocked],
		p.Counts[gate.GateFailed],
		p.Health()*100)
}

func printPortfolioJSON(w io.Writer, p *report.Portfolio, atRiskOnly bool) error {
	gates := p.Gates
	if atRiskOnly {
		gates = p.AtRisk()
	}

	out := portfolioJSON{
		Gates:  make([]gateJSON, 0, len(gates)),
		Counts: p.Counts,
		Health: p.Health(),
		Next:   p.Next,
	}
	for _, g := range gates {
		out.Gates = append(out.Gates, gateJSON{
			ClientID:   g.ClientID,
			WorkflowID: g.WorkflowID,
			ModuleID:   g.ModuleID,
			Status:     g.Verdict.Status,
			Locked:     g.Locked,
			Issues:     g.Verdict.Messages(),
		})
	}
	if len(p.Errors) > 0 {
		out.Errors = make(map[string]string, len(p.Errors))
		for _, e := range p.Errors {
			out.Errors[e.WorkflowID] = e.Err.Error()
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
