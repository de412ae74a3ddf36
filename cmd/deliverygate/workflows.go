package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aristath/deliverygate/internal/gate"
	"github.com/aristath/deliverygate/internal/history"
	"github.com/aristath/deliverygate/internal/persistence"
	"github.com/aristath/deliverygate/internal/workflow"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	var clientID, workflowID string
	var force bool

	cmd := &cobra.Command{
		Use:     "import <template>",
		GroupID: "work",
		Short:   "Create a workflow for a client from a YAML template",
		Long: `Create a workflow for a client from a YAML template.

<template> is either a name from the "templates" section of the config or a path to a YAML file.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			if clientID == "" || workflowID == "" {
				return errors.New("--client and --workflow are required")
			}
			if err := workflow.ValidateID(workflowID); err != nil {
				return fmt.Errorf("--workflow: %w", err)
			}

			path := args[0]
			if named, ok := a.cfg.Templates[path]; ok {
				path = named
			}
			tpl, err := workflow.LoadTemplate(path)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			_, err = a.store.GetWorkflow(ctx, workflowID)
			exists := err == nil
			if exists && !force {
				return fmt.Errorf("workflow %q already exists (use --force to replace it)", workflowID)
			} else if err != nil && !errors.Is(err, persistence.ErrNotFound) {
				return err
			}

			wf := tpl.Instantiate(workflowID, clientID)
			save := a.store.SaveWorkflow
			if exists {
				save = a.store.ReplaceWorkflow
			}
			if err := save(ctx, wf); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %q for %s as %s: %d modules, %d steps\n",
				tpl.Name, clientID, workflowID, len(wf.Modules), wf.StepCount())
			return nil
		}),
	}
	cmd.Flags().StringVar(&clientID, "client", "", "client the workflow belongs to")
	cmd.Flags().StringVar(&workflowID, "workflow", "", "ID of the new workflow")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing workflow, discarding its progress")
	return cmd
}

func newStepCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "step <workflow> <step> <status>",
		GroupID: "work",
		Short:   "Set a step's status (todo, doing, review, done, blocked, backlog)",
		Args:    cobra.ExactArgs(3),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			status, err := gate.ParseStepStatus(args[2])
			if err != nil {
				return err
			}

			wf, err := a.store.GetWorkflow(ctx, args[0])
			if err != nil {
				return err
			}
			mod, idx, err := resolveStep(wf, args[1])
			if err != nil {
				return err
			}

			if err := a.store.UpdateStepStatus(ctx, mod.Steps[idx].ID, status); err != nil {
				return err
			}
			return reevaluate(ctx, cmd.OutOrStdout(), a, wf.ID, mod.ID)
		}),
	}
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:     "check <workflow> <step> <item>",
		GroupID: "work",
		Short:   "Tick a checklist item (by ID, name or 1-based position)",
		Args:    cobra.ExactArgs(3),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			wf, err := a.store.GetWorkflow(ctx, args[0])
			if err != nil {
				return err
			}
			mod, idx, err := resolveStep(wf, args[1])
			if err != nil {
				return err
			}
			item, err := resolveChecklistItem(mod.Steps[idx], args[2])
			if err != nil {
				return err
			}

			if err := a.store.SetChecklistItem(ctx, item.ID, !undo); err != nil {
				return err
			}
			return reevaluate(ctx, cmd.OutOrStdout(), a, wf.ID, mod.ID)
		}),
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "untick the item instead")
	return cmd
}

func newFailCmd(opts *rootOptions) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:     "fail <workflow> [module]",
		GroupID: "work",
		Short:   "Mark a gate as failed; it stays failed until its scope is complete",
		Args:    cobra.RangeArgs(1, 2),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			key, err := gateKey(cmd.Context(), a, args)
			if err != nil {
				return err
			}
			if err := a.recorder.MarkFailed(cmd.Context(), key, reason); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s marked failed\n", key)
			return nil
		}),
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the gate failed (required)")
	return cmd
}

func newClearCmd(opts *rootOptions) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:     "clear <workflow> [module]",
		GroupID: "work",
		Short:   "Reset a failed gate to pending",
		Args:    cobra.RangeArgs(1, 2),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			key, err := gateKey(cmd.Context(), a, args)
			if err != nil {
				return err
			}
			if err := a.recorder.Clear(cmd.Context(), key, reason); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s reset to pending\n", key)
			return nil
		}),
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the failure no longer applies (required)")
	return cmd
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "history <workflow> [module]",
		GroupID: "views",
		Short:   "Show the recorded status changes of a gate",
		Args:    cobra.RangeArgs(1, 2),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			key, err := gateKey(cmd.Context(), a, args)
			if err != nil {
				return err
			}
			recs, err := a.recorder.History(cmd.Context(), key)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintf(w, "%s has no recorded history\n", key)
				return nil
			}
			for _, rec := range recs {
				line := fmt.Sprintf("%s  %-8s issues=%d", rec.RecordedAt.Local().Format("2006-01-02 15:04:05"), rec.Status, rec.IssueCount)
				if rec.Reason != "" {
					line += "  " + rec.Reason
				}
				fmt.Fprintln(w, line)
			}
			return nil
		}),
	}
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "show <workflow>",
		GroupID: "views",
		Short:   "Show a workflow's modules, steps and checklists",
		Args:    cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			wf, err := a.store.GetWorkflow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			plan, err := workflow.PlanFor(wf)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s (%s) for %s\n", wf.Name, wf.ID, wf.ClientID)
			for _, m := range plan.Modules() {
				fmt.Fprintf(w, "\n%s [%s]", m.Name, m.ID)
				if len(m.DependsOn) > 0 {
					fmt.Fprintf(w, " after %v", m.DependsOn)
				}
				fmt.Fprintln(w)
				for _, s := range m.Steps {
					fmt.Fprintf(w, "  %-8s %s (%s)\n", s.Status, s.Name, s.ID)
					for i, item := range s.Checklist {
						mark := " "
						if item.Completed {
							mark = "x"
						}
						fmt.Fprintf(w, "           [%s] %d. %s\n", mark, i+1, item.Name)
					}
				}
			}
			return nil
		}),
	}
}

// resolveStep finds a step by its full ID or by the ID it had in the template.
func resolveStep(wf *workflow.Workflow, ref string) (*workflow.Module, int, error) {
	if mod, idx, ok := wf.FindStep(ref); ok {
		return mod, idx, nil
	}
	if mod, idx, ok := wf.FindStep(wf.ID + "/" + ref); ok {
		return mod, idx, nil
	}
	return nil, -1, fmt.Errorf("workflow %q has no step %q: %w", wf.ID, ref, persistence.ErrNotFound)
}

// resolveChecklistItem finds an item by ID, then by name, then by 1-based position.
func resolveChecklistItem(step gate.Step, ref string) (gate.ChecklistItem, error) {
	for _, item := range step.Checklist {
		if item.ID == ref {
			return item, nil
		}
	}
	for _, item := range step.Checklist {
		if item.Name == ref {
			return item, nil
		}
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(step.Checklist) {
		return step.Checklist[n-1], nil
	}
	return gate.ChecklistItem{}, fmt.Errorf("step %q has no checklist item %q: %w", step.Name, ref, persistence.ErrNotFound)
}

// gateKey builds a gate key from "<workflow> [module]" arguments, checking
// that both exist.
func gateKey(ctx context.Context, a *app, args []string) (history.Key, error) {
	wf, err := a.store.GetWorkflow(ctx, args[0])
	if err != nil {
		return history.Key{}, err
	}
	key := history.Key{WorkflowID: wf.ID}
	if len(args) > 1 {
		found := false
		for _, m := range wf.Modules {
			if m.ID == args[1] {
				found = true
				break
			}
		}
		if !found {
			return history.Key{}, fmt.Errorf("workflow %q has no module %q: %w", wf.ID, args[1], persistence.ErrNotFound)
		}
		key.ModuleID = args[1]
	}
	return key, nil
}

// reevaluate re-runs the gate of moduleID and the workflow gate after a
// change, and reports modules the change unlocked.
func reevaluate(ctx context.Context, w io.Writer, a *app, workflowID, moduleID string) error {
	wf, err := a.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	plan, err := workflow.PlanFor(wf)
	if err != nil {
		return err
	}

	scope, _ := plan.ModuleScope(moduleID)
	verdict, err := a.recorder.Evaluate(ctx, history.Key{WorkflowID: wf.ID, ModuleID: moduleID}, wf.ClientID, scope)
	if err != nil {
		return err
	}
	printVerdict(w, wf.ID+"/"+moduleID, verdict)

	if verdict.Status == gate.GatePassed {
		statuses := make(map[string]gate.GateStatus)
		for _, m := range plan.Modules() {
			s, err := a.store.LastGateStatus(ctx, wf.ID, m.ID)
			if err != nil {
				return err
			}
			statuses[m.ID] = s
		}
		unlocked, err := workflow.NewProgression(plan).OnGatePassed(moduleID, statuses)
		if err != nil {
			return err
		}
		for _, m := range unlocked {
			fmt.Fprintf(w, "unlocked: %s [%s]\n", m.Name, m.ID)
		}
	}

	wfScope, err := plan.WorkflowScope()
	if err != nil {
		return err
	}
	wfVerdict, err := a.recorder.Evaluate(ctx, history.Key{WorkflowID: wf.ID}, wf.ClientID, wfScope)
	if err != nil {
		return err
	}
	printVerdict(w, wf.ID, wfVerdict)
	return nil
}

func printVerdict(w io.Writer, label string, v gate.Verdict) {
	fmt.Fprintf(w, "%s: %s\n", label, v.Status)
	for _, msg := range v.Messages() {
		fmt.Fprintf(w, "  - %s\n", msg)
	}
}
