package main

import (
	"context"
	"log"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/aristath/deliverygate/internal/tui"
)

func newDashboardCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "dashboard",
		GroupID: "views",
		Short:   "Open the live gate board",
		Args:    cobra.NoArgs,
		RunE:    withApp(opts, runDashboard),
	}
}

func runDashboard(cmd *cobra.Command, a *app, _ []string) error {
	ctx := cmd.Context()

	refreshCtx, cancelRefresh := context.WithCancel(ctx)

	// Portfolio passes run one at a time; a manual refresh during a pass is dropped
	var running sync.Mutex
	evaluate := func() {
		if !running.TryLock() {
			return
		}
		defer running.Unlock()
		if _, err := a.evaluator.Run(refreshCtx); err != nil && refreshCtx.Err() == nil {
			log.Printf("portfolio evaluation failed: %v", err)
		}
	}

	// Stop evaluating and wait for an in-flight pass before the store closes
	defer func() {
		cancelRefresh()
		running.Lock()
		running.Unlock()
	}()

	model := tui.New(a.bus, a.cfg, a.globalPath, a.projectPath, evaluate)

	// Start Bubble Tea program in a goroutine so we can handle shutdown
	p := tea.NewProgram(model, tea.WithAltScreen())

	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	go refreshLoop(refreshCtx, time.Duration(a.cfg.Portfolio.RefreshSeconds)*time.Second, evaluate)

	select {
	case err := <-errChan:
		// Normal TUI exit (user pressed 'q')
		return err
	case <-ctx.Done():
		log.Println("Shutdown signal received, cleaning up...")
		cancelRefresh()
		p.Quit()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		select {
		case err := <-errChan:
			if err != nil {
				log.Printf("TUI exit error: %v", err)
			}
		case <-shutdownCtx.Done():
			log.Println("Shutdown timeout exceeded, forcing exit")
		}
	}

	log.Println("Shutdown complete")
	return nil
}

// refreshLoop evaluates immediately, then every period until ctx is done.
func refreshLoop(ctx context.Context, period time.Duration, evaluate func()) {
	if period <= 0 {
		period = 30 * time.Second
	}

	evaluate()

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evaluate()
		}
	}
}
