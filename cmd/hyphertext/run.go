package main

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/codefionn/hyphertext/internal/events"
	"github.com/codefionn/hyphertext/internal/logger"
	"github.com/codefionn/hyphertext/internal/orchestrator"
	"github.com/codefionn/hyphertext/internal/store"
)

var (
	runPageID  string
	runMessage string
	runModel   string
	runAgent   string
	runOwner   string
	runTitle   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process one chat message against a page in the foreground",
	Long: `Run inserts a chat message for the page and processes it synchronously,
printing progress events as they happen. Without --page a new placeholder
page is created first.`,
	RunE: runOnce,
}

func init() {
	runCmd.Flags().StringVar(&runPageID, "page", "", "Page id (a new page is created when empty)")
	runCmd.Flags().StringVarP(&runMessage, "message", "m", "", "Chat message to process")
	runCmd.Flags().StringVar(&runModel, "model", "", "Model id (defaults to models.default)")
	runCmd.Flags().StringVar(&runAgent, "agent", "", "Agent strategy: planned or simple")
	runCmd.Flags().StringVar(&runOwner, "owner", "", "Owner id for a new page")
	runCmd.Flags().StringVar(&runTitle, "title", "Untitled", "Title for a new page")
	_ = runCmd.MarkFlagRequired("message")
	rootCmd.AddCommand(runCmd)
}

// printer writes progress events to stdout.
type printer struct {
	mu sync.Mutex
}

func (p *printer) Publish(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch ev.Type {
	case events.TypeStage:
		fmt.Printf("[stage] %s\n", ev.Stage)
	case events.TypeTool:
		fmt.Printf("[tool] %s: %s\n", ev.Tool, ev.Content)
	case events.TypeMessage:
		fmt.Printf("[reply] %s\n", ev.Content)
	}
}

func runOnce(cmd *cobra.Command, _ []string) error {
	agent, err := orchestrator.ParseAgent(runAgent)
	if err != nil {
		return err
	}

	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Global().Close()

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, &printer{})
	if err != nil {
		cfg.Credentials.Destroy()
		return err
	}
	defer a.Close()

	modelID, err := a.router.Resolve(runModel)
	if err != nil {
		return err
	}

	var page *store.Page
	if runPageID == "" {
		page = &store.Page{OwnerID: runOwner, Title: runTitle}
		if err := a.store.CreatePage(ctx, page); err != nil {
			return fmt.Errorf("failed to create page: %w", err)
		}
		fmt.Printf("created page %s\n", page.ID)
	} else if page, err = a.store.GetPage(ctx, runPageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("page %s not found", runPageID)
		}
		return err
	}

	msg := &store.ChatMessage{
		PageID:  page.ID,
		Role:    store.RoleUser,
		Content: runMessage,
		Status:  store.StatusPending,
		Type:    store.TypeChat,
		ModelID: modelID,
	}
	if err := a.store.InsertMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}

	report, err := a.orchestrator.Run(ctx, orchestrator.Request{
		MessageID: msg.ID,
		PageID:    page.ID,
		OwnerID:   page.OwnerID,
		Content:   runMessage,
		ModelID:   modelID,
		Agent:     agent,
	})
	if report != nil {
		fmt.Fprintf(os.Stdout, "outcome=%s decision=%s tokens=%d iterations=%d\n",
			report.Outcome, report.Decision, report.TokensUsed, report.Iterations)
		if report.Summary != "" {
			fmt.Println(report.Summary)
		}
	}
	return err
}
