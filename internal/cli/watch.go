package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"promptkit/internal/render"
	"promptkit/internal/storage"
	"promptkit/internal/watch"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	var flags renderFlags

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-render the prompt whenever the document changes",
		Long: `Watch a document and print a fresh prompt after every change.

All renders share one session, so the suffix stays stable while the text
after the cursor changes only slightly.`,
		Example: `  promptkit watch -f main.go -o 120`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return errNoContext
			}
			if flags.file == "-" {
				return fmt.Errorf("watch needs a file, not stdin")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, cliCtx, &flags)
		},
	}

	flags.register(cmd)
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, cliCtx *CLIContext, flags *renderFlags) error {
	tok, err := cliCtx.GetTokenizer()
	if err != nil {
		return err
	}
	session, err := render.NewSession(tok)
	if err != nil {
		return err
	}

	changes := make(chan struct{}, 1)
	w, err := watch.NewWatcher(cliCtx.Config.Watch.Debounce, func(string) {
		select {
		case changes <- struct{}{}:
		default:
		}
	}, flags.file)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	log := cliCtx.Log()
	rerender := func() {
		if err := watchRender(ctx, cmd, cliCtx, session, flags); err != nil {
			log.Warn().Err(err).Str("file", flags.file).Msg("render failed")
		}
	}

	rerender()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			rerender()
		}
	}
}

// watchRender renders the file's current content. A request that fails
// validation leaves the session on the previous document.
func watchRender(ctx context.Context, cmd *cobra.Command, cliCtx *CLIContext, session *render.Session, flags *renderFlags) error {
	doc, err := flags.readDocument(cmd)
	if err != nil {
		return err
	}
	req, err := flags.request(cmd, doc)
	if err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	events, opts := req.Prepare(cliCtx.RenderOptions(), cliCtx.Config.Render.SuffixCharsPerToken)
	if err := session.Update(ctx, events...); err != nil {
		return err
	}
	res := session.Render(ctx, opts)
	cliCtx.Journal(res, storage.OriginWatch, req.Path)

	switch res.Status {
	case render.StatusOK:
		return printResult(cmd.OutOrStdout(), res, flags.jsonOutput)
	case render.StatusCancelled:
		return nil
	default:
		return res.Err
	}
}
