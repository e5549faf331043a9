package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"promptkit/internal/components"
	"promptkit/internal/render"
	"promptkit/internal/server/handlers"
	"promptkit/internal/storage"
)

// renderFlags are shared by render and watch.
type renderFlags struct {
	file          string
	offset        int
	path          string
	language      string
	budget        int
	suffixPercent int
	splitContext  bool
	snippets      []string
	traits        []string
	jsonOutput    bool
}

func (f *renderFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "document to complete (\"-\" reads stdin)")
	cmd.Flags().IntVarP(&f.offset, "offset", "o", -1, "cursor byte offset (-1 for end of document)")
	cmd.Flags().StringVar(&f.path, "path", "", "path shown in the prompt (defaults to --file)")
	cmd.Flags().StringVarP(&f.language, "language", "l", "", "language id used for comment markers")
	cmd.Flags().IntVarP(&f.budget, "budget", "b", 0, "total token budget (overrides config)")
	cmd.Flags().IntVar(&f.suffixPercent, "suffix-percent", -1, "share of the budget for the suffix (overrides config)")
	cmd.Flags().BoolVar(&f.splitContext, "split-context", false, "return context groups separately")
	cmd.Flags().StringSliceVar(&f.snippets, "snippet", nil, "file to include as a related snippet (repeatable)")
	cmd.Flags().StringSliceVar(&f.traits, "trait", nil, "name=value fact to include (repeatable)")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "output the result as JSON")
	_ = cmd.MarkFlagRequired("file")
}

// request builds a render request for doc. The snippet files are read on
// every call so watch picks up their edits too.
func (f *renderFlags) request(cmd *cobra.Command, doc string) (handlers.RenderRequest, error) {
	offset := f.offset
	if offset < 0 {
		offset = len(doc)
	}
	path := f.path
	if path == "" && f.file != "-" {
		path = f.file
	}

	req := handlers.RenderRequest{
		CompletionRequest: components.CompletionRequest{
			Document:   doc,
			Offset:     offset,
			Path:       path,
			LanguageID: f.language,
		},
	}

	overrides := &handlers.RenderOverrides{TokenBudget: f.budget}
	if cmd.Flags().Changed("suffix-percent") {
		overrides.SuffixPercent = &f.suffixPercent
	}
	if cmd.Flags().Changed("split-context") {
		overrides.SplitContext = &f.splitContext
	}
	req.Options = overrides

	for _, file := range f.snippets {
		data, err := os.ReadFile(file)
		if err != nil {
			return req, fmt.Errorf("read snippet: %w", err)
		}
		req.Snippets = append(req.Snippets, components.Snippet{Path: file, Text: string(data)})
	}
	for _, t := range f.traits {
		name, value, ok := strings.Cut(t, "=")
		if !ok || name == "" {
			return req, fmt.Errorf("invalid trait %q, want name=value", t)
		}
		req.Traits = append(req.Traits, components.Trait{Name: name, Value: value})
	}
	return req, nil
}

func (f *renderFlags) readDocument(cmd *cobra.Command) (string, error) {
	if f.file == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
	data, err := os.ReadFile(f.file)
	return string(data), err
}

// NewRenderCmd creates the render command.
func NewRenderCmd() *cobra.Command {
	var (
		flags      renderFlags
		sessionKey string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a prompt for a document and cursor",
		Long: `Render a completion prompt for one cursor position.

The prefix ends at the cursor and the suffix starts on the line after it.
Context (path, language, traits, snippets) is elided lowest weight first
when the prompt does not fit the budget.`,
		Example: `  # Cursor at the end of the file
  promptkit render -f main.go

  # Explicit cursor, small budget, one related file
  promptkit render -f main.go -o 120 -b 256 --snippet util.go

  # Keep the suffix stable across invocations from one editor
  promptkit render -f main.go -o 120 --session-key editor-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return errNoContext
			}
			return runRender(cmd, cliCtx, &flags, sessionKey)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&sessionKey, "session-key", "", "persist the suffix under this key between invocations")
	return cmd
}

func runRender(cmd *cobra.Command, cliCtx *CLIContext, flags *renderFlags, sessionKey string) error {
	tok, err := cliCtx.GetTokenizer()
	if err != nil {
		return err
	}
	doc, err := flags.readDocument(cmd)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	req, err := flags.request(cmd, doc)
	if err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	session, err := render.NewSession(tok)
	if err != nil {
		return err
	}

	var db *storage.DB
	if sessionKey != "" {
		if db, err = cliCtx.GetStorage(); err != nil {
			return err
		}
		suffix, err := db.LoadSuffix(sessionKey)
		switch {
		case err == nil:
			session.SuffixCache().Seed(suffix)
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}
	}

	events, opts := req.Prepare(cliCtx.RenderOptions(), cliCtx.Config.Render.SuffixCharsPerToken)
	if err := session.Update(cmd.Context(), events...); err != nil {
		return err
	}
	res := session.Render(cmd.Context(), opts)
	cliCtx.Journal(res, storage.OriginCLI, req.Path)

	if res.Status != render.StatusOK {
		if res.Err != nil {
			return res.Err
		}
		return fmt.Errorf("render %s", res.Status)
	}

	if db != nil {
		if err := db.SaveSuffix(sessionKey, session.SuffixCache().Suffix(), cliCtx.Config.Storage.SuffixTTL); err != nil {
			return err
		}
	}
	return printResult(cmd.OutOrStdout(), res, flags.jsonOutput)
}

func printResult(w io.Writer, res render.Result, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(w, handlers.NewRenderResponse(res))
	}

	for i, group := range res.Context {
		fmt.Fprintf(w, "--- context %d ---\n%s\n", i, group)
	}
	fmt.Fprintf(w, "--- prefix (%d tokens) ---\n%s\n", res.PrefixTokens, res.Prefix)
	fmt.Fprintf(w, "--- suffix (%d tokens) ---\n%s\n", res.SuffixTokens, res.Suffix)
	return nil
}
