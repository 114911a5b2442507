package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/greenstreak/greenstreak/internal/core/engine"
	"github.com/greenstreak/greenstreak/internal/observability"
	"github.com/greenstreak/greenstreak/internal/output"
)

var commitOpts struct {
	repo    string
	branch  string
	path    string
	content string
	message string
	preview bool
	yes     bool
	noColor bool
}

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Create one commit now",
	Long: `Create a single direct commit. The file at --path is created or replaced;
without --message a conventional commit title and a timestamped body are
generated. Direct commits without --message also count against the daily
limit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if commitOpts.noColor {
			color.NoColor = true
		}

		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, observability.CLILogger, true)
		if err != nil {
			return err
		}
		defer a.Close() // nolint:errcheck // best-effort cleanup

		req := engine.CommitRequest{
			Repo:    firstNonEmpty(commitOpts.repo, a.selector.Pick()),
			Branch:  firstNonEmpty(commitOpts.branch, cfg.GitHub.Branch),
			Path:    firstNonEmpty(commitOpts.path, cfg.GitHub.Path),
			Content: firstNonEmpty(commitOpts.content, cfg.GitHub.Content),
			Message: commitOpts.message,
			Mode:    "manual",
		}

		out := cmd.OutOrStdout()
		if commitOpts.preview {
			var ok bool
			req, ok, err = previewCommit(cmd.Context(), a, req, out, cmd.InOrStdin())
			if err != nil || !ok {
				return err
			}
		}

		record, err := a.orch.Commit(cmd.Context(), req)
		if err != nil {
			color.New(color.FgRed).Fprintf(out, "✗ commit to %s failed: %v\n", req.Repo, err) // nolint:errcheck
			return err
		}

		color.New(color.FgGreen).Fprintf(out, "✓ %s committed to %s@%s:%s\n", // nolint:errcheck
			record.ShortSHA(), record.Repo, record.Branch, record.Path)
		fmt.Fprintf(out, "  %s\n", record.Message) // nolint:errcheck
		if record.HTMLURL != "" {
			fmt.Fprintf(out, "  %s\n", record.HTMLURL) // nolint:errcheck
		}
		return nil
	},
}

// previewCommit shows what will be written and asks for confirmation. The
// returned request pins the previewed title and stamp.
func previewCommit(ctx context.Context, a *app, req engine.CommitRequest, out io.Writer, in io.Reader) (engine.CommitRequest, bool, error) {
	req, title, body := a.orch.Preview(req)

	bold := color.New(color.Bold)
	bold.Fprintln(out, "Commit preview") // nolint:errcheck
	fmt.Fprintf(out, "  repo:    %s\n  branch:  %s\n  path:    %s\n  message: %s\n\n", // nolint:errcheck
		req.Repo, req.Branch, req.Path, title)

	bold.Fprintln(out, "Content") // nolint:errcheck
	fmt.Fprintln(out, output.Snippet(body)) // nolint:errcheck

	current := ""
	file, err := a.client.GetFile(ctx, req.Repo, req.Path, req.Branch)
	switch {
	case err != nil:
		color.New(color.FgYellow).Fprintf(out, "\n(could not read current file: %v)\n", err) // nolint:errcheck
	case file == nil:
		color.New(color.FgYellow).Fprintln(out, "\n(new file)") // nolint:errcheck
	default:
		decoded, err := file.Decoded()
		if err != nil {
			return req, false, fmt.Errorf("decode current file: %w", err)
		}
		current = string(decoded)
	}

	fmt.Fprintln(out) // nolint:errcheck
	bold.Fprintln(out, "Diff against remote") // nolint:errcheck
	if err := output.WriteDiff(out, output.LineDiff(current, body)); err != nil {
		return req, false, err
	}

	if commitOpts.yes {
		return req, true, nil
	}
	ok, err := confirm(out, in, "\nCreate this commit? [y/N] ")
	if err != nil {
		return req, false, err
	}
	if !ok {
		fmt.Fprintln(out, "Aborted.") // nolint:errcheck
	}
	return req, ok, nil
}

func confirm(out io.Writer, in io.Reader, prompt string) (bool, error) {
	answer, err := promptForValue(out, in, prompt)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func init() {
	rootCmd.AddCommand(commitCmd)

	f := commitCmd.Flags()
	f.StringVar(&commitOpts.repo, "repo", "", "target repository owner/name (default: next configured repo)")
	f.StringVar(&commitOpts.branch, "branch", "", "target branch (default: github.branch)")
	f.StringVar(&commitOpts.path, "path", "", "file to write (default: github.path)")
	f.StringVar(&commitOpts.content, "content", "", "file body written verbatim")
	f.StringVar(&commitOpts.message, "message", "", "commit message; also replaces the generated body")
	f.BoolVar(&commitOpts.preview, "preview", false, "show the commit and a diff against the remote file first")
	f.BoolVarP(&commitOpts.yes, "yes", "y", false, "skip the confirmation prompt")
	f.BoolVar(&commitOpts.noColor, "no-color", false, "disable coloured output")
}
