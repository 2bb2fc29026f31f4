// new.go implements the "slidesmith new" command.
package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/slidesmith-dev/slidesmith/internal/plan"
	"github.com/slidesmith-dev/slidesmith/internal/workflow"
)

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a session and build its first revision from a plan",
	Long: `Read a presentation plan (YAML or JSON), generate the Beamer source,
and compile it, repairing it from diagnostics if needed.`,
	RunE: runNew,
}

var (
	newPlanPath string
	newFigures  string
	newLang     string
	newTheme    string
	newTOC      bool
	newNoTOC    bool
)

func init() {
	newCmd.Flags().StringVar(&newPlanPath, "plan", "", "Presentation plan file (required)")
	newCmd.Flags().StringVar(&newFigures, "figures", "", "Directory holding the plan's figures")
	newCmd.Flags().StringVar(&newLang, "lang", "", "Deck language (default from config)")
	newCmd.Flags().StringVar(&newTheme, "theme", "", "Beamer theme (default from config)")
	newCmd.Flags().BoolVar(&newTOC, "toc", false, "Include a table of contents")
	newCmd.Flags().BoolVar(&newNoTOC, "no-toc", false, "Omit the table of contents")
	_ = newCmd.MarkFlagRequired("plan")
	newCmd.MarkFlagsMutuallyExclusive("toc", "no-toc")
}

func runNew(cmd *cobra.Command, args []string) error {
	p, err := plan.Load(newPlanPath)
	if err != nil {
		return err
	}

	proj, err := openProject()
	if err != nil {
		return err
	}
	defer proj.close()

	in := workflow.NewSession{
		Plan:            p,
		FigureDir:       newFigures,
		Language:        proj.cfg.Defaults.Language,
		Theme:           proj.cfg.Defaults.Theme,
		TableOfContents: proj.cfg.Defaults.TableOfContents,
	}
	if in.FigureDir == "" {
		in.FigureDir = filepath.Dir(newPlanPath)
	}
	if abs, absErr := filepath.Abs(in.FigureDir); absErr == nil {
		in.FigureDir = abs
	}
	if newLang != "" {
		in.Language = newLang
	}
	if newTheme != "" {
		in.Theme = newTheme
	}
	switch {
	case newTOC:
		in.TableOfContents = true
	case newNoTOC:
		in.TableOfContents = false
	}

	sess, art, err := proj.svc.Create(cmd.Context(), in)
	if sess != nil {
		fmt.Printf("Session %s (%s, %s)\n", sess.ID, sess.Language, sess.Theme)
	}
	printResult(art)
	return err
}
