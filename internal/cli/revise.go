// revise.go implements the "slidesmith revise", "rollback" and "build"
// commands.
package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/slidesmith-dev/slidesmith/internal/revise"
)

var reviseCmd = &cobra.Command{
	Use:   "revise SESSION FEEDBACK...",
	Short: "Apply feedback to the latest compiled revision",
	Long: `Ask the oracle to apply natural-language feedback to a compiled
revision, then compile the result as a new revision. Feedback may point at
a slide ("slide 2", "page 4", "第3页").`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRevise,
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback SESSION REVISION",
	Short: "Restore a compiled revision as a new revision",
	Args:  cobra.ExactArgs(2),
	RunE:  runRollback,
}

var buildCmd = &cobra.Command{
	Use:   "build SESSION REVISION",
	Short: "Finish building a revision, or recheck a compiled one with --force",
	Args:  cobra.ExactArgs(2),
	RunE:  runBuild,
}

var (
	reviseFrom        int
	reviseRetryFailed bool
	buildForce        bool
)

func init() {
	reviseCmd.Flags().IntVar(&reviseFrom, "from", -1, "Base revision (default: latest compiled)")
	reviseCmd.Flags().BoolVar(&reviseRetryFailed, "retry-failed", false, "Allow --from to name a failed revision")
	buildCmd.Flags().BoolVar(&buildForce, "force", false, "Recompile a compiled revision without changing it")
}

func runRevise(cmd *cobra.Command, args []string) error {
	proj, err := openProject()
	if err != nil {
		return err
	}
	defer proj.close()

	id, err := resolveSession(cmd.Context(), proj.svc, args[0])
	if err != nil {
		return err
	}
	req := revise.Request{
		Feedback:        strings.Join(args[1:], " "),
		AllowFailedBase: reviseRetryFailed,
	}
	if reviseFrom >= 0 {
		req.FromRevision = &reviseFrom
	}

	art, err := proj.svc.Revise(cmd.Context(), id, req)
	printResult(art)
	return err
}

func runRollback(cmd *cobra.Command, args []string) error {
	rev, err := parseRevision(args[1])
	if err != nil {
		return err
	}
	proj, err := openProject()
	if err != nil {
		return err
	}
	defer proj.close()

	id, err := resolveSession(cmd.Context(), proj.svc, args[0])
	if err != nil {
		return err
	}
	art, err := proj.svc.Rollback(cmd.Context(), id, rev)
	printResult(art)
	return err
}

func runBuild(cmd *cobra.Command, args []string) error {
	rev, err := parseRevision(args[1])
	if err != nil {
		return err
	}
	proj, err := openProject()
	if err != nil {
		return err
	}
	defer proj.close()

	id, err := resolveSession(cmd.Context(), proj.svc, args[0])
	if err != nil {
		return err
	}
	art, err := proj.svc.Build(cmd.Context(), id, rev, buildForce)
	printResult(art)
	return err
}
