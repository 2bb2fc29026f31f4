// clean.go implements the "slidesmith clean" command.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean SESSION",
	Short: "Remove compile work directories no compiled revision uses",
	Long: `Remove the work directories of failed compile attempts and rechecks
from a session. Directories holding a compiled revision's PDF are kept.
Use --dry-run to preview what would be removed.`,
	Args: cobra.ExactArgs(1),
	RunE: runClean,
}

var dryRunFlag bool

func init() {
	cleanCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Preview what would be removed without deleting")
}

func runClean(cmd *cobra.Command, args []string) error {
	quiet = true
	proj, err := openProject()
	if err != nil {
		return err
	}
	defer proj.close()

	id, err := resolveSession(cmd.Context(), proj.svc, args[0])
	if err != nil {
		return err
	}
	pruned, err := proj.svc.Clean(cmd.Context(), id, dryRunFlag)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	if len(pruned) == 0 {
		fmt.Println("Nothing to clean up.")
		return nil
	}

	verb := "Removed"
	if dryRunFlag {
		verb = "Would remove"
	}
	for _, name := range pruned {
		fmt.Printf("  %s %s\n", verb, name)
	}
	fmt.Printf("%s %d work director(ies).\n", verb, len(pruned))
	return nil
}
