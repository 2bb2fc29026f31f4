// status.go implements the "slidesmith status" command listing sessions.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List recent sessions",
	Long: `Display recent sessions with their revision count and latest
compiled revision.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var statusLimit int

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 20, "Number of sessions to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	quiet = true
	proj, err := openProject()
	if err != nil {
		return err
	}
	defer proj.close()

	sessions, err := proj.svc.Sessions(cmd.Context(), statusLimit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return fmt.Errorf("no sessions found; start one with: slidesmith new --plan FILE")
	}

	fmt.Println("Slidesmith Sessions")
	fmt.Println()
	for _, s := range sessions {
		latest := "none"
		if s.LatestCompiled >= 0 {
			latest = fmt.Sprintf("rev %d", s.LatestCompiled)
		}
		fmt.Printf("  %-8s  %-16s  %3d rev  compiled: %-7s  %s\n",
			s.ID[:min(8, len(s.ID))], s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Revisions, latest, s.Title)
	}
	return nil
}
