// themes.go implements the "slidesmith themes" command.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slidesmith-dev/slidesmith/internal/theme"
)

var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "List the available Beamer themes and languages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := theme.Default()
		if err != nil {
			return err
		}
		fmt.Println("Themes:")
		for _, name := range catalog.ThemeNames() {
			t, _ := catalog.Theme(name)
			marker := " "
			if t.Name == catalog.DefaultTheme {
				marker = "*"
			}
			fmt.Printf(" %s %-12s %-10s %s\n", marker, t.Name, t.ColorTheme, t.Description)
		}
		fmt.Println()
		fmt.Println("Languages:")
		for _, code := range catalog.LanguageCodes() {
			p, _ := catalog.Profile(theme.Language(code))
			fmt.Printf("   %-4s engine %s\n", p.Code, p.Engine)
		}
		return nil
	},
}
