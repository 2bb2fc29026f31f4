// init.go implements the "slidesmith init" command.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slidesmith-dev/slidesmith/internal/config"
	"github.com/slidesmith-dev/slidesmith/internal/theme"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize slidesmith in the current directory",
	Long: `Create the .slidesmith/ directory with a default config.yaml and
add its runtime files to .gitignore.`,
	RunE: runInit,
}

var (
	initLang  string
	initTheme string
	initForce bool
)

func init() {
	initCmd.Flags().StringVar(&initLang, "lang", "", "Default deck language (en, zh)")
	initCmd.Flags().StringVar(&initTheme, "theme", "", "Default Beamer theme")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config without asking")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	cfgPath := filepath.Join(dir, config.Dir, "config.yaml")
	if _, statErr := os.Stat(cfgPath); statErr == nil && !initForce {
		fmt.Printf("Warning: %s already exists.\n", filepath.Join(config.Dir, "config.yaml"))
		fmt.Print("Overwrite? [y/N]: ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	catalog, err := theme.Default()
	if err != nil {
		return err
	}
	cfg := config.DefaultConfig()
	if initLang != "" {
		p, err := catalog.Profile(theme.Language(initLang))
		if err != nil {
			return err
		}
		cfg.Defaults.Language = string(p.Code)
	}
	if initTheme != "" {
		t, err := catalog.Theme(initTheme)
		if err != nil {
			return err
		}
		cfg.Defaults.Theme = t.Name
	}

	if err := config.WriteConfig(dir, cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(config.Resolve(dir, cfg.Storage.SessionsDir), 0755); err != nil {
		return fmt.Errorf("creating sessions directory: %w", err)
	}
	if err := ensureGitignore(dir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to set up .gitignore: %v\n", err)
	}

	fmt.Println("Slidesmith initialized")
	fmt.Printf("  Language: %s\n", cfg.Defaults.Language)
	fmt.Printf("  Theme:    %s\n", cfg.Defaults.Theme)
	fmt.Printf("  Oracle:   %s (%s)\n", cfg.Oracle.Backend, cfg.Oracle.Model)
	fmt.Println()
	fmt.Println("Configuration written to .slidesmith/config.yaml")
	fmt.Println("Next: slidesmith new --plan plan.yaml --figures figures/")
	return nil
}

// ensureGitignore appends slidesmith's runtime files to .gitignore.
// config.yaml stays committed.
func ensureGitignore(dir string) error {
	gitignorePath := filepath.Join(dir, ".gitignore")

	requiredEntries := []string{
		".slidesmith/log.jsonl",
		".slidesmith/slidesmith.db*",
		".slidesmith/sessions/",
	}

	existing := ""
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existing = string(data)
	}

	var missing []string
	for _, entry := range requiredEntries {
		if !strings.Contains(existing, entry) {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var toAppend strings.Builder
	if existing != "" && !strings.HasSuffix(existing, "\n") {
		toAppend.WriteString("\n")
	}
	if existing != "" {
		toAppend.WriteString("\n# Added by slidesmith init\n")
	}
	for _, entry := range missing {
		toAppend.WriteString(entry + "\n")
	}

	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening .gitignore: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(toAppend.String()); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	return nil
}
