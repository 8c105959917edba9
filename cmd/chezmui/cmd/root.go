package cmd

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/chezmui/chezmui/internal/chezmoi"
	"github.com/chezmui/chezmui/internal/config"
	"github.com/chezmui/chezmui/internal/tui"
)

var (
	cfgFile        string
	engineBinary   string
	destinationDir string
	workingDir     string
	cfg            *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "chezmui",
	Short: "Terminal UI for chezmoi-managed dotfiles",
	Long: `chezmui is an interactive terminal UI for a chezmoi-style dotfile
engine. It shows pending changes, the managed file tree, and unmanaged
files, and dispatches engine actions (apply, add, forget, ignore, ...)
against the selection.

Views:
  1  Status     files whose destination differs from the target state
  2  Managed    the managed file tree under the destination directory
  3  Unmanaged  files the engine does not manage yet

Navigation:
  ↑/k, ↓/j    Move up/down
  h/l         Collapse / expand directories
  Tab         Cycle pane focus (list, detail, log)
  /           Filter the list
  Space       Mark entries for a batch action
  a           Open the action menu
  d / Enter   Show the diff        v  Preview file contents
  r           Refresh              q  Quit`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// Flags override the config file.
		if engineBinary != "" {
			cfg.Engine.Binary = engineBinary
		}
		if destinationDir != "" {
			cfg.Engine.HomeDir = destinationDir
		}
		if workingDir != "" {
			cfg.Engine.WorkingDir = workingDir
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
			return fmt.Errorf("chezmui requires an interactive terminal")
		}

		client := chezmoi.NewShellClient(cfg.Engine.Binary, cfg.Engine.HomeDir, cfg.Engine.WorkingDir)
		model := tui.New(tui.Options{
			Config:     cfg,
			Client:     client,
			Version:    version,
			HomeDir:    cfg.Engine.HomeDir,
			WorkingDir: cfg.Engine.WorkingDir,
		})

		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("run ui: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/chezmui/config.toml)")
	rootCmd.Flags().StringVar(&engineBinary, "binary", "", "engine binary name or path (default chezmoi)")
	rootCmd.Flags().StringVarP(&destinationDir, "destination", "D", "", "destination directory (default $HOME)")
	rootCmd.Flags().StringVarP(&workingDir, "working-dir", "W", "", "directory scoping the unmanaged view")
}

// Execute runs the root command with a background context.
// Prefer ExecuteContext for signal-aware execution.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with the given context,
// enabling graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
