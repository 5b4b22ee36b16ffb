package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/sells-group/quizlens/internal/store"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List and choose LLM models",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available models",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "settings")
		if err != nil {
			return err
		}
		defer env.Close()

		s, err := env.Settings.GetSettings(ctx)
		if err != nil {
			return err
		}
		selected, err := env.Registry.Resolve(s.SelectedModel)
		if err != nil {
			return err
		}

		t := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("", "ID", "NAME", "PROVIDER", "UPSTREAM", "KEY")
		for _, m := range env.Registry.List() {
			mark := ""
			switch {
			case m.ID == selected.ID:
				mark = "*"
			case m.ID == env.Registry.Default():
				mark = "d"
			}
			key := "not set"
			if s.APIKey(m.Provider) != "" {
				key = "set"
			}
			t.Row(mark, m.ID, m.DisplayName, string(m.Provider), m.UpstreamModelID, key)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return err
	},
}

var modelsSetDefaultCmd = &cobra.Command{
	Use:   "set-default <id>",
	Short: "Set the fallback model used when no model is selected",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return saveModel(cmd, store.KeyDefaultModel, args[0])
	},
}

var modelsSelectCmd = &cobra.Command{
	Use:   "select <id>",
	Short: "Select the model used for analysis and chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return saveModel(cmd, store.KeySelectedModel, args[0])
	},
}

// saveModel checks id against the registry and saves it under key.
func saveModel(cmd *cobra.Command, key, id string) error {
	ctx := cmd.Context()
	env, err := initEnv(ctx, "settings")
	if err != nil {
		return err
	}
	defer env.Close()

	if !knownModel(env, id) {
		return fmt.Errorf("unknown model %q (see `quizlens models list`)", id)
	}
	if err := env.Store.SetValue(ctx, key, id); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, id)
	return err
}

func knownModel(env *appEnv, id string) bool {
	for _, m := range env.Registry.List() {
		if m.ID == id {
			return true
		}
	}
	return false
}

func init() {
	modelsCmd.AddCommand(modelsListCmd, modelsSetDefaultCmd, modelsSelectCmd)
	rootCmd.AddCommand(modelsCmd)
}
