package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/sells-group/quizlens/internal/model"
	"github.com/sells-group/quizlens/internal/store"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change saved settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show saved settings. API keys are masked.",
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

		t := table.New().Border(lipgloss.RoundedBorder()).Headers("KEY", "VALUE")
		for _, row := range settingsRows(s) {
			t.Row(row[0], row[1])
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return err
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Save one setting",
	Long:  "Saves one setting. Keys: openai_api_key, claude_api_key, grok_api_key, deepseek_api_key, selected_model, default_model, custom_context, custom_context_enabled.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		key, value := args[0], args[1]

		env, err := initEnv(ctx, "settings")
		if err != nil {
			return err
		}
		defer env.Close()

		if (key == store.KeySelectedModel || key == store.KeyDefaultModel) && !knownModel(env, value) {
			return fmt.Errorf("unknown model %q (see `quizlens models list`)", value)
		}
		if err := env.Store.SetValue(ctx, key, value); err != nil {
			return err
		}

		shown := value
		if store.IsSecret(key) {
			shown = mask(value)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, shown)
		return err
	},
}

// settingsRows lists every setting with API keys masked.
func settingsRows(s model.Settings) [][2]string {
	keyFor := map[string]model.Provider{
		store.KeyOpenAI:   model.ProviderOpenAI,
		store.KeyClaude:   model.ProviderClaude,
		store.KeyGrok:     model.ProviderGrok,
		store.KeyDeepSeek: model.ProviderDeepSeek,
	}
	rows := make([][2]string, 0, len(store.Keys())+1)
	for _, k := range store.Keys() {
		var v string
		switch k {
		case store.KeySelectedModel:
			v = s.SelectedModel
		case store.KeyDefaultModel:
			v = s.DefaultModel
		case store.KeyCustomContext:
			v = truncate(s.CustomContext, 60)
		case store.KeyCustomContextEnabled:
			v = strconv.FormatBool(s.CustomContextEnabled)
		default:
			v = mask(s.APIKey(keyFor[k]))
		}
		rows = append(rows, [2]string{k, v})
	}
	rows = append(rows, [2]string{"documents", strconv.Itoa(len(s.Documents))})
	return rows
}

// mask hides all but the last four characters of a secret.
func mask(secret string) string {
	if secret == "" {
		return "not set"
	}
	r := []rune(secret)
	if len(r) <= 8 {
		return "set"
	}
	return "…" + string(r[len(r)-4:])
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
