package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/quizlens/internal/session"
)

var sessionOut string

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show, hide or clear analysis results on a page",
	Long: "Flips result visibility and clears results for a quiz page. Choices are saved per page " +
		"(keyed by the file path or URL) in session.redis_url, and the next analyze run of the same page applies them.",
}

var sessionToggleCmd = &cobra.Command{
	Use:   "toggle <file|url> <question-id>",
	Short: "Show or hide one question's result",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[1]
		return runSessionAction(cmd, args[0], func(ctx context.Context, ctrl *session.Controller) (string, error) {
			visible, err := ctrl.Toggle(ctx, id)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s: %s\n", id, visibilityLabel(visible)), nil
		})
	},
}

var sessionToggleAllCmd = &cobra.Command{
	Use:   "toggle-all <file|url>",
	Short: "Hide every result if any is shown, otherwise show them all",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessionAction(cmd, args[0], func(ctx context.Context, ctrl *session.Controller) (string, error) {
			visible, err := ctrl.ToggleAll(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("all results: %s\n", visibilityLabel(visible)), nil
		})
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear <file|url>",
	Short: "Remove every result and forget the saved per-question choices",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessionAction(cmd, args[0], func(ctx context.Context, ctrl *session.Controller) (string, error) {
			if err := ctrl.Clear(ctx); err != nil {
				return "", err
			}
			return "cleared\n", nil
		})
	},
}

// sessionAction runs against a controller for the loaded page and returns
// the line to print.
type sessionAction func(ctx context.Context, ctrl *session.Controller) (string, error)

// runSessionAction loads target, runs action with the page's saved
// preferences and writes the updated page when --out is set.
func runSessionAction(cmd *cobra.Command, target string, action sessionAction) error {
	ctx := cmd.Context()

	env, err := initEnv(ctx, "session")
	if err != nil {
		return err
	}
	defer env.Close()

	if cfg.Session.RedisURL == "" {
		zap.L().Warn("session.redis_url is not set; display choices last for this run only")
	}

	page, err := pageLoader().Load(ctx, target)
	if err != nil {
		return err
	}
	prefs, err := env.initPreferences(ctx, sessionID(target))
	if err != nil {
		return err
	}

	msg, err := action(ctx, env.newController(page, "", prefs))
	if err != nil {
		return err
	}
	if err := writePage(page, sessionOut); err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), msg)
	return err
}

func visibilityLabel(visible bool) string {
	if visible {
		return "visible"
	}
	return "hidden"
}

func init() {
	sessionCmd.PersistentFlags().StringVar(&sessionOut, "out", "", "write the updated page to this path")
	sessionCmd.AddCommand(sessionToggleCmd, sessionToggleAllCmd, sessionClearCmd)
	rootCmd.AddCommand(sessionCmd)
}
