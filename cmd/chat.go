package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/quizlens/internal/analysis"
	"github.com/sells-group/quizlens/internal/registry"
)

var (
	chatModel string
	chatRaw   bool
)

var errEmptyMessage = eris.New("chat: message is empty")

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a free-form message to the selected model",
	Long:  "Sends a message to the selected model, with the saved context prepended when enabled. Reads the message from stdin when no argument is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		message := ""
		if len(args) == 1 {
			message = args[0]
		} else {
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return eris.Wrap(err, "read message")
			}
			message = string(b)
		}

		env, err := initEnv(ctx, "chat")
		if err != nil {
			return err
		}
		defer env.Close()

		reply, err := sendChat(ctx, env, message, chatModel)
		if err != nil {
			return err
		}

		out := reply
		if !chatRaw {
			out = renderMarkdown(reply)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
		return err
	},
}

// sendChat resolves the model and key from settings and sends message.
// Unlike question analysis, provider failures are returned, not mocked.
func sendChat(ctx context.Context, env *appEnv, message, modelID string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", errEmptyMessage
	}

	s, err := env.Settings.withModel(modelID).GetSettings(ctx)
	if err != nil {
		return "", eris.Wrap(err, "chat: load settings")
	}
	desc, err := env.Registry.Resolve(s.SelectedModel)
	if err != nil {
		return "", err
	}
	apiKey := s.APIKey(desc.Provider)
	if apiKey == "" {
		return "", registry.NewConfigurationError("No API key found for %s. Add your API key in settings.", desc.DisplayName)
	}

	zap.L().Info("chat: sending message",
		zap.String("model", desc.ID),
		zap.Bool("context", s.ContextActive()),
		zap.Int("chars", len(message)),
	)
	return env.Gateway.Send(ctx, desc, analysis.BuildChatPrompt(message, s), apiKey)
}

// renderMarkdown renders a reply for the terminal, falling back to the
// raw text if the renderer fails.
func renderMarkdown(md string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func init() {
	chatCmd.Flags().StringVar(&chatModel, "model", "", "model id (default: saved selection)")
	chatCmd.Flags().BoolVar(&chatRaw, "raw", false, "print the reply without markdown rendering")
	rootCmd.AddCommand(chatCmd)
}
