package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/quizlens/internal/extract"
	"github.com/sells-group/quizlens/internal/scrape"
	"github.com/sells-group/quizlens/internal/session"
)

var (
	analyzeQuestion    string
	analyzeModel       string
	analyzeOut         string
	analyzeFormat      string
	analyzeCookie      string
	analyzeConcurrency int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file|url>",
	Short: "Analyze the questions on a quiz page",
	Long:  "Loads a quiz page from a file or URL, analyzes every question (or one with --question), prints the results and optionally writes the annotated page.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		target := args[0]

		env, err := initEnv(ctx, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		page, err := pageLoader().Load(ctx, target)
		if err != nil {
			return err
		}

		prefs, err := env.initPreferences(ctx, sessionID(target))
		if err != nil {
			return err
		}

		concurrency := analyzeConcurrency
		if concurrency == 0 {
			concurrency = cfg.Gateway.Concurrency
		}
		reports, err := runAnalysis(ctx, env, page, analysisRequest{
			QuestionID:  analyzeQuestion,
			Model:       analyzeModel,
			Concurrency: concurrency,
			Preferences: prefs,
		})
		if err != nil {
			return err
		}

		if err := writePage(page, analyzeOut); err != nil {
			return err
		}

		return writeReports(cmd.OutOrStdout(), analyzeFormat, reports)
	},
}

// analysisRequest selects what runAnalysis analyzes.
type analysisRequest struct {
	QuestionID  string
	Model       string
	Concurrency int
	Preferences session.PreferenceStore
}

// runAnalysis analyzes one question or the whole page and returns a report
// per analyzed question. Configuration errors abort; other per-question
// failures are reported inline.
func runAnalysis(ctx context.Context, env *appEnv, page *extract.HTMLPage, req analysisRequest) ([]questionReport, error) {
	ctrl := env.newController(page, req.Model, req.Preferences)

	start := time.Now()
	var results []session.Result
	if req.QuestionID != "" {
		rec, err := ctrl.Analyze(ctx, req.QuestionID)
		if err != nil {
			return nil, err
		}
		results = []session.Result{{ID: req.QuestionID, Record: rec}}
	} else {
		all, err := ctrl.AnalyzeAll(ctx, req.Concurrency)
		if err != nil {
			return nil, err
		}
		results = all
	}

	reports := make([]questionReport, 0, len(results))
	mocks := 0
	for _, res := range results {
		r := questionReport{Analysis: res.Record}
		if c, ok := page.Container(res.ID); ok {
			r.Question = page.ReadQuestionFields(c)
		} else {
			r.Question.ID = res.ID
		}
		if res.Err != nil {
			r.Error = res.Err.Error()
		}
		if res.Record != nil {
			r.Answers = res.Record.AnswerTexts(r.Question)
			if res.Record.IsMockResponse {
				mocks++
			}
		}
		reports = append(reports, r)
	}

	zap.L().Info("analysis complete",
		zap.Int("questions", len(reports)),
		zap.Int("mock_results", mocks),
		zap.Duration("elapsed", time.Since(start)),
	)
	return reports, nil
}

// writePage renders page to path. An empty path is a no-op.
func writePage(page *extract.HTMLPage, path string) error {
	if path == "" {
		return nil
	}
	html, err := page.HTML()
	if err != nil {
		return eris.Wrap(err, "render annotated page")
	}
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return eris.Wrapf(err, "write %s", path)
	}
	zap.L().Info("wrote annotated page", zap.String("path", path))
	return nil
}

// pageLoader builds the loader chain: local files, then plain HTTP, then
// a headless browser when enabled.
func pageLoader() *scrape.Chain {
	loaders := []scrape.Loader{
		scrape.NewFileLoader(),
		scrape.NewHTTPLoader(scrape.WithCookie(analyzeCookie)),
	}
	if cfg.Browser.Enabled {
		loaders = append(loaders, scrape.NewBrowserLoader(
			cfg.Browser.Bin,
			time.Duration(cfg.Browser.TimeoutSecs)*time.Second,
			analyzeCookie,
		))
	}
	return scrape.NewChain(loaders...)
}

// sessionID scopes display preferences to one page.
func sessionID(target string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(target)).String()
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeQuestion, "question", "", "analyze only the question with this id")
	analyzeCmd.Flags().StringVar(&analyzeModel, "model", "", "model id (default: saved selection)")
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", "", "write the annotated page to this path")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "text", "output format: text, json or yaml")
	analyzeCmd.Flags().StringVar(&analyzeCookie, "cookie", "", "Cookie header for authenticated LMS pages")
	analyzeCmd.Flags().IntVar(&analyzeConcurrency, "concurrency", 0, "parallel analyses (default from config)")
	rootCmd.AddCommand(analyzeCmd)
}
