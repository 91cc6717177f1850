package main

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/avorobey/autograder/internal/grading"
	"github.com/avorobey/autograder/internal/handler"
	appI18n "github.com/avorobey/autograder/internal/i18n"
	"github.com/avorobey/autograder/internal/model"
	"github.com/avorobey/autograder/internal/plagiarism"
	"github.com/avorobey/autograder/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "autograder",
		Short: "Exam auto-grading engine with plagiarism and proctoring checks",
	}

	serve := serveCmd()
	root.AddCommand(serve, loadCmd(), exportCmd(), checkCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `autograder --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLoggingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func addGradingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("grading-backend", "tfidf", "Grading backend (tfidf, llm)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.Duration("llm-timeout", grading.DefaultTimeout, "Per-request LLM timeout")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP grading server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "autograder.db", "SQLite database path")
	f.StringSliceP("exams", "e", nil, "Paths to exam JSON files to load on startup (repeatable)")
	f.StringP("lang", "l", "en", "Feedback language (en, ru)")
	f.Float64("plagiarism-threshold", plagiarism.DefaultThreshold, "Similarity at which answer pairs are flagged")
	f.String("admin-password", "", "Initial admin password (or set AUTOGRADER_ADMIN_PASSWORD)")
	addGradingFlags(cmd)
	addLoggingFlags(cmd)
	return cmd
}

func loadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load [exam.json ...]",
		Short: "Load exam definitions from JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runLoad,
	}
	cmd.Flags().String("db", "autograder.db", "SQLite database path")
	addLoggingFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an exam's results as JSON or CSV",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "autograder.db", "SQLite database path")
	f.Int64("exam-id", 0, "Exam to export (required)")
	f.StringP("format", "f", "json", "Output format (json, csv)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("grading-backend", "tfidf", "Backend name recorded in the export header")
	addLoggingFlags(cmd)

	_ = cmd.MarkFlagRequired("exam-id")

	return cmd
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run the plagiarism check over an exam's submissions",
		RunE:  runCheck,
	}
	f := cmd.Flags()
	f.String("db", "autograder.db", "SQLite database path")
	f.Int64("exam-id", 0, "Exam to check (required)")
	f.Float64("plagiarism-threshold", plagiarism.DefaultThreshold, "Similarity at which answer pairs are flagged")
	f.StringP("lang", "l", "en", "Report language (en, ru)")
	addLoggingFlags(cmd)

	_ = cmd.MarkFlagRequired("exam-id")

	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("AUTOGRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("autograder")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/autograder")
	v.AddConfigPath("/etc/autograder")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func newGrader(v *viper.Viper) (grading.Service, error) {
	svc := grading.New(grading.Config{
		Backend: v.GetString("grading-backend"),
		BaseURL: v.GetString("llm-url"),
		APIKey:  v.GetString("llm-key"),
		Model:   v.GetString("llm-model"),
		Timeout: v.GetDuration("llm-timeout"),
	})
	if remote, ok := svc.(*grading.Remote); ok {
		if err := remote.Ping(context.Background()); err != nil {
			return nil, fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
	}
	return svc, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Seed default admin user if no users exist.
	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	if paths := v.GetStringSlice("exams"); len(paths) > 0 {
		if err := loadExams(db, paths); err != nil {
			return fmt.Errorf("load exams: %w", err)
		}
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	grader, err := newGrader(v)
	if err != nil {
		return err
	}
	detector := plagiarism.NewDetector(v.GetFloat64("plagiarism-threshold"))

	h := handler.New(db, grader, detector)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"backend", grader.Name(),
		"lang", lang,
		"plagiarism_threshold", detector.Threshold,
	)
	return http.ListenAndServe(addr, r)
}

func runLoad(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return loadExams(db, args)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportExam(v.GetInt64("exam-id"), v.GetString("grading-backend"))
	if err != nil {
		return fmt.Errorf("export exam: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch strings.ToLower(v.GetString("format")) {
	case "csv":
		return writeCSV(w, export)
	case "json":
		data, err := json.MarshalIndent(export, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		_, _ = fmt.Fprintln(w)
		return nil
	default:
		return fmt.Errorf("unknown format %q", v.GetString("format"))
	}
}

func writeCSV(w io.Writer, export model.ExamExport) error {
	cw := csv.NewWriter(w)
	header := []string{
		"student_id", "display_name", "status",
		"score", "percentage", "passed", "suspicion_score",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range export.Results {
		row := []string{
			strconv.FormatInt(r.StudentID, 10),
			r.DisplayName,
			string(r.Status),
			strconv.FormatFloat(r.Score, 'f', 2, 64),
			strconv.FormatFloat(r.Percentage, 'f', 2, 64),
			strconv.FormatBool(r.Passed),
			strconv.Itoa(r.SuspicionScore),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func runCheck(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx := appI18n.WithLocalizer(context.Background(), appI18n.NewLocalizer(lang))

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	examID := v.GetInt64("exam-id")
	subs, err := db.ListSubmissionsForExam(examID)
	if err != nil {
		return fmt.Errorf("list submissions: %w", err)
	}

	var batch []plagiarism.SubmissionAnswers
	for _, sub := range subs {
		answers, err := db.ListAnswersForSubmission(sub.ID)
		if err != nil {
			return fmt.Errorf("list answers for submission %d: %w", sub.ID, err)
		}
		name := strconv.FormatInt(sub.StudentID, 10)
		if user, err := db.GetUserByID(sub.StudentID); err == nil && user != nil {
			name = user.DisplayName
		}
		batch = append(batch, plagiarism.SubmissionAnswers{
			SubmissionID: sub.ID,
			StudentName:  name,
			Answers:      answers,
		})
	}

	detector := plagiarism.NewDetector(v.GetFloat64("plagiarism-threshold"))
	report := detector.CheckSubmissions(batch)

	fmt.Println(appI18n.Tp(ctx, "FlaggedPairs", len(report.FlaggedPairs)))
	for _, pair := range report.FlaggedPairs {
		fmt.Printf("  question %d: %s <-> %s (%.1f%%)\n",
			pair.QuestionID, pair.StudentA, pair.StudentB, pair.SimilarityPercent)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// loadExams imports exam JSON files, skipping files already loaded with the
// same content hash.
func loadExams(db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}

		if storedHash == hash {
			slog.Info("exam file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("exam file changed since last import, skipping to avoid breaking existing submissions",
				"path", path)
			continue
		}

		var imp model.ExamImport
		if err := json.Unmarshal(data, &imp); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		examID, err := db.InsertExam(model.Exam{
			Title:           imp.Title,
			DurationMinutes: imp.DurationMinutes,
			MaxTabSwitches:  imp.MaxTabSwitches,
			AllowCopyPaste:  imp.AllowCopyPaste,
			PassThreshold:   imp.PassThreshold,
		})
		if err != nil {
			return fmt.Errorf("insert exam from %s: %w", path, err)
		}

		for i, qi := range imp.Questions {
			_, err := db.InsertQuestion(model.Question{
				ExamID:         examID,
				Type:           qi.Type,
				Text:           qi.Text,
				Points:         qi.Points,
				Choices:        qi.Choices,
				ExpectedAnswer: qi.ExpectedAnswer,
				Rubric:         qi.Rubric,
				Position:       i + 1,
			})
			if err != nil {
				return fmt.Errorf("insert question from %s: %w", path, err)
			}
		}

		if err := db.SetImportedFileHash(path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported exam", "path", path, "title", imp.Title, "questions", len(imp.Questions))
	}

	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func seedAdmin(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or AUTOGRADER_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
