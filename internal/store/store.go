// Package store is the SQLite persistence layer. All access goes through
// database/sql with the modernc.org/sqlite driver; the schema is created on
// open.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/avorobey/autograder/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'student',
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS exams (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL DEFAULT 60,
		max_tab_switches INTEGER NOT NULL DEFAULT 3,
		allow_copy_paste BOOLEAN NOT NULL DEFAULT 0,
		pass_threshold REAL NOT NULL DEFAULT 60
	);

	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		exam_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		text TEXT NOT NULL,
		points REAL NOT NULL DEFAULT 10,
		choices TEXT NOT NULL DEFAULT '[]',
		expected_answer TEXT NOT NULL DEFAULT '',
		rubric TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (exam_id) REFERENCES exams(id)
	);

	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		exam_id INTEGER NOT NULL,
		student_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'in_progress',
		started_at DATETIME NOT NULL,
		submitted_at DATETIME,
		graded_at DATETIME,
		score REAL,
		percentage REAL,
		passed BOOLEAN,
		ip_address TEXT NOT NULL DEFAULT '',
		ip_changed BOOLEAN NOT NULL DEFAULT 0,
		time_taken_seconds INTEGER NOT NULL DEFAULT 0,
		tab_switches INTEGER NOT NULL DEFAULT 0,
		focus_lost INTEGER NOT NULL DEFAULT 0,
		copy_paste_events INTEGER NOT NULL DEFAULT 0,
		shortcut_events INTEGER NOT NULL DEFAULT 0,
		flags TEXT NOT NULL DEFAULT '[]',
		FOREIGN KEY (exam_id) REFERENCES exams(id),
		FOREIGN KEY (student_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		submission_id INTEGER NOT NULL,
		question_id INTEGER NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		selected_choice INTEGER,
		points_earned REAL NOT NULL DEFAULT 0,
		is_correct BOOLEAN NOT NULL DEFAULT 0,
		feedback TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		grading_method TEXT NOT NULL DEFAULT '',
		graded_at DATETIME,
		UNIQUE (submission_id, question_id),
		FOREIGN KEY (submission_id) REFERENCES submissions(id),
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS exam_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertExam stores an exam and returns its ID.
func (s *Store) InsertExam(e model.Exam) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO exams (title, duration_minutes, max_tab_switches, allow_copy_paste, pass_threshold)
		 VALUES (?, ?, ?, ?, ?)`,
		e.Title, e.DurationMinutes, e.MaxTabSwitches, e.AllowCopyPaste, e.PassThreshold,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetExam returns an exam by ID.
func (s *Store) GetExam(id int64) (model.Exam, error) {
	var e model.Exam
	err := s.db.QueryRow(
		`SELECT id, title, duration_minutes, max_tab_switches, allow_copy_paste, pass_threshold
		 FROM exams WHERE id = ?`, id,
	).Scan(&e.ID, &e.Title, &e.DurationMinutes, &e.MaxTabSwitches, &e.AllowCopyPaste, &e.PassThreshold)
	return e, err
}

// ListExams returns all exams.
func (s *Store) ListExams() ([]model.Exam, error) {
	rows, err := s.db.Query(
		`SELECT id, title, duration_minutes, max_tab_switches, allow_copy_paste, pass_threshold
		 FROM exams ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.DurationMinutes, &e.MaxTabSwitches, &e.AllowCopyPaste, &e.PassThreshold); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// ExamCount returns the number of exams in the database.
func (s *Store) ExamCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM exams`).Scan(&count)
	return count, err
}

// InsertQuestion stores a question.
func (s *Store) InsertQuestion(q model.Question) (int64, error) {
	choices, err := json.Marshal(q.Choices)
	if err != nil {
		return 0, err
	}
	res, err := s.db.Exec(
		`INSERT INTO questions (exam_id, type, text, points, choices, expected_answer, rubric, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ExamID, q.Type, q.Text, q.Points, string(choices), q.ExpectedAnswer, q.Rubric, q.Position,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const questionColumns = `id, exam_id, type, text, points, choices, expected_answer, rubric, position`

func scanQuestion(row interface{ Scan(...any) error }) (model.Question, error) {
	var q model.Question
	var choices string
	err := row.Scan(&q.ID, &q.ExamID, &q.Type, &q.Text, &q.Points, &choices, &q.ExpectedAnswer, &q.Rubric, &q.Position)
	if err != nil {
		return q, err
	}
	if err := json.Unmarshal([]byte(choices), &q.Choices); err != nil {
		return q, fmt.Errorf("decode choices for question %d: %w", q.ID, err)
	}
	return q, nil
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(id int64) (model.Question, error) {
	row := s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id)
	return scanQuestion(row)
}

// ListQuestionsForExam returns an exam's questions in position order.
func (s *Store) ListQuestionsForExam(examID int64) ([]model.Question, error) {
	rows, err := s.db.Query(
		`SELECT `+questionColumns+` FROM questions WHERE exam_id = ? ORDER BY position, id`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
