// Package proctor turns submission telemetry into a bounded suspicion
// verdict. It is a pure rule engine over counters and exam policy; answer
// text is never inspected here.
package proctor

import "github.com/avorobey/autograder/internal/model"

// Reason identifiers recorded on a suspicious submission.
const (
	ReasonTabSwitches   = "excessive_tab_switches"
	ReasonCopyPaste     = "copy_paste_attempt"
	ReasonIPChanged     = "ip_address_changed"
	ReasonFocusLost     = "excessive_focus_lost"
	ReasonShortcuts     = "suspicious_shortcuts"
	ReasonQuickComplete = "completed_too_quickly"
)

const (
	maxFocusLost    = 10
	maxShortcuts    = 5
	quickFraction   = 0.1
	maxScore        = 100
	tabSwitchWeight = 5
	tabSwitchCap    = 30
	copyPasteScore  = 20
	ipChangeScore   = 15
	focusLostCap    = 15
	manualFlagScore = 10
	quickScore      = 10
)

// Verdict is the outcome of evaluating one submission's telemetry.
type Verdict struct {
	Score      int      `json:"score"`
	Suspicious bool     `json:"is_suspicious"`
	Reasons    []string `json:"reasons,omitempty"`
}

// Evaluate applies the suspicion rules to a submission under its exam's
// policy. Reasons accumulate independently; the score sums weighted
// contributions and clamps to 100.
func Evaluate(sub model.Submission, exam model.Exam) Verdict {
	var v Verdict

	if exam.MaxTabSwitches > 0 && sub.TabSwitches > exam.MaxTabSwitches {
		v.Reasons = append(v.Reasons, ReasonTabSwitches)
	}
	if !exam.AllowCopyPaste && sub.CopyPasteEvents > 0 {
		v.Reasons = append(v.Reasons, ReasonCopyPaste)
	}
	if sub.IPChanged {
		v.Reasons = append(v.Reasons, ReasonIPChanged)
	}
	if sub.FocusLost > maxFocusLost {
		v.Reasons = append(v.Reasons, ReasonFocusLost)
	}
	if sub.ShortcutEvents > maxShortcuts {
		v.Reasons = append(v.Reasons, ReasonShortcuts)
	}
	if quickCompletion(sub, exam) {
		v.Reasons = append(v.Reasons, ReasonQuickComplete)
	}
	v.Reasons = append(v.Reasons, sub.Flags...)

	v.Suspicious = len(v.Reasons) > 0
	v.Score = score(sub, exam)
	return v
}

// score computes the 0-100 composite independently of the reason list.
func score(sub model.Submission, exam model.Exam) int {
	total := 0

	if exam.MaxTabSwitches > 0 {
		excess := sub.TabSwitches - exam.MaxTabSwitches
		if excess > 0 {
			total += mini(tabSwitchCap, excess*tabSwitchWeight)
		}
	}
	if !exam.AllowCopyPaste && sub.CopyPasteEvents > 0 {
		total += copyPasteScore
	}
	if sub.IPChanged {
		total += ipChangeScore
	}
	total += mini(focusLostCap, sub.FocusLost)
	total += len(sub.Flags) * manualFlagScore
	if quickCompletion(sub, exam) {
		total += quickScore
	}

	return mini(maxScore, total)
}

// quickCompletion reports whether the submission finished in under a tenth
// of the allotted time.
func quickCompletion(sub model.Submission, exam model.Exam) bool {
	if sub.TimeTakenSeconds <= 0 || exam.DurationMinutes <= 0 {
		return false
	}
	minExpected := float64(exam.DurationMinutes) * 60 * quickFraction
	return float64(sub.TimeTakenSeconds) < minExpected
}

func mini(a, b int) int {
	if a < b {
		return a
	}
	return b
}
