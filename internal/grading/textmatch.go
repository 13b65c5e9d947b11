package grading

import (
	"context"
	"strings"
	"unicode"

	"github.com/SAP-F-2025/course-progression-service/internal/models"
)

// TextGrader grades numerical questions by comparing normalized text against
// CorrectText. Match and subjective questions are left ungraded.
type TextGrader struct{}

func (TextGrader) Grade(_ context.Context, q models.Question, answer models.Answer) (float64, bool, error) {
	if q.Type != models.QuestionNumerical || q.CorrectText == "" {
		return 0, false, nil
	}
	if answer.Text == nil {
		return 0, true, nil
	}
	if normalize(*answer.Text) == normalize(q.CorrectText) {
		return q.PointValue(), true, nil
	}
	return 0, true, nil
}

// normalize lowercases, drops whitespace runs to a single space and trims.
func normalize(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
