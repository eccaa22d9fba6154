package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/drillgrade/internal/model"
	"github.com/ppiankov/drillgrade/internal/outbound"
	"go.uber.org/zap"
)

// sendFeedback mails every graded unit its grade. Delivery failures are
// logged and counted; they never affect grading.
func (p *Pipeline) sendFeedback(ctx context.Context, ex *model.Exercise, units []*unit, log *zap.Logger) (sent, failed int) {
	for _, u := range units {
		if u.call == "" {
			continue
		}
		m := feedbackMessage(p.config.Feedback.From, ex, u)
		if err := p.sender.Send(ctx, m); err != nil {
			failed++
			log.Warn("feedback not delivered", zap.String("to", u.call), zap.String("message_id", m.ID), zap.Error(err))
			continue
		}
		sent++
	}
	log.Info("sent feedback", zap.Int("sent", sent), zap.Int("failed", failed))
	return sent, failed
}

func feedbackMessage(from string, ex *model.Exercise, u *unit) outbound.Message {
	subject := fmt.Sprintf("%s: grade %d", ex.Name, u.grade.Score)

	var body strings.Builder
	fmt.Fprintf(&body, "Exercise: %s\n", ex.Name)
	if len(u.messages) == 1 {
		m := u.latest()
		fmt.Fprintf(&body, "Message: %s (%s, %s)\n", m.ID, m.Kind, m.Date.UTC().Format(model.MessageDateLayout))
	} else {
		fmt.Fprintf(&body, "Messages: %d\n", len(u.messages))
	}
	fmt.Fprintf(&body, "Grade: %d\n\n", u.grade.Score)

	if len(u.grade.Explanations) == 0 {
		body.WriteString(u.grade.Explanation + "\n")
	} else {
		for _, e := range u.grade.Explanations {
			fmt.Fprintf(&body, "- %s\n", e)
		}
	}

	return outbound.NewMessage(from, u.call, subject, body.String())
}
