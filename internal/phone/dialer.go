package phone

import (
	"context"
	"fmt"
	"log/slog"

	"newsroom/internal/domain"
	"newsroom/internal/ports"
)

// DialerDeps wires outbound interview calls.
type DialerDeps struct {
	Log        *slog.Logger
	Calls      ports.CallControl
	Interviews ports.InterviewRecordStore
	Registry   *Registry
}

// Dialer places interview calls and binds their scripts for the media stream
// to pick up. It serves both the editorial state machine and the manual HTTP
// endpoints.
type Dialer struct {
	log        *slog.Logger
	calls      ports.CallControl
	interviews ports.InterviewRecordStore
	registry   *Registry
}

func NewDialer(deps DialerDeps) *Dialer {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Dialer{
		log:        log.With("component", "dialer"),
		calls:      deps.Calls,
		interviews: deps.Interviews,
		registry:   deps.Registry,
	}
}

// StartInterview creates the interview record (when an article is involved),
// places the call and binds the script to the resulting call SID.
// articleID zero means a standalone call with no database records.
func (d *Dialer) StartInterview(ctx context.Context, articleID int64, phoneNumber string, script domain.PhoneScript) (string, error) {
	if phoneNumber == "" {
		return "", fmt.Errorf("phone number is empty")
	}

	var interviewID int64
	if articleID > 0 {
		var err error
		interviewID, err = d.interviews.CreateInterview(ctx, articleID)
		if err != nil {
			return "", fmt.Errorf("create interview record: %w", err)
		}
	}

	callSID, err := d.calls.CreateCall(ctx, phoneNumber)
	if err != nil {
		return "", fmt.Errorf("place call: %w", err)
	}
	d.registry.BindCall(callSID, articleID, script)

	if interviewID > 0 {
		if err := d.interviews.CreateAttempt(ctx, interviewID, callSID); err != nil {
			d.log.Warn("record call attempt failed",
				"interview_id", interviewID, "call_sid", callSID, "err", err)
		}
	}

	d.log.Info("interview call placed",
		"call_sid", callSID, "article_id", articleID, "interview_id", interviewID)
	return callSID, nil
}

// Executor adapts the dialer to the state machine's interview capability.
type Executor struct {
	dialer *Dialer
}

var _ ports.InterviewExecutor = (*Executor)(nil)

func NewExecutor(dialer *Dialer) *Executor {
	return &Executor{dialer: dialer}
}

// Execute dials the phone interview described by the plan.
func (e *Executor) Execute(ctx context.Context, article domain.Article, plan domain.InterviewPlan) error {
	if plan.PhoneNumber == "" {
		return fmt.Errorf("interview plan for article %d has no phone number", article.ID)
	}
	_, err := e.dialer.StartInterview(ctx, article.ID, plan.PhoneNumber, plan.Script)
	return err
}
