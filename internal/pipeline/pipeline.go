// Package pipeline sequences one call-ended event through recording
// acquisition, transcription, summarization, CRM resolution, and note
// publication, deciding at each stage what is fatal and what degrades.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/udipth01/acefone/internal/config"
	"github.com/udipth01/acefone/internal/dedup"
	"github.com/udipth01/acefone/internal/telephony"
	"github.com/udipth01/acefone/internal/transcribe"
	"github.com/udipth01/acefone/internal/types"
)

// State names the stage a run is in, or its terminal outcome.
type State string

const (
	StateReceived     State = "received"
	StateValidating   State = "validating"
	StateAcquiring    State = "acquiring"
	StateTranscribing State = "transcribing"
	StateSummarizing  State = "summarizing"
	StateResolving    State = "resolving"
	StatePublishing   State = "publishing"
	StateDone         State = "done"
	StateIgnored      State = "ignored"
	StateFailed       State = "failed"
)

// Acquirer obtains the call metadata and recording bytes for a call id.
// On telephony.ErrRecordingUnavailable the CallRecord must still be valid.
type Acquirer interface {
	Acquire(ctx context.Context, callID string) (types.CallRecord, []byte, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// CRM resolves callers to entities and appends timeline comments.
type CRM interface {
	Resolve(ctx context.Context, phone string) (types.CrmEntity, error)
	AddTimelineComment(ctx context.Context, entity types.CrmEntity, text string) error
}

// Journal guards the at-most-once note invariant across redelivered events.
type Journal interface {
	Begin(ctx context.Context, callID string) (bool, error)
	Complete(ctx context.Context, callID, phone string, entityID int64, entityKind string) error
	Fail(ctx context.Context, callID, reason string) error
	Get(ctx context.Context, callID string) (dedup.Entry, error)
}

// Result is the terminal outcome returned to the webhook caller.
type Result struct {
	State     State            `json:"status"`
	CallID    string           `json:"call_id"`
	Phone     string           `json:"phone,omitempty"`
	EntityID  int64            `json:"entity_id,omitempty"`
	Kind      types.EntityKind `json:"entity_kind,omitempty"`
	Degraded  bool             `json:"degraded,omitempty"`
	Duplicate bool             `json:"duplicate,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// Deps are the collaborators one Orchestrator sequences.
type Deps struct {
	Telephony   Acquirer
	Transcriber Transcriber
	Summarizer  Summarizer
	CRM         CRM
	Journal     Journal
	Logger      *logrus.Entry

	// Sleep is the settle/retry delay hook; tests inject a fast one.
	Sleep func(ctx context.Context, d time.Duration) error
}

type Orchestrator struct {
	cfg  config.Config
	deps Deps
	log  *logrus.Entry
}

func New(cfg config.Config, deps Deps) *Orchestrator {
	if deps.Sleep == nil {
		deps.Sleep = sleepCtx
	}
	if deps.Logger == nil {
		deps.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Orchestrator{cfg: cfg, deps: deps, log: deps.Logger}
}

// Run processes one call event end to end. Events whose status is not
// "completed" return StateIgnored without any remote call. Recoverable
// stage failures degrade to placeholder content; fatal failures return a
// classified error alongside a StateFailed result.
func (o *Orchestrator) Run(ctx context.Context, ev types.CallEvent) (Result, error) {
	log := o.log.WithField("call_id", ev.CallID)
	res := Result{State: StateValidating, CallID: ev.CallID}

	if !ev.Completed() {
		log.WithField("status", ev.Status).Info("call not completed, ignoring")
		res.State = StateIgnored
		res.Message = "call not completed, ignoring"
		return res, nil
	}

	fresh, err := o.deps.Journal.Begin(ctx, ev.CallID)
	if err != nil {
		res.State = StateFailed
		return res, fmt.Errorf("journal claim: %w", err)
	}
	if !fresh {
		return o.duplicateResult(ctx, ev, log)
	}

	// Grace period for the provider's recording finalization lag; the
	// acquirer's own poll loop handles anything beyond it.
	if err := o.deps.Sleep(ctx, o.cfg.SettleDelay); err != nil {
		return o.fail(ctx, res, fmt.Errorf("settle delay: %w", err))
	}

	res.State = StateAcquiring
	rec, audio, err := o.deps.Telephony.Acquire(ctx, ev.CallID)
	switch {
	case err == nil:
	case errors.Is(err, telephony.ErrRecordingUnavailable):
		// Metadata may still be usable; continue degraded.
		log.WithField("error", err.Error()).Warn("recording unavailable, continuing without audio")
		res.Degraded = true
	default:
		return o.fail(ctx, res, err)
	}

	phone := rec.Phone()
	if phone == "" {
		phone = ev.Phone()
	}
	res.Phone = phone

	transcript := ""
	if len(audio) > 0 {
		res.State = StateTranscribing
		transcript, err = o.deps.Transcriber.Transcribe(ctx, audio)
		if err != nil {
			log.WithField("error", err.Error()).Warn("transcription failed, continuing degraded")
			transcript = fmt.Sprintf("%s: %v", transcribe.FailedMarker, err)
			res.Degraded = true
		}
	} else {
		transcript = transcribe.FailedMarker + ": recording unavailable"
	}

	res.State = StateSummarizing
	summary, err := o.deps.Summarizer.Summarize(ctx, transcript)
	if err != nil {
		log.WithField("error", err.Error()).Warn("summary failed, continuing degraded")
		summary = fmt.Sprintf("Summary failed: %v", err)
		res.Degraded = true
	}

	// The CRM write is externally durable. From here the run must not be
	// torn down by a dropped webhook connection, or a note could be lost
	// after the entity was already created.
	ctx = context.WithoutCancel(ctx)

	res.State = StateResolving
	entity, err := o.deps.CRM.Resolve(ctx, phone)
	if err != nil {
		return o.fail(ctx, res, fmt.Errorf("%w: %w", ErrResolution, err))
	}
	res.EntityID = entity.ID
	res.Kind = entity.Kind

	res.State = StatePublishing
	note := buildNote(rec, phone, summary, transcript, o.cfg.TranscriptLimit)
	if err := o.deps.CRM.AddTimelineComment(ctx, entity, note); err != nil {
		return o.fail(ctx, res, fmt.Errorf("%w: %w", ErrPublish, err))
	}

	if err := o.deps.Journal.Complete(ctx, ev.CallID, phone, entity.ID, string(entity.Kind)); err != nil {
		log.WithField("error", err.Error()).Error("journal completion failed")
	}

	res.State = StateDone
	log.WithFields(logrus.Fields{
		"entity_id":   entity.ID,
		"entity_kind": entity.Kind,
		"phone":       phone,
		"degraded":    res.Degraded,
	}).Info("pipeline run complete")
	return res, nil
}

// duplicateResult answers a redelivered event from the journal instead of
// re-running the remote sequence.
func (o *Orchestrator) duplicateResult(ctx context.Context, ev types.CallEvent, log *logrus.Entry) (Result, error) {
	log.Info("duplicate delivery, returning journaled outcome")
	res := Result{CallID: ev.CallID, Duplicate: true}

	entry, err := o.deps.Journal.Get(ctx, ev.CallID)
	if err != nil {
		res.State = StateIgnored
		res.Message = "call already being processed"
		return res, nil
	}
	switch entry.Status {
	case dedup.StatusDone:
		res.State = StateDone
		res.Phone = entry.Phone
		res.EntityID = entry.EntityID
		res.Kind = types.EntityKind(entry.EntityKind)
	default:
		res.State = StateIgnored
		res.Message = "call already being processed"
	}
	return res, nil
}

func (o *Orchestrator) fail(ctx context.Context, res Result, err error) (Result, error) {
	res.State = StateFailed
	if jerr := o.deps.Journal.Fail(context.WithoutCancel(ctx), res.CallID, err.Error()); jerr != nil {
		o.log.WithField("error", jerr.Error()).Error("journal failure record failed")
	}
	o.log.WithFields(logrus.Fields{
		"call_id": res.CallID,
		"kind":    Kind(err),
		"error":   err.Error(),
	}).Error("pipeline run failed")
	return res, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
