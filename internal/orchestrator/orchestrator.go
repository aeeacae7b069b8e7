// Package orchestrator sequences turn handling: normalize, understand,
// merge, decide, compose, persist, publish.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/supportstack/conversation-core/internal/channel"
	"github.com/supportstack/conversation-core/internal/compose"
	"github.com/supportstack/conversation-core/internal/config"
	"github.com/supportstack/conversation-core/internal/dialog"
	"github.com/supportstack/conversation-core/internal/events"
	"github.com/supportstack/conversation-core/internal/integration"
	"github.com/supportstack/conversation-core/internal/model"
	"github.com/supportstack/conversation-core/internal/nlu"
	"github.com/supportstack/conversation-core/internal/store"
	"github.com/supportstack/conversation-core/pkg/logger"
	"github.com/supportstack/conversation-core/pkg/metrics"
)

// rephraseMessage is the graceful reply for malformed input.
const rephraseMessage = "Sorry, I couldn't read that message. Could you rephrase it as plain text?"

// timeoutMessage is the safe fallback when a turn exceeds its time budget.
const timeoutMessage = "Sorry, this is taking longer than expected. Please try again in a moment."

// ErrTurnFailed is returned when a turn cannot be processed safely, e.g.
// the session store stayed unavailable through all retries. The turn fails
// closed: no reply, no state change.
var ErrTurnFailed = errors.New("turn processing failed")

// Orchestrator exposes the system's sole per-message operation, HandleTurn,
// plus the lifecycle operations Resolve and Close.
type Orchestrator struct {
	cfg      *config.Config
	sessions store.SessionStore
	channels *channel.Registry
	pipeline *nlu.Pipeline
	contexts *dialog.ContextManager
	policy   *dialog.Policy
	composer *compose.Composer
	events   events.Publisher
	logger   *logger.Logger

	locks  *keyedLocks
	dedupe *replyCache
}

// New wires an orchestrator from its collaborators.
func New(
	cfg *config.Config,
	sessions store.SessionStore,
	channels *channel.Registry,
	pipeline *nlu.Pipeline,
	contexts *dialog.ContextManager,
	policy *dialog.Policy,
	composer *compose.Composer,
	publisher events.Publisher,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		sessions: sessions,
		channels: channels,
		pipeline: pipeline,
		contexts: contexts,
		policy:   policy,
		composer: composer,
		events:   publisher,
		logger:   log,
		locks:    newKeyedLocks(),
		dedupe:   newReplyCache(cfg.DedupeTTL),
	}
}

// HandleTurn processes one inbound message end to end. Turns for the same
// conversation key are serialized; different keys run fully in parallel.
func (o *Orchestrator) HandleTurn(ctx context.Context, req *model.TurnRequest) (*model.TurnReply, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.TurnTimeout)
	defer cancel()

	key := model.ConversationKey{UserID: req.UserID, Channel: req.Channel}
	log := o.logger.WithConversation(key.String())

	if req.UserID == "" || !o.channels.Known(req.Channel) {
		metrics.TurnsTotal.WithLabelValues(string(req.Channel), "rejected").Inc()
		return &model.TurnReply{Reply: rephraseMessage}, nil
	}

	unlock := o.locks.Lock(key.String())
	defer unlock()

	// Idempotent replay: a re-delivered message returns the original
	// reply without touching state.
	dedupeKey := key.String() + "/" + req.MessageID
	if req.MessageID != "" {
		if cached, ok := o.dedupe.Get(dedupeKey); ok {
			replay := *cached
			replay.Replayed = true
			return &replay, nil
		}
	}

	conv, err := o.loadOrCreate(ctx, key)
	if err != nil {
		log.Error("session load failed", zap.Error(err))
		return nil, errors.Join(ErrTurnFailed, err)
	}

	// Normalizer rejection degrades to a canned reply; state untouched.
	text, err := o.channels.Normalize(req)
	if err != nil {
		log.Warn("malformed input rejected", zap.Error(err))
		metrics.TurnsTotal.WithLabelValues(string(req.Channel), "rejected").Inc()
		return &model.TurnReply{
			Reply:        rephraseMessage,
			Conversation: conv.Summarize(),
		}, nil
	}

	turn := model.Turn{
		Sequence:  conv.NextSequence(),
		Text:      text,
		Channel:   req.Channel,
		MessageID: req.MessageID,
		CreatedAt: time.Now(),
	}

	res, err := o.pipeline.Understand(ctx, text, o.contexts.Window(conv))
	if err != nil {
		if ctx.Err() != nil {
			return o.timeoutReply(conv), nil
		}
		log.Error("understanding failed", zap.Error(err))
		return nil, errors.Join(ErrTurnFailed, err)
	}

	escalatedBefore := conv.Escalated
	outcome := o.contexts.Merge(conv, turn, res)
	decision := o.policy.Evaluate(conv, res, outcome, nlu.EndSignal(text))

	msg, err := o.composer.Compose(ctx, decision, conv, o.contexts.Window(conv))
	if err != nil {
		var ifail *integration.Failure
		if errors.As(err, &ifail) {
			// Failed action with no automated fallback: hand off.
			log.Warn("integration failure escalates", zap.String("tool", ifail.Tool), zap.Error(err))
			o.policy.Escalate(conv, dialog.ReasonIntegrationFailure)
			decision = model.PolicyDecision{
				Action: model.ActionEscalate,
				Reason: dialog.ReasonIntegrationFailure,
			}
			msg, err = o.composer.Compose(ctx, decision, conv, nil)
		}
		if err != nil {
			if ctx.Err() != nil {
				return o.timeoutReply(conv), nil
			}
			log.Error("composition failed", zap.Error(err))
			return nil, errors.Join(ErrTurnFailed, err)
		}
	}

	if err := o.save(ctx, conv); err != nil {
		// Fail closed rather than reply with unsaved state.
		log.Error("session save failed", zap.Error(err))
		return nil, errors.Join(ErrTurnFailed, err)
	}

	o.publish(ctx, conv, turn.Sequence, res, decision, msg.Text, escalatedBefore)

	metrics.RecordTurn(string(req.Channel), string(decision.Action), res.Intent,
		res.Sentiment, time.Since(start).Seconds())

	reply := &model.TurnReply{
		Reply:            msg.Text,
		Intent:           res.Intent,
		Confidence:       res.Confidence,
		Escalated:        conv.Escalated,
		SuggestedActions: msg.SuggestedActions,
		Conversation:     conv.Summarize(),
	}

	if req.MessageID != "" {
		o.dedupe.Put(dedupeKey, reply)
	}

	log.Info("turn handled",
		zap.Uint64("sequence", turn.Sequence),
		zap.String("intent", res.Intent),
		zap.Float64("confidence", res.Confidence),
		zap.String("action", string(decision.Action)),
		zap.String("state", string(conv.State)),
	)

	return reply, nil
}

// Get returns the conversation summary for a key.
func (o *Orchestrator) Get(ctx context.Context, key model.ConversationKey) (*model.Summary, error) {
	conv, err := o.sessions.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	s := conv.Summarize()
	return &s, nil
}

// Resolve applies an explicit human-resolution event, the only path out of
// Escalated back to automation.
func (o *Orchestrator) Resolve(ctx context.Context, key model.ConversationKey) (*model.Summary, error) {
	unlock := o.locks.Lock(key.String())
	defer unlock()

	conv, err := o.sessions.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	o.policy.Resolve(conv)
	if err := o.save(ctx, conv); err != nil {
		return nil, err
	}

	o.logger.Info("escalation resolved", zap.String("conversation_key", key.String()))
	s := conv.Summarize()
	return &s, nil
}

// Close ends a conversation on an explicit end-of-conversation signal.
// Closed conversations are retained for audit.
func (o *Orchestrator) Close(ctx context.Context, key model.ConversationKey) error {
	unlock := o.locks.Lock(key.String())
	defer unlock()

	return o.sessions.Expire(ctx, key)
}

// StartReaper launches the idle-timeout reaper. It runs until ctx is done.
func (o *Orchestrator) StartReaper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.reapIdle(ctx)
			}
		}
	}()
}

func (o *Orchestrator) reapIdle(ctx context.Context) {
	keys, err := o.sessions.ListIdle(ctx, time.Now().Add(-o.cfg.IdleTimeout))
	if err != nil {
		o.logger.Warn("idle scan failed", zap.Error(err))
		return
	}
	for _, key := range keys {
		if err := o.Close(ctx, key); err != nil {
			o.logger.Warn("idle close failed",
				zap.String("conversation_key", key.String()), zap.Error(err))
			continue
		}
		o.logger.Info("conversation closed after idle timeout",
			zap.String("conversation_key", key.String()))
	}
}

// Shutdown releases orchestrator resources.
func (o *Orchestrator) Shutdown() {
	o.dedupe.Close()
}

// loadOrCreate loads the conversation for a key, creating a fresh one when
// none exists. A closed conversation restarts as a new session under the
// same key; its full history remains on the audit stream.
func (o *Orchestrator) loadOrCreate(ctx context.Context, key model.ConversationKey) (*model.Conversation, error) {
	var conv *model.Conversation
	err := o.retry(ctx, func() error {
		var err error
		conv, err = o.sessions.Load(ctx, key)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		metrics.ConversationsOpen.Inc()
		return model.NewConversation(key, time.Now()), nil
	}
	if err != nil {
		return nil, err
	}

	if conv.Closed() {
		version := conv.Version
		conv = model.NewConversation(key, time.Now())
		conv.Version = version
		metrics.ConversationsOpen.Inc()
	}
	return conv, nil
}

func (o *Orchestrator) save(ctx context.Context, conv *model.Conversation) error {
	return o.retry(ctx, func() error {
		return o.sessions.Save(ctx, conv)
	})
}

// retry runs op with bounded exponential backoff, retrying only transient
// store errors.
func (o *Orchestrator) retry(ctx context.Context, op func() error) error {
	attempt := 0
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrUnavailable) {
			return backoff.Permanent(err)
		}
		attempt++
		if attempt > 1 {
			metrics.StoreRetries.Inc()
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), o.cfg.StoreMaxRetries), ctx))
}

func (o *Orchestrator) timeoutReply(conv *model.Conversation) *model.TurnReply {
	metrics.TurnsTotal.WithLabelValues(string(conv.Key.Channel), "timeout").Inc()
	return &model.TurnReply{
		Reply:        timeoutMessage,
		Conversation: conv.Summarize(),
	}
}

func (o *Orchestrator) publish(ctx context.Context, conv *model.Conversation, seq uint64, res model.UnderstandingResult, decision model.PolicyDecision, reply string, escalatedBefore bool) {
	now := time.Now()

	turnEvent := &model.TurnEvent{
		ID:         uuid.Must(uuid.NewV7()).String(),
		Key:        conv.Key,
		Sequence:   seq,
		Intent:     res.Intent,
		Confidence: res.Confidence,
		Sentiment:  res.Sentiment,
		Action:     decision.Action,
		State:      conv.State,
		Reply:      reply,
		CreatedAt:  now,
	}
	if err := o.events.PublishTurn(ctx, turnEvent); err != nil {
		o.logger.Warn("turn audit publish failed", zap.Error(err))
	}

	// Notify the hand-off channel exactly once per escalation.
	if conv.Escalated && !escalatedBefore {
		handoff := &model.HandoffEvent{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Key:       conv.Key,
			Reason:    conv.EscalationReason,
			Summary:   conv.Summarize(),
			Window:    o.contexts.Window(conv),
			CreatedAt: now,
		}
		if err := o.events.PublishHandoff(ctx, handoff); err != nil {
			o.logger.Error("hand-off publish failed", zap.Error(err))
		}
	}
}
