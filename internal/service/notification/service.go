// Package notification reconciles the REST notification snapshot with the live
// push stream into one set of unread counters and a bounded recent buffer.
package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"soulchat-agent/internal/domain/notification"
	"soulchat-agent/internal/domain/websocket"
	xerrors "soulchat-agent/internal/pkg/errors"
	"soulchat-agent/internal/pkg/optimistic"
	"soulchat-agent/internal/state"

	"go.uber.org/zap"
)

// API is the slice of the backend client the engine needs.
type API interface {
	SocialUnreadCounts(ctx context.Context) (*notification.SocialCounts, error)
	ThreadUnreadCounts(ctx context.Context) (*notification.ThreadCounts, error)
	MarkThreadRead(ctx context.Context, kind notification.ChatKind, threadID string) error
	Feed(ctx context.Context) ([]notification.Event, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// Notifier shows transient messages to the user.
type Notifier interface {
	Toast(level websocket.ToastLevel, message string)
}

const (
	DefaultRecentCap    = 50
	DefaultPollInterval = 30 * time.Second
)

// NotificationService owns the reconciled notification state. Every mutation
// goes through the state store so concurrent pushes, polls and mark-read calls
// never interleave mid-update.
type NotificationService struct {
	api          API
	state        *state.Store
	notifier     Notifier
	logger       *zap.Logger
	recentCap    int
	pollInterval time.Duration

	mu         sync.Mutex
	stopPoller context.CancelFunc
	pollerDone chan struct{}
}

func NewNotificationService(
	api API,
	st *state.Store,
	notifier Notifier,
	logger *zap.Logger,
	recentCap int,
	pollInterval time.Duration,
) *NotificationService {
	if recentCap <= 0 {
		recentCap = DefaultRecentCap
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		api:          api,
		state:        st,
		notifier:     notifier,
		logger:       logger,
		recentCap:    recentCap,
		pollInterval: pollInterval,
	}
}

// Counters returns the current unread counters.
func (s *NotificationService) Counters() notification.UnreadCounters {
	return s.state.Snapshot().Counters
}

// Recent returns the buffered events, newest first.
func (s *NotificationService) Recent() []notification.Event {
	return s.state.Snapshot().Recent
}

// ========== Authoritative fetches ==========

// FetchUnreadCounts overwrites all three counters from REST. A failed half is
// logged and the counters it covers keep their last value.
func (s *NotificationService) FetchUnreadCounts(ctx context.Context) error {
	var errs []error

	social, err := s.api.SocialUnreadCounts(ctx)
	if err != nil {
		s.logger.Warn("failed to fetch social unread counts", zap.Error(err))
		errs = append(errs, err)
	}
	threads, err := s.api.ThreadUnreadCounts(ctx)
	if err != nil {
		s.logger.Warn("failed to fetch thread unread counts", zap.Error(err))
		errs = append(errs, err)
	}

	if social != nil || threads != nil {
		s.state.Update(func(st *state.State) {
			if social != nil {
				st.Counters.Set(notification.CounterSocial, social.Total())
			}
			if threads != nil {
				st.Counters.Set(notification.CounterWhisper, threads.Whisper)
				st.Counters.Set(notification.CounterSoulChat, threads.SoulChat)
			}
		})
	}
	return errors.Join(errs...)
}

// FetchThreadCounts overwrites the whisper and soul-chat thread counters.
func (s *NotificationService) FetchThreadCounts(ctx context.Context) error {
	threads, err := s.api.ThreadUnreadCounts(ctx)
	if err != nil {
		s.logger.Warn("failed to fetch thread unread counts", zap.Error(err))
		return err
	}
	s.state.Update(func(st *state.State) {
		st.Counters.Set(notification.CounterWhisper, threads.Whisper)
		st.Counters.Set(notification.CounterSoulChat, threads.SoulChat)
	})
	return nil
}

// ========== Push stream ==========

// OnPush reconciles one pushed notification. It reports whether the event
// was new to the buffer.
func (s *NotificationService) OnPush(ctx context.Context, ev notification.Event) bool {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	var added bool
	s.state.Update(func(st *state.State) {
		st.Recent, added = upsert(st.Recent, ev.Clone(), s.recentCap)
		if added && !ev.IsRead && ev.Type.Family() == notification.FamilySocial {
			st.Counters.Increment(notification.CounterSocial)
		}
	})

	switch ev.Type.Family() {
	case notification.FamilyWhisperMessage, notification.FamilySoulChatMessage:
		// one thread may carry many messages, so the server count is refetched
		s.FetchThreadCounts(ctx)
	}

	s.logger.Debug("notification pushed",
		zap.String("id", ev.ID),
		zap.String("type", string(ev.Type)),
		zap.String("actor_id", ev.ActorID()),
		zap.Bool("added", added),
	)
	return added
}

// OnStatusUpdate rewrites the buffered event a status update refers to. It
// reports whether a buffered event matched.
func (s *NotificationService) OnStatusUpdate(u notification.StatusUpdate) bool {
	var matched bool
	s.state.Update(func(st *state.State) {
		i := findForUpdate(st.Recent, u)
		if i < 0 {
			return
		}
		matched = true
		ev := &st.Recent[i]
		if u.Type != "" {
			ev.Type = u.Type
		} else if t, ok := notification.ResolvedType(ev.Type.RequestGroup(), u.Outcome()); ok {
			ev.Type = t
		}
		if u.Message != "" {
			ev.Message = u.Message
		}
		if u.IsRead != nil {
			ev.IsRead = *u.IsRead
		}
	})
	if !matched {
		s.logger.Debug("status update for unknown notification",
			zap.String("notification_id", u.NotificationID),
			zap.String("request_id", u.Request()),
		)
	}
	return matched
}

// OnCountsUpdate applies an authoritative counter push.
func (s *NotificationService) OnCountsUpdate(u notification.CountsUpdate) {
	s.state.Update(func(st *state.State) {
		u.Apply(&st.Counters)
	})
}

// SetConnected records the realtime connection status.
func (s *NotificationService) SetConnected(connected bool) {
	s.state.Update(func(st *state.State) {
		st.Connected = connected
	})
}

// Reset drops all reconciled state, used when the session ends.
func (s *NotificationService) Reset() {
	s.state.Update(func(st *state.State) {
		st.Recent = nil
		st.Counters = notification.UnreadCounters{}
		st.Connected = false
	})
}

// ========== Foreground actions ==========

// MarkThreadRead marks a whole thread read. The counter drops by one thread
// right away and is corrected from the server afterwards. On failure the
// decrement is undone and the user is told.
func (s *NotificationService) MarkThreadRead(ctx context.Context, kind notification.ChatKind, threadID string) error {
	if threadID == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "thread id is required")
	}
	counter := kind.Counter()
	var decremented bool
	var flipped []string

	err := optimistic.Do(ctx, optimistic.Update{
		Apply: func() {
			s.state.Update(func(st *state.State) {
				if st.Counters.Get(counter) > 0 {
					st.Counters.Decrement(counter)
					decremented = true
				}
				flipped = markThread(st.Recent, threadID)
			})
		},
		Revert: func() {
			s.state.Update(func(st *state.State) {
				if decremented {
					st.Counters.Increment(counter)
				}
				unmark(st.Recent, flipped)
			})
		},
		Confirm: func(ctx context.Context) error {
			return s.api.MarkThreadRead(ctx, kind, threadID)
		},
	})
	if err != nil {
		s.logger.Warn("mark thread read failed",
			zap.String("kind", string(kind)),
			zap.String("thread_id", threadID),
			zap.Error(err),
		)
		s.toast(websocket.ToastError, "Could not mark conversation as read")
		return err
	}

	s.FetchThreadCounts(ctx)
	return nil
}

// MarkNotificationRead marks one notification read. Unread social events also
// drop the social counter, which is then corrected from the server.
func (s *NotificationService) MarkNotificationRead(ctx context.Context, id string) error {
	if id == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "notification id is required")
	}
	var flipped, decremented bool

	err := optimistic.Do(ctx, optimistic.Update{
		Apply: func() {
			s.state.Update(func(st *state.State) {
				for i := range st.Recent {
					ev := &st.Recent[i]
					if ev.ID != id || ev.IsRead {
						continue
					}
					ev.IsRead = true
					flipped = true
					if ev.Type.Family() == notification.FamilySocial && st.Counters.Social > 0 {
						st.Counters.Decrement(notification.CounterSocial)
						decremented = true
					}
					return
				}
			})
		},
		Revert: func() {
			s.state.Update(func(st *state.State) {
				if flipped {
					unmark(st.Recent, []string{id})
				}
				if decremented {
					st.Counters.Increment(notification.CounterSocial)
				}
			})
		},
		Confirm: func(ctx context.Context) error {
			return s.api.MarkNotificationRead(ctx, id)
		},
	})
	if err != nil {
		s.logger.Warn("mark notification read failed", zap.String("id", id), zap.Error(err))
		s.toast(websocket.ToastError, "Could not mark notification as read")
		return err
	}

	// the id may only be known from the REST feed, leaving the local
	// counter untouched, so the server count wins
	s.FetchUnreadCounts(ctx)
	return nil
}

// Feed merges the REST feed with the live buffer. A failed fetch yields the
// live buffer alone.
func (s *NotificationService) Feed(ctx context.Context) []notification.Event {
	live := s.Recent()
	fetched, err := s.api.Feed(ctx)
	if err != nil {
		s.logger.Warn("failed to fetch notification feed", zap.Error(err))
		return live
	}
	return Merge(live, fetched)
}

// ========== Poller ==========

// Run fetches unread counts now and then on every poll interval until ctx
// is done.
func (s *NotificationService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.FetchUnreadCounts(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.FetchUnreadCounts(ctx)
		}
	}
}

// StartPolling runs the poller in the background, replacing a running one.
func (s *NotificationService) StartPolling(ctx context.Context) {
	s.StopPolling()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.stopPoller = cancel
	s.pollerDone = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.Run(ctx)
	}()
}

// StopPolling stops the background poller and waits for it to exit.
func (s *NotificationService) StopPolling() {
	s.mu.Lock()
	cancel, done := s.stopPoller, s.pollerDone
	s.stopPoller, s.pollerDone = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *NotificationService) toast(level websocket.ToastLevel, message string) {
	if s.notifier != nil {
		s.notifier.Toast(level, message)
	}
}
