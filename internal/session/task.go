package session

import (
	"context"

	"github.com/rs/zerolog/log"
)

// taskKind identifies a category of background work. Each kind has one live
// epoch counter per session: submitting bumps the epoch, and a completion
// whose captured epoch no longer matches is discarded at apply time. The
// in-flight I/O is not aborted; a newer request simply supersedes the older
// one's result.
type taskKind int

const (
	taskScanKeys taskKind = iota
	taskScanPrefix
	taskLoadMoreKeys
	taskLoadValue
	taskAddHashValue
	taskRemoveHashValue
	taskLoadMoreHashValue
	taskKindCount
)

func (k taskKind) String() string {
	switch k {
	case taskScanKeys:
		return "scan_keys"
	case taskScanPrefix:
		return "scan_prefix"
	case taskLoadMoreKeys:
		return "load_more_keys"
	case taskLoadValue:
		return "load_value"
	case taskAddHashValue:
		return "add_hash_value"
	case taskRemoveHashValue:
		return "remove_hash_value"
	case taskLoadMoreHashValue:
		return "load_more_hash_value"
	default:
		return "unknown"
	}
}

// submit runs work on its own goroutine and applies the result back under
// the session lock. apply only takes effect when the captured epoch still
// equals the kind's current epoch; otherwise the result is dropped without
// side effects, which is a supersession, not a failure. Callers hold s.mu.
func submit[T any](s *Session, kind taskKind, work func(context.Context) (T, error), apply func(result T, err error)) {
	s.epochs[kind]++
	epoch := s.epochs[kind]

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		result, err := work(s.ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epochs[kind] != epoch {
			log.Debug().
				Stringer("task", kind).
				Uint64("epoch", epoch).
				Uint64("current", s.epochs[kind]).
				Msg("discarding superseded task result")
			return
		}
		apply(result, err)
	}()
}

// notifyError surfaces a store failure to observers. Callers reset the
// value status before calling; the cache itself is never mutated on the
// error path.
func (s *Session) notifyError(title string, err error) {
	log.Error().Err(err).Str("server_id", s.serverID).Msg(title)
	s.events.publish(Event{
		Kind: EventNotification,
		Notification: &Notification{
			Severity: SeverityError,
			Title:    title,
			Message:  err.Error(),
		},
	})
}

func (s *Session) notifySuccess(title, message string) {
	s.events.publish(Event{
		Kind: EventNotification,
		Notification: &Notification{
			Severity: SeveritySuccess,
			Title:    title,
			Message:  message,
		},
	})
}
