package session

import (
	"context"

	"zedis/internal/store"
)

// AddHashField writes a field to the active hash key. On success the
// declared size grows by the number of fields the store actually created,
// so overwriting an existing field leaves it unchanged.
func (s *Session) AddHashField(field, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key == "" || s.value == nil {
		return
	}
	s.value.Status = StatusUpdating

	key := s.key
	st := s.store
	submit(s, taskAddHashValue, func(ctx context.Context) (int64, error) {
		return st.HashSet(ctx, key, field, value)
	}, func(created int64, err error) {
		if s.value != nil {
			s.value.Status = StatusIdle
		}
		if err != nil {
			s.notifyError("failed to add field", err)
			return
		}
		if hash := s.mutableHash(); hash != nil {
			hash.Size += created
			s.notifySuccess("field added", field)
			s.events.publish(Event{Kind: EventValueAdded, Key: key})
		}
	})
}

// RemoveHashField deletes a field from the active hash key. The cache only
// changes when the store reports a nonzero removed count; deleting an
// absent field is a legitimate no-op.
func (s *Session) RemoveHashField(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key == "" || s.value == nil {
		return
	}
	s.value.Status = StatusLoading

	key := s.key
	st := s.store
	submit(s, taskRemoveHashValue, func(ctx context.Context) (int64, error) {
		return st.HashDelete(ctx, key, field)
	}, func(removed int64, err error) {
		if s.value != nil {
			s.value.Status = StatusIdle
		}
		if err != nil {
			s.notifyError("failed to remove field", err)
			return
		}
		if removed == 0 {
			return
		}
		if hash := s.mutableHash(); hash != nil {
			fields := hash.Fields[:0]
			for _, f := range hash.Fields {
				if f.Name != field {
					fields = append(fields, f)
				}
			}
			hash.Fields = fields
			hash.Size -= removed
			s.events.publish(Event{Kind: EventValueUpdated, Key: key})
		}
	})
}

// FilterHashFields restarts the field pagination of the active hash value
// under a keyword, preserving the outer key selection and the declared
// size.
func (s *Session) FilterHashFields(keyword string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := s.hashData()
	if hash == nil {
		return
	}

	s.value.Data = HashData{Hash: &HashValue{
		Keyword: keyword,
		Size:    hash.Size,
	}}
	s.valueShared = false
	s.loadMoreHashFieldsLocked()
}

// LoadMoreHashFields fetches the next field page of the active hash value.
// No-op once the pagination is exhausted.
func (s *Session) LoadMoreHashFields() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadMoreHashFieldsLocked()
}

func (s *Session) loadMoreHashFieldsLocked() {
	hash := s.hashData()
	if hash == nil || s.key == "" || hash.Done {
		return
	}

	s.value.Status = StatusLoading

	key := s.key
	st := s.store
	cursor := hash.Cursor
	keyword := hash.Keyword

	match := "*"
	count := s.opts.HashPageSize
	if keyword != "" {
		match = "*" + keyword + "*"
		count = s.opts.HashFilterPageSize
	}

	s.events.publish(Event{Kind: EventValuePaginationStarted, Key: key})
	submit(s, taskLoadMoreHashValue, func(ctx context.Context) (store.FieldPage, error) {
		return st.HashScan(ctx, key, cursor, match, count)
	}, func(page store.FieldPage, err error) {
		if s.value != nil {
			s.value.Status = StatusIdle
		}
		if err != nil {
			s.notifyError("failed to load fields", err)
			s.events.publish(Event{Kind: EventValuePaginationFinished, Key: key})
			return
		}
		if hash := s.mutableHash(); hash != nil {
			hash.Cursor = page.Cursor
			if page.Cursor == 0 {
				hash.Done = true
			}
			// The scan contract guarantees non-duplication across pages, so
			// a plain append is enough.
			if len(page.Fields) > 0 {
				hash.Fields = append(hash.Fields, page.Fields...)
			}
		}
		s.events.publish(Event{Kind: EventValuePaginationFinished, Key: key})
	})
}
