package notification

import (
	"sort"

	"soulchat-agent/internal/domain/notification"
)

// upsert places ev at the head of recent.
//   - an event with a known id replaces the buffered copy in place
//   - a request event supersedes the buffered event with the same dedup key
//     when it is at least as recent, and is dropped when it is older
//
// added is true only when the buffer gained a new logical entry.
func upsert(recent []notification.Event, ev notification.Event, limit int) ([]notification.Event, bool) {
	if ev.ID != "" {
		for i := range recent {
			if recent[i].ID == ev.ID {
				if recent[i].IsRead {
					ev.IsRead = true
				}
				recent[i] = ev
				return recent, false
			}
		}
	}

	superseded := false
	if key := ev.DedupKey(); key != "" {
		for i := range recent {
			if recent[i].DedupKey() != key {
				continue
			}
			if ev.CreatedAt.Before(recent[i].CreatedAt) {
				return recent, false
			}
			recent = append(recent[:i:i], recent[i+1:]...)
			superseded = true
			break
		}
	}

	out := make([]notification.Event, 0, len(recent)+1)
	out = append(out, ev)
	out = append(out, recent...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, !superseded
}

// findForUpdate locates the buffered event a status update refers to, by
// notification id first and then by request id within the request family.
func findForUpdate(recent []notification.Event, u notification.StatusUpdate) int {
	if u.NotificationID != "" {
		for i := range recent {
			if recent[i].ID == u.NotificationID {
				return i
			}
		}
	}
	reqID := u.Request()
	if reqID == "" {
		return -1
	}
	for i := range recent {
		group := recent[i].Type.RequestGroup()
		if group == "" || recent[i].RequestID() != reqID {
			continue
		}
		if u.Group == "" || u.Group == group {
			return i
		}
	}
	return -1
}

// markThread flips every unread message event of the thread to read and
// returns their ids.
func markThread(recent []notification.Event, threadID string) []string {
	var ids []string
	for i := range recent {
		ev := &recent[i]
		switch ev.Type.Family() {
		case notification.FamilyWhisperMessage, notification.FamilySoulChatMessage:
		default:
			continue
		}
		if ev.ThreadID() == threadID && !ev.IsRead {
			ev.IsRead = true
			ids = append(ids, ev.ID)
		}
	}
	return ids
}

func unmark(recent []notification.Event, ids []string) {
	if len(ids) == 0 {
		return
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for i := range recent {
		if _, ok := set[recent[i].ID]; ok {
			recent[i].IsRead = false
		}
	}
}

// Merge combines the live buffer with a REST-fetched feed. Events dedupe by
// id, with the live copy winning. Request events sharing a dedup key keep only
// the later one by createdAt. The result is newest first.
func Merge(live, fetched []notification.Event) []notification.Event {
	out := make([]notification.Event, 0, len(live)+len(fetched))
	ids := make(map[string]struct{}, len(live)+len(fetched))
	keys := make(map[string]int)

	add := func(ev notification.Event) {
		if ev.ID != "" {
			if _, seen := ids[ev.ID]; seen {
				return
			}
			ids[ev.ID] = struct{}{}
		}
		if key := ev.DedupKey(); key != "" {
			if i, ok := keys[key]; ok {
				if ev.CreatedAt.After(out[i].CreatedAt) {
					out[i] = ev.Clone()
				}
				return
			}
			keys[key] = len(out)
		}
		out = append(out, ev.Clone())
	}

	for _, ev := range live {
		add(ev)
	}
	for _, ev := range fetched {
		add(ev)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
