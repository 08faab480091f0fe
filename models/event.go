package models

import "strings"

// EntityType identifies which kind of entity a sync event refers to.
type EntityType string

const (
	EntityPage      EntityType = "PAGE"
	EntityHighlight EntityType = "HIGHLIGHT"
	EntityLabel     EntityType = "LABEL"
)

// SyncEvent is the decoded payload of a push notification announcing that an
// entity changed. The identifier field that matters depends on the entity
// type: pages carry their own id, highlights reference the article, labels
// reference the page.
type SyncEvent struct {
	Type      EntityType `json:"type,omitempty"`
	ID        string     `json:"id,omitempty"`
	UserID    string     `json:"userId"`
	PageID    string     `json:"pageId,omitempty"`
	ArticleID string     `json:"articleId,omitempty"`
}

// EntityPageID resolves the page affected by the event, or "" when the
// type-appropriate identifier is absent.
func (e SyncEvent) EntityPageID() string {
	switch e.Type {
	case EntityPage:
		return e.ID
	case EntityHighlight:
		return e.ArticleID
	case EntityLabel:
		return e.PageID
	default:
		return ""
	}
}

// Valid reports whether the event carries a user and a resolvable identifier.
func (e SyncEvent) Valid() bool {
	return e.UserID != "" && e.EntityPageID() != ""
}

// Action is a sync action decoded once at the boundary.
type Action int

const (
	ActionUnknown Action = iota
	ActionSyncUpdated
	ActionSyncAll
)

// ParseAction normalizes an action token case-insensitively. Unknown tokens
// map to ActionUnknown rather than an error; the engine treats them as a
// benign no-op.
func ParseAction(s string) Action {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SYNC_UPDATED":
		return ActionSyncUpdated
	case "SYNC_ALL":
		return ActionSyncAll
	default:
		return ActionUnknown
	}
}

func (a Action) String() string {
	switch a {
	case ActionSyncUpdated:
		return "SYNC_UPDATED"
	case ActionSyncAll:
		return "SYNC_ALL"
	default:
		return "UNKNOWN"
	}
}
