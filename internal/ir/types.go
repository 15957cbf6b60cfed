package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// ItemType is the metadata_type tag of a library item.
type ItemType int64

// Item type tags as stored in metadata_type.
const (
	TypeUnknown ItemType = 0
	TypeMovie   ItemType = 1
	TypeShow    ItemType = 2
	TypeSeason  ItemType = 3
	TypeEpisode ItemType = 4
	TypeArtist  ItemType = 8
	TypeAlbum   ItemType = 9
	TypeTrack   ItemType = 10
)

var itemTypeNames = map[ItemType]string{
	TypeMovie:   "movie",
	TypeShow:    "show",
	TypeSeason:  "season",
	TypeEpisode: "episode",
	TypeArtist:  "artist",
	TypeAlbum:   "album",
	TypeTrack:   "track",
}

// String returns the lowercase tag name, or the number for unknown tags.
func (t ItemType) String() string {
	if name, ok := itemTypeNames[t]; ok {
		return name
	}
	return strconv.FormatInt(int64(t), 10)
}

// ParseItemType accepts a tag name ("episode") or its number ("4").
func ParseItemType(s string) (ItemType, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for t, name := range itemTypeNames {
		if name == s {
			return t, nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return TypeUnknown, fmt.Errorf("unknown item type %q", s)
	}
	return ItemType(n), nil
}

// MarshalText encodes the tag by name so staged and reported data stay readable.
func (t ItemType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts anything ParseItemType accepts.
func (t *ItemType) UnmarshalText(b []byte) error {
	parsed, err := ParseItemType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// HistoricalEvent is one watch event read from the source store.
// Hierarchy fields are the descriptive key the resolver matches on.
type HistoricalEvent struct {
	AccountID        int64    `json:"account_id"`
	AccountName      string   `json:"account_name"`
	GUID             string   `json:"guid"`
	Type             ItemType `json:"metadata_type"`
	GrandparentTitle string   `json:"grandparent_title"`
	ParentTitle      string   `json:"parent_title"`
	ParentIndex      *int64   `json:"parent_index,omitempty"`
	Index            *int64   `json:"index,omitempty"`
	Title            string   `json:"title"`
	ViewedAt         int64    `json:"viewed_at"`
	DeviceID         *int64   `json:"device_id,omitempty"`
	ViewType         string   `json:"view_type"`
}

// AddedDateFact is the creation timestamp of one source item.
type AddedDateFact struct {
	GUID    string   `json:"guid"`
	Type    ItemType `json:"metadata_type"`
	AddedAt int64    `json:"added_at"`
}

// AccountRecord is a row of the accounts table.
// IDs are store-local; Name is the only attribute stable across stores.
type AccountRecord struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CatalogItem is a target item together with its parent and grandparent
// descriptive attributes, as loaded for resolution.
type CatalogItem struct {
	ID               int64    `json:"id"`
	GUID             string   `json:"guid"`
	Type             ItemType `json:"metadata_type"`
	Title            string   `json:"title"`
	Index            *int64   `json:"index,omitempty"`
	ParentTitle      string   `json:"parent_title"`
	ParentIndex      *int64   `json:"parent_index,omitempty"`
	GrandparentTitle string   `json:"grandparent_title"`
}

// ResolvedEvent is a HistoricalEvent mapped into the target store.
// Target is empty when no item matched; AccountID is meaningful only when
// Attributed is true.
type ResolvedEvent struct {
	Event      HistoricalEvent `json:"event"`
	Target     string          `json:"target"`
	AccountID  int64           `json:"target_account_id"`
	Attributed bool            `json:"attributed"`
}

// Resolved reports whether a target item was found.
func (r ResolvedEvent) Resolved() bool {
	return r.Target != ""
}

// Applicable reports whether the event can be written to the target.
func (r ResolvedEvent) Applicable() bool {
	return r.Resolved() && r.Attributed
}

// FactKey identifies one per-account per-item view-state row.
type FactKey struct {
	AccountID int64  `json:"account_id"`
	GUID      string `json:"guid"`
}

// AggregatedFact is the folded view state for one FactKey.
type AggregatedFact struct {
	Key          FactKey `json:"key"`
	Count        int64   `json:"view_count"`
	LastViewedAt int64   `json:"last_viewed_at"`
}

// Int64 returns a pointer to n. Handy for nullable ordinals.
func Int64(n int64) *int64 {
	return &n
}
