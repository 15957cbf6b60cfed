package engine

import (
	"fmt"
	"iter"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/watchgraft/internal/ir"
)

// TitleFolder maps a title to the form compared during matching.
type TitleFolder func(string) string

// ExactTitles compares titles byte for byte.
func ExactTitles(s string) string {
	return s
}

// NormalizedTitles returns a folder that compares titles after NFC
// normalization, Unicode case folding and whitespace trimming.
// The returned folder is not safe for concurrent use.
func NormalizedTitles() TitleFolder {
	caser := cases.Fold()
	return func(s string) string {
		return caser.String(norm.NFC.String(strings.TrimSpace(s)))
	}
}

// matchKey is the descriptive key an item is indexed under. Fields a rule
// does not use stay zero.
type matchKey struct {
	typ      ir.ItemType
	top      string
	mid      string
	title    string
	midIndex int64
	index    int64
}

// rule derives the same key from a target item and from a source event.
// A false return means the record lacks an attribute the rule needs and
// can never match.
type rule struct {
	item  func(ir.CatalogItem, TitleFolder) (matchKey, bool)
	event func(ir.HistoricalEvent, TitleFolder) (matchKey, bool)
}

// Episodes: show title, season number, episode number.
var episodeRule = rule{
	item: func(it ir.CatalogItem, fold TitleFolder) (matchKey, bool) {
		if it.ParentIndex == nil || it.Index == nil {
			return matchKey{}, false
		}
		return matchKey{typ: ir.TypeEpisode, top: fold(it.GrandparentTitle), midIndex: *it.ParentIndex, index: *it.Index}, true
	},
	event: func(ev ir.HistoricalEvent, fold TitleFolder) (matchKey, bool) {
		if ev.ParentIndex == nil || ev.Index == nil {
			return matchKey{}, false
		}
		return matchKey{typ: ir.TypeEpisode, top: fold(ev.GrandparentTitle), midIndex: *ev.ParentIndex, index: *ev.Index}, true
	},
}

// Movies and shows: own title within the same type.
var titleRule = rule{
	item: func(it ir.CatalogItem, fold TitleFolder) (matchKey, bool) {
		return matchKey{typ: it.Type, title: fold(it.Title)}, true
	},
	event: func(ev ir.HistoricalEvent, fold TitleFolder) (matchKey, bool) {
		return matchKey{typ: ev.Type, title: fold(ev.Title)}, true
	},
}

// Tracks: artist title, album title, track number.
var trackRule = rule{
	item: func(it ir.CatalogItem, fold TitleFolder) (matchKey, bool) {
		if it.Index == nil {
			return matchKey{}, false
		}
		return matchKey{typ: ir.TypeTrack, top: fold(it.GrandparentTitle), mid: fold(it.ParentTitle), index: *it.Index}, true
	},
	event: func(ev ir.HistoricalEvent, fold TitleFolder) (matchKey, bool) {
		if ev.Index == nil {
			return matchKey{}, false
		}
		return matchKey{typ: ir.TypeTrack, top: fold(ev.GrandparentTitle), mid: fold(ev.ParentTitle), index: *ev.Index}, true
	},
}

// ruleFor selects the matching rule for a type tag; nil means the type
// has no rule and never resolves.
func ruleFor(t ir.ItemType) *rule {
	switch t {
	case ir.TypeEpisode:
		return &episodeRule
	case ir.TypeMovie, ir.TypeShow:
		return &titleRule
	case ir.TypeTrack:
		return &trackRule
	default:
		return nil
	}
}

// Match is the outcome of resolving one event.
type Match struct {
	// GUID is the chosen target item; empty when nothing matched.
	GUID string

	// Candidates is the number of target items sharing the key.
	// More than one means the first by row order was chosen.
	Candidates int

	// Supported is false when the event's type has no matching rule.
	Supported bool
}

// Ambiguous reports whether the key matched more than one target item.
func (m Match) Ambiguous() bool {
	return m.Candidates > 1
}

// Catalog indexes the target store's items by descriptive key.
//
// Items are indexed in the order they are supplied, which must be the
// target's natural row order; the first item under a key wins.
type Catalog struct {
	fold  TitleFolder
	index map[matchKey][]string
	items int
}

// CatalogOption configures NewCatalog.
type CatalogOption func(*Catalog)

// WithTitleFolder sets how titles are compared. Default: ExactTitles.
func WithTitleFolder(fold TitleFolder) CatalogOption {
	return func(c *Catalog) {
		if fold != nil {
			c.fold = fold
		}
	}
}

// NewCatalog drains items into an index.
func NewCatalog(items iter.Seq2[ir.CatalogItem, error], opts ...CatalogOption) (*Catalog, error) {
	c := &Catalog{
		fold:  ExactTitles,
		index: make(map[matchKey][]string),
	}
	for _, opt := range opts {
		opt(c)
	}

	for it, err := range items {
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		c.items++
		r := ruleFor(it.Type)
		if r == nil || it.GUID == "" {
			continue
		}
		key, ok := r.item(it, c.fold)
		if !ok {
			continue
		}
		c.index[key] = append(c.index[key], it.GUID)
	}
	return c, nil
}

// Len returns the number of items read, indexed or not.
func (c *Catalog) Len() int {
	return c.items
}

// Resolve finds the target item for ev. It never fails: an event without
// a rule or without a matching item yields a Match with an empty GUID.
func (c *Catalog) Resolve(ev ir.HistoricalEvent) Match {
	r := ruleFor(ev.Type)
	if r == nil {
		return Match{}
	}
	key, ok := r.event(ev, c.fold)
	if !ok {
		return Match{Supported: true}
	}
	guids := c.index[key]
	if len(guids) == 0 {
		return Match{Supported: true}
	}
	return Match{GUID: guids[0], Candidates: len(guids), Supported: true}
}
