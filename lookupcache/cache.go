package lookupcache

import (
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/guildworks/toolledger/ledger"
)

// Cache is the lock-free read model of the ledger.
// The zero value is not usable; create one with New.
type Cache struct {
	current atomic.Pointer[index]
	writeMu sync.Mutex
}

// index is never mutated after it was published, except through the per-entry slots.
type index struct {
	categories []string
	byCategory map[string]*category
	size       int
}

type category struct {
	names []string
	slots map[string]*atomic.Pointer[Entry]
}

// New creates an empty cache.
func New() *Cache {
	c := &Cache{}
	c.current.Store(buildIndex(nil))

	return c
}

// Reload replaces the whole cache content with the given tools.
func (c *Cache) Reload(tools []ledger.Tool) {
	next := buildIndex(tools)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.current.Store(next)
}

// Patch replaces the entry of one tool wholesale. A nil loan marks the tool as available.
// It returns false if the tool is unknown to the cache, in which case the caller has to Reload.
func (c *Cache) Patch(key ledger.ToolKey, loan *ledger.Loan) bool {
	entry := EntryFromLoan(loan)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	slot, ok := c.current.Load().slot(key)
	if !ok {
		return false
	}

	slot.Store(&entry)

	return true
}

// Len returns the number of cached tools.
func (c *Cache) Len() int {
	return c.current.Load().size
}

// Lookup returns the cached entry of one tool.
func (c *Cache) Lookup(key ledger.ToolKey) (Entry, bool) {
	slot, ok := c.current.Load().slot(key)
	if !ok {
		return Entry{}, false
	}

	return *slot.Load(), true
}

// Categories returns the categories containing filter, in lexicographic order.
func (c *Cache) Categories(filter string) []string {
	idx := c.current.Load()
	result := make([]string, 0, min(len(idx.categories), MaxSuggestions))

	for _, name := range idx.categories {
		if len(result) == MaxSuggestions {
			break
		}

		if matches(name, filter) {
			result = append(result, name)
		}
	}

	return result
}

// AvailableNames returns the names of the tools in category that have no holder.
func (c *Cache) AvailableNames(categoryName, filter string) []string {
	return c.names(categoryName, filter, func(e *Entry) bool { return !e.OnLoan() })
}

// HeldNames returns the names of the tools in category held by holderID.
func (c *Cache) HeldNames(categoryName string, holderID ledger.HolderID, filter string) []string {
	return c.names(categoryName, filter, func(e *Entry) bool { return e.HolderID == holderID })
}

// LoanedNames returns the names of the tools in category held by anyone.
func (c *Cache) LoanedNames(categoryName, filter string) []string {
	return c.names(categoryName, filter, func(e *Entry) bool { return e.OnLoan() })
}

// Names returns the names of all tools in category.
func (c *Cache) Names(categoryName, filter string) []string {
	return c.names(categoryName, filter, func(*Entry) bool { return true })
}

// HolderCategories returns the categories in which holderID holds at least one tool.
func (c *Cache) HolderCategories(holderID ledger.HolderID, filter string) []string {
	idx := c.current.Load()
	result := make([]string, 0)

	for _, name := range idx.categories {
		if len(result) == MaxSuggestions {
			break
		}

		if !matches(name, filter) {
			continue
		}

		cat := idx.byCategory[name]
		if slices.ContainsFunc(cat.names, func(toolName string) bool {
			return cat.slots[toolName].Load().HolderID == holderID
		}) {
			result = append(result, name)
		}
	}

	return result
}

// Category returns every tool of one category in name order, uncapped.
// It returns false if the category is unknown.
func (c *Cache) Category(categoryName string) ([]Item, bool) {
	cat, ok := c.current.Load().byCategory[categoryName]
	if !ok {
		return nil, false
	}

	items := make([]Item, 0, len(cat.names))
	for _, name := range cat.names {
		items = append(items, Item{
			Key:   ledger.ToolKey{Category: categoryName, Name: name},
			Entry: *cat.slots[name].Load(),
		})
	}

	return items, true
}

// HolderItems returns every tool held by holderID, ordered by category, then name, uncapped.
func (c *Cache) HolderItems(holderID ledger.HolderID) []Item {
	idx := c.current.Load()
	items := make([]Item, 0)

	if holderID == "" {
		return items
	}

	for _, categoryName := range idx.categories {
		cat := idx.byCategory[categoryName]
		for _, name := range cat.names {
			entry := cat.slots[name].Load()
			if entry.HolderID == holderID {
				items = append(items, Item{
					Key:   ledger.ToolKey{Category: categoryName, Name: name},
					Entry: *entry,
				})
			}
		}
	}

	return items
}

func (c *Cache) names(categoryName, filter string, keep func(*Entry) bool) []string {
	result := make([]string, 0)

	cat, ok := c.current.Load().byCategory[categoryName]
	if !ok {
		return result
	}

	for _, name := range cat.names {
		if len(result) == MaxSuggestions {
			break
		}

		if matches(name, filter) && keep(cat.slots[name].Load()) {
			result = append(result, name)
		}
	}

	return result
}

func (idx *index) slot(key ledger.ToolKey) (*atomic.Pointer[Entry], bool) {
	cat, ok := idx.byCategory[key.Category]
	if !ok {
		return nil, false
	}

	slot, ok := cat.slots[key.Name]

	return slot, ok
}

func buildIndex(tools []ledger.Tool) *index {
	idx := &index{
		categories: make([]string, 0),
		byCategory: make(map[string]*category),
	}

	for _, tool := range tools {
		cat, ok := idx.byCategory[tool.Key.Category]
		if !ok {
			cat = &category{slots: make(map[string]*atomic.Pointer[Entry])}
			idx.byCategory[tool.Key.Category] = cat
			idx.categories = append(idx.categories, tool.Key.Category)
		}

		slot, exists := cat.slots[tool.Key.Name]
		if !exists {
			slot = &atomic.Pointer[Entry]{}
			cat.slots[tool.Key.Name] = slot
			cat.names = append(cat.names, tool.Key.Name)
			idx.size++
		}

		entry := EntryFromTool(tool)
		slot.Store(&entry)
	}

	slices.Sort(idx.categories)
	for _, cat := range idx.byCategory {
		slices.Sort(cat.names)
	}

	return idx
}

func matches(value, filter string) bool {
	return filter == "" || strings.Contains(value, filter)
}
