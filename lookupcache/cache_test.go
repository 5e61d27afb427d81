package lookupcache_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildworks/toolledger/ledger"
	. "github.com/guildworks/toolledger/lookupcache"
)

var borrowedAt = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func tool(category, name string) ledger.Tool {
	return ledger.Tool{Key: ledger.ToolKey{Category: category, Name: name}}
}

func loanedTool(category, name, holderID string) ledger.Tool {
	t := tool(category, name)
	t.HolderID = holderID
	t.HolderName = "name-" + holderID
	t.BorrowedAt = borrowedAt

	return t
}

func loanFor(holderID string) *ledger.Loan {
	return &ledger.Loan{HolderID: holderID, HolderName: "name-" + holderID, BorrowedAt: borrowedAt}
}

func Test_Reload_When_ToolsGiven_It_Groups_And_Sorts_By_Category_And_Name(t *testing.T) {
	// arrange
	cache := New()

	// act
	cache.Reload([]ledger.Tool{
		tool("wrench", "W2"),
		tool("pick", "Beta"),
		tool("wrench", "W1"),
		tool("pick", "Alpha"),
	})

	// assert
	assert.Equal(t, 4, cache.Len())
	assert.Equal(t, []string{"pick", "wrench"}, cache.Categories(""))
	assert.Equal(t, []string{"Alpha", "Beta"}, cache.Names("pick", ""))
	assert.Equal(t, []string{"W1", "W2"}, cache.Names("wrench", ""))
}

func Test_Reload_When_Called_Again_It_Replaces_The_Whole_Content(t *testing.T) {
	// arrange
	cache := New()
	cache.Reload([]ledger.Tool{tool("pick", "Alpha"), tool("pick", "Beta")})

	// act
	cache.Reload([]ledger.Tool{tool("saw", "S1")})

	// assert
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, []string{"saw"}, cache.Categories(""))
	_, found := cache.Category("pick")
	assert.False(t, found)
}

func Test_Patch_When_Key_Is_Unknown_It_Returns_False(t *testing.T) {
	// arrange
	cache := New()
	cache.Reload([]ledger.Tool{tool("pick", "Alpha")})

	// act
	patchedUnknownName := cache.Patch(ledger.ToolKey{Category: "pick", Name: "Gamma"}, loanFor("u1"))
	patchedUnknownCategory := cache.Patch(ledger.ToolKey{Category: "saw", Name: "Alpha"}, loanFor("u1"))

	// assert
	assert.False(t, patchedUnknownName)
	assert.False(t, patchedUnknownCategory)
	assert.Equal(t, []string{"Alpha"}, cache.AvailableNames("pick", ""))
}

func Test_Patch_Yields_The_Same_Content_As_A_Reload(t *testing.T) {
	// arrange
	before := []ledger.Tool{tool("pick", "Alpha"), tool("pick", "Beta"), loanedTool("saw", "S1", "u2")}
	after := []ledger.Tool{loanedTool("pick", "Alpha", "u1"), tool("pick", "Beta"), tool("saw", "S1")}

	patched := New()
	patched.Reload(before)
	reloaded := New()

	// act
	require.True(t, patched.Patch(ledger.ToolKey{Category: "pick", Name: "Alpha"}, loanFor("u1")))
	require.True(t, patched.Patch(ledger.ToolKey{Category: "saw", Name: "S1"}, nil))
	reloaded.Reload(after)

	// assert
	for _, category := range []string{"pick", "saw"} {
		patchedItems, _ := patched.Category(category)
		reloadedItems, _ := reloaded.Category(category)
		assert.Empty(t, cmp.Diff(reloadedItems, patchedItems), "category %s differs", category)
	}

	assert.Empty(t, cmp.Diff(reloaded.HolderItems("u1"), patched.HolderItems("u1")))
	assert.Empty(t, cmp.Diff(reloaded.HolderItems("u2"), patched.HolderItems("u2")))
	assert.Equal(t, reloaded.Len(), patched.Len())
}

func Test_Queries_When_Filtered_They_Match_Case_Sensitive_Substrings(t *testing.T) {
	// arrange
	cache := New()
	cache.Reload([]ledger.Tool{
		tool("pick", "Alpha"),
		tool("pick", "alpine"),
		loanedTool("pick", "Palp", "u1"),
		tool("pickaxe", "X"),
	})

	// act & assert
	assert.Equal(t, []string{"Alpha"}, cache.AvailableNames("pick", "Alp"))
	assert.Equal(t, []string{"alpine"}, cache.AvailableNames("pick", "alp"))
	assert.Equal(t, []string{"Palp"}, cache.LoanedNames("pick", "alp"))
	assert.Equal(t, []string{"Palp"}, cache.HeldNames("pick", "u1", ""))
	assert.Empty(t, cache.HeldNames("pick", "u2", ""))
	assert.Equal(t, []string{"pick", "pickaxe"}, cache.Categories("pick"))
	assert.Equal(t, []string{"pickaxe"}, cache.Categories("axe"))
	assert.Empty(t, cache.Categories("PICK"))
}

func Test_Queries_When_Category_Is_Unknown_They_Return_Empty_Results(t *testing.T) {
	// arrange
	cache := New()
	cache.Reload([]ledger.Tool{tool("pick", "Alpha")})

	// act & assert
	assert.Empty(t, cache.AvailableNames("saw", ""))
	assert.Empty(t, cache.Names("saw", ""))
	assert.Empty(t, cache.HeldNames("saw", "u1", ""))
	assert.Empty(t, cache.LoanedNames("saw", ""))
}

func Test_Queries_Are_Capped_At_MaxSuggestions(t *testing.T) {
	// arrange
	tools := make([]ledger.Tool, 0)
	for i := 0; i < MaxSuggestions+10; i++ {
		tools = append(tools, tool(fmt.Sprintf("cat%02d", i), "T"))
		tools = append(tools, loanedTool("pick", fmt.Sprintf("P%02d", i), "u1"))
	}

	cache := New()
	cache.Reload(tools)

	// act
	categories := cache.Categories("")
	names := cache.Names("pick", "")
	held := cache.HeldNames("pick", "u1", "")
	loaned := cache.LoanedNames("pick", "")

	// assert
	assert.Len(t, categories, MaxSuggestions)
	assert.Equal(t, "cat00", categories[0])
	assert.Len(t, names, MaxSuggestions)
	assert.Equal(t, "P00", names[0])
	assert.Equal(t, "P24", names[MaxSuggestions-1])
	assert.Len(t, held, MaxSuggestions)
	assert.Len(t, loaned, MaxSuggestions)
}

func Test_HolderCategories_Returns_Only_Categories_With_Loans_Of_The_Holder(t *testing.T) {
	// arrange
	cache := New()
	cache.Reload([]ledger.Tool{
		loanedTool("pick", "Alpha", "u1"),
		loanedTool("saw", "S1", "u2"),
		tool("wrench", "W1"),
		loanedTool("drill", "D1", "u1"),
	})

	// act
	categories := cache.HolderCategories("u1", "")

	// assert
	assert.Equal(t, []string{"drill", "pick"}, categories)
	assert.Empty(t, cache.HolderCategories("u3", ""))
}

func Test_HolderItems_Returns_Uncapped_Items_In_Category_And_Name_Order(t *testing.T) {
	// arrange
	cache := New()
	cache.Reload([]ledger.Tool{
		loanedTool("pick", "Beta", "u1"),
		loanedTool("drill", "D1", "u1"),
		loanedTool("pick", "Alpha", "u1"),
		loanedTool("pick", "Gamma", "u2"),
	})

	// act
	items := cache.HolderItems("u1")

	// assert
	require.Len(t, items, 3)
	assert.Equal(t, ledger.ToolKey{Category: "drill", Name: "D1"}, items[0].Key)
	assert.Equal(t, ledger.ToolKey{Category: "pick", Name: "Alpha"}, items[1].Key)
	assert.Equal(t, ledger.ToolKey{Category: "pick", Name: "Beta"}, items[2].Key)
	assert.Equal(t, "u1", items[0].Entry.HolderID)
	assert.Empty(t, cache.HolderItems(""))
}

func Test_Lookup_Returns_The_Current_Entry(t *testing.T) {
	// arrange
	cache := New()
	cache.Reload([]ledger.Tool{tool("pick", "Alpha")})
	key := ledger.ToolKey{Category: "pick", Name: "Alpha"}

	// act
	require.True(t, cache.Patch(key, loanFor("u1")))
	entry, found := cache.Lookup(key)

	// assert
	assert.True(t, found)
	assert.True(t, entry.OnLoan())
	assert.Equal(t, "name-u1", entry.Label())
	assert.Equal(t, borrowedAt, entry.BorrowedAt)
}

func Test_Readers_When_Patches_Run_Concurrently_Never_See_A_Torn_Entry(t *testing.T) {
	// arrange
	cache := New()
	cache.Reload([]ledger.Tool{tool("pick", "Alpha")})
	key := ledger.ToolKey{Category: "pick", Name: "Alpha"}

	var wg sync.WaitGroup
	done := make(chan struct{})
	torn := make(chan Entry, 1)

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}

				entry, _ := cache.Lookup(key)
				if entry.OnLoan() && entry.HolderName != "name-"+entry.HolderID {
					select {
					case torn <- entry:
					default:
					}
				}
			}
		}()
	}

	// act
	for i := 0; i < 1000; i++ {
		cache.Patch(key, loanFor(fmt.Sprintf("u%d", i%7)))
		cache.Patch(key, nil)
	}

	close(done)
	wg.Wait()

	// assert
	select {
	case entry := <-torn:
		t.Fatalf("observed torn entry %+v", entry)
	default:
	}
}
