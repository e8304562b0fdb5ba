package visibility

import "testing"

type item struct {
	id     string
	author string
}

func (i item) AuthoredBy() string { return i.author }

func TestFilterRemovesBlockedAuthors(t *testing.T) {
	items := []item{
		{id: "1", author: "alice"},
		{id: "2", author: "bob"},
		{id: "3", author: "carol"},
		{id: "4", author: "bob"},
	}
	got := Filter(items, NewBlockSet([]string{"bob"}))
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[0].id != "1" || got[1].id != "3" {
		t.Fatalf("order not preserved: %+v", got)
	}
}

func TestFilterSymmetric(t *testing.T) {
	// A blocked B: B's view omits A, and A's view omits B, regardless of who
	// created the edge. Both directions arrive via the same block set.
	posts := []item{{id: "a-post", author: "A"}, {id: "b-post", author: "B"}}

	viewByB := Filter(posts, NewBlockSet([]string{"A"}))
	if len(viewByB) != 1 || viewByB[0].id != "b-post" {
		t.Fatalf("B still sees A's post: %+v", viewByB)
	}

	viewByA := Filter(posts, NewBlockSet([]string{"B"}))
	if len(viewByA) != 1 || viewByA[0].id != "a-post" {
		t.Fatalf("A still sees B's post: %+v", viewByA)
	}
}

func TestFilterEmptyBlockSetReturnsInput(t *testing.T) {
	items := []item{{id: "1", author: "alice"}}
	got := Filter(items, nil)
	if len(got) != 1 {
		t.Fatalf("expected passthrough, got %+v", got)
	}
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	items := []item{
		{id: "1", author: "alice"},
		{id: "2", author: "bob"},
	}
	_ = Filter(items, NewBlockSet([]string{"alice"}))
	if items[0].id != "1" || items[1].id != "2" {
		t.Fatalf("input mutated: %+v", items)
	}
}
