package thread

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/discussion-platform/services/discussion/internal/domain"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func view(id string, parent string, minute int) domain.CommentView {
	v := domain.CommentView{ID: id, PostID: "post-1", Content: id, CreatedAt: t0.Add(time.Duration(minute) * time.Minute)}
	if parent != "" {
		p := parent
		v.ParentID = &p
	}
	return v
}

func ids(nodes []*Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func TestAssemble_NestsChain(t *testing.T) {
	forest := Assemble([]domain.CommentView{
		view("A", "", 0),
		view("B", "A", 1),
		view("C", "B", 2),
	})

	require.Len(t, forest, 1)
	a := forest[0]
	assert.Equal(t, "A", a.ID)
	require.Len(t, a.Replies, 1)
	assert.Equal(t, "B", a.Replies[0].ID)
	require.Len(t, a.Replies[0].Replies, 1)
	assert.Equal(t, "C", a.Replies[0].Replies[0].ID)
	assert.Empty(t, a.Replies[0].Replies[0].Replies)
}

func TestAssemble_PromotesOrphans(t *testing.T) {
	forest := Assemble([]domain.CommentView{
		view("A", "", 0),
		view("D", "missing", 1),
	})
	assert.Equal(t, []string{"A", "D"}, ids(forest))
	assert.Equal(t, 2, Count(forest))
}

func TestAssemble_KeepsCreationOrder(t *testing.T) {
	forest := Assemble([]domain.CommentView{
		view("A", "", 0),
		view("B", "", 1),
		view("A1", "A", 2),
		view("B1", "B", 3),
		view("A2", "A", 4),
	})
	assert.Equal(t, []string{"A", "B"}, ids(forest))
	assert.Equal(t, []string{"A1", "A2"}, ids(forest[0].Replies))
	assert.Equal(t, []string{"B1"}, ids(forest[1].Replies))
}

func TestAssemble_ChildBeforeParentInInput(t *testing.T) {
	forest := Assemble([]domain.CommentView{
		view("B", "A", 0),
		view("A", "", 1),
	})
	require.Len(t, forest, 1)
	assert.Equal(t, "A", forest[0].ID)
	assert.Equal(t, []string{"B"}, ids(forest[0].Replies))
}

func TestAssemble_DoesNotAliasInput(t *testing.T) {
	in := []domain.CommentView{view("A", "", 0), view("B", "A", 1)}
	forest := Assemble(in)

	*forest[0].Replies[0].ParentID = "changed"
	forest[0].Content = "changed"

	assert.Equal(t, "A", *in[1].ParentID)
	assert.Equal(t, "A", in[0].Content)
}

func TestAssemble_Deterministic(t *testing.T) {
	in := []domain.CommentView{view("A", "", 0), view("B", "A", 1), view("C", "", 2), view("D", "C", 3)}
	first := Assemble(in)
	second := Assemble(in)
	assert.Equal(t, first, second)
}

func TestAssemble_CycleDoesNotDropNodes(t *testing.T) {
	forest := Assemble([]domain.CommentView{
		view("X", "Y", 0),
		view("Y", "X", 1),
	})
	assert.Equal(t, 2, Count(forest))
}

func TestAssemble_CycleMembersBecomeRoots(t *testing.T) {
	// C hangs off a two-node cycle; D starts a separate self loop.
	forest := Assemble([]domain.CommentView{
		view("A", "B", 0),
		view("B", "A", 1),
		view("C", "A", 2),
		view("D", "D", 3),
		view("E", "", 4),
	})
	require.Equal(t, []string{"A", "B", "D", "E"}, ids(forest))
	assert.Equal(t, []string{"C"}, ids(forest[0].Replies))
	assert.Empty(t, forest[1].Replies)
	assert.Empty(t, forest[2].Replies)
	assert.Equal(t, 5, Count(forest))
}

func TestAssemble_DeepChain(t *testing.T) {
	const depth = 20000
	in := make([]domain.CommentView, 0, depth)
	for i := 0; i < depth; i++ {
		parent := ""
		if i > 0 {
			parent = fmt.Sprintf("c%d", i-1)
		}
		in = append(in, view(fmt.Sprintf("c%d", i), parent, i))
	}

	forest := Assemble(in)
	require.Len(t, forest, 1)
	assert.Equal(t, depth, Count(forest))
	deepest := 0
	Walk(forest, func(_ *Node, d int) bool {
		deepest = max(deepest, d)
		return true
	})
	assert.Equal(t, depth-1, deepest)
}

func TestAssemble_LongCycle(t *testing.T) {
	const n = 5000
	in := make([]domain.CommentView, 0, n+1)
	for i := 0; i < n; i++ {
		in = append(in, view(fmt.Sprintf("c%d", i), fmt.Sprintf("c%d", (i+1)%n), i))
	}
	in = append(in, view("tail", "c0", n))

	forest := Assemble(in)
	assert.Len(t, forest, n)
	assert.Equal(t, n+1, Count(forest))
}

func TestAssemble_Empty(t *testing.T) {
	forest := Assemble(nil)
	assert.NotNil(t, forest)
	assert.Empty(t, forest)
	assert.Zero(t, Count(forest))
}

func TestWalk_DepthAndStop(t *testing.T) {
	forest := Assemble([]domain.CommentView{
		view("A", "", 0),
		view("B", "A", 1),
		view("C", "B", 2),
		view("D", "", 3),
	})

	depths := map[string]int{}
	Walk(forest, func(n *Node, depth int) bool {
		depths[n.ID] = depth
		return true
	})
	assert.Equal(t, map[string]int{"A": 0, "B": 1, "C": 2, "D": 0}, depths)

	var seen []string
	Walk(forest, func(n *Node, _ int) bool {
		seen = append(seen, n.ID)
		return n.ID != "B"
	})
	assert.Equal(t, []string{"A", "B"}, seen)
}
