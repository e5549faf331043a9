package walker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptkit/internal/snapshot"
	"promptkit/internal/vtree"
)

func comp(name, path string, props vtree.Props, children ...*snapshot.Node) *snapshot.Node {
	return &snapshot.Node{Name: name, Path: path, Props: props, Children: children}
}

func leaf(path, text string) *snapshot.Node {
	return &snapshot.Node{Name: vtree.NameText, Path: path, Value: text, HasValue: true}
}

func TestWalk_PreOrderAndPruning(t *testing.T) {
	root := comp("Root", "r", nil,
		comp("A", "r.a", nil, leaf("r.a.0", "a")),
		comp("Skip", "r.s", nil, leaf("r.s.0", "hidden")),
		comp("B", "r.b", nil, leaf("r.b.0", "b")),
	)

	var visited []string
	Walk(root, nil, func(node, _ *snapshot.Node, _ Context) bool {
		visited = append(visited, node.Path)
		return node.Name != "Skip"
	})

	assert.Equal(t, []string{"r", "r.a", "r.a.0", "r.s", "r.b", "r.b.0"}, visited)
}

func TestWalk_WeightIsMultiplicative(t *testing.T) {
	root := comp("Root", "r", vtree.Props{PropWeight: 0.5},
		comp("Child", "r.c", vtree.Props{PropWeight: 0.5}, leaf("r.c.0", "x")),
		comp("Over", "r.o", vtree.Props{PropWeight: 7.0}, leaf("r.o.0", "y")),
		comp("Neg", "r.n", vtree.Props{PropWeight: -1}, leaf("r.n.0", "z")),
	)

	weights := map[string]float64{}
	Walk(root, DefaultTransformers(), func(node, parent *snapshot.Node, ctx Context) bool {
		weights[node.Path] = ctx.Weight
		return true
	})

	assert.Equal(t, 0.5, weights["r"])
	assert.Equal(t, 0.25, weights["r.c.0"])
	assert.Equal(t, 0.5, weights["r.o.0"], "weights above 1 clamp to 1")
	assert.Equal(t, 0.0, weights["r.n.0"], "negative weights clamp to 0")

	for path, w := range weights {
		assert.LessOrEqual(t, w, 1.0, path)
	}
}

func TestWalk_ChunkMembershipNests(t *testing.T) {
	root := comp("Root", "r", nil,
		comp("Outer", "r.b", vtree.Props{PropChunk: true},
			leaf("r.b.0", "outer only"),
			comp("Inner", "r.b.a", vtree.Props{PropChunk: true}, leaf("r.b.a.0", "nested")),
		),
		leaf("r.1", "free"),
	)

	chunks := map[string][]string{}
	Walk(root, DefaultTransformers(), func(node, _ *snapshot.Node, ctx Context) bool {
		chunks[node.Path] = ctx.ChunkIDs
		return true
	})

	assert.Equal(t, []string{"r.b"}, chunks["r.b.0"])
	assert.ElementsMatch(t, []string{"r.b", "r.b.a"}, chunks["r.b.a.0"])
	assert.Empty(t, chunks["r.1"])
}

func TestWalk_SiblingsDoNotShareContext(t *testing.T) {
	root := comp("Root", "r", vtree.Props{PropChunk: true},
		comp("First", "r.1", vtree.Props{PropChunk: true, PropSource: "snippets"}, leaf("r.1.0", "a")),
		comp("Second", "r.2", nil, leaf("r.2.0", "b")),
	)

	var second Context
	Walk(root, DefaultTransformers(), func(node, _ *snapshot.Node, ctx Context) bool {
		if node.Path == "r.2.0" {
			second = ctx
		}
		return true
	})

	assert.Equal(t, []string{"r"}, second.ChunkIDs)
	assert.Empty(t, second.Source)
}

func TestWalk_SourceOverride(t *testing.T) {
	root := comp("Root", "r", vtree.Props{PropSource: "outer"},
		comp("Inner", "r.i", vtree.Props{PropSource: "inner"}, leaf("r.i.0", "x")),
		leaf("r.0", "y"),
	)

	sources := map[string]string{}
	Walk(root, DefaultTransformers(), func(node, _ *snapshot.Node, ctx Context) bool {
		sources[node.Path] = ctx.Source
		return true
	})

	assert.Equal(t, "inner", sources["r.i.0"])
	assert.Equal(t, "outer", sources["r.0"])
}

func classifyByName(node, _ *snapshot.Node, ctx Context) Context {
	switch node.Name {
	case "Before":
		ctx.Kind = KindPrefix
	case "After":
		ctx.Kind = KindSuffix
	}
	return ctx
}

func TestCollect(t *testing.T) {
	root := comp("Root", "r", nil,
		comp("Ctx", "r.c", vtree.Props{PropWeight: 0.8}, leaf("r.c.0", "// Path: a.go\n"), leaf("r.c.1", "")),
		comp("Anchor", "r.a", nil,
			comp("Before", "r.a.b", nil, leaf("r.a.b.0", "func main() {")),
			comp("After", "r.a.s", nil, leaf("r.a.s.0", "}")),
		),
	)
	root.Children[0].Stats.UpdateDuration = 5

	got, err := Collect(root, Options{Transformers: []Transformer{classifyByName}, Anchor: "Anchor"})
	require.NoError(t, err)

	require.Len(t, got.Blocks, 2, "empty leaves produce no blocks")
	assert.Equal(t, "r.c.0", got.Blocks[0].ComponentPath)
	assert.Equal(t, 0.8, got.Blocks[0].Weight)
	assert.EqualValues(t, 5, got.Blocks[0].Stats.UpdateDuration)
	assert.Equal(t, KindPrefix, got.Blocks[1].Kind)
	assert.True(t, got.Blocks[1].Pinned())

	require.NotNil(t, got.Suffix)
	assert.Equal(t, "}", got.Suffix.Text)
}

func TestCollect_Errors(t *testing.T) {
	t.Run("missing anchor", func(t *testing.T) {
		root := comp("Root", "r", nil, leaf("r.0", "x"))
		_, err := Collect(root, Options{Anchor: "Anchor"})
		assert.True(t, errors.Is(err, ErrMissingAnchor))
	})

	t.Run("two suffix blocks", func(t *testing.T) {
		root := comp("Anchor", "r", nil,
			comp("After", "r.1", nil, leaf("r.1.0", "a")),
			comp("After", "r.2", nil, leaf("r.2.0", "b")),
		)
		_, err := Collect(root, Options{Transformers: []Transformer{classifyByName}, Anchor: "Anchor"})
		assert.True(t, errors.Is(err, ErrMultipleSuffix))
	})

	t.Run("duplicate component path", func(t *testing.T) {
		root := comp("Anchor", "r", nil, leaf("dup", "a"), leaf("dup", "b"))
		_, err := Collect(root, Options{Anchor: "Anchor"})
		assert.True(t, errors.Is(err, ErrDuplicatePath))
	})
}
