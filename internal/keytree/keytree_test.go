package keytree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildNamespaceScenario(t *testing.T) {
	keys := []string{"user:1:name", "user:1:age", "user:2:name", "count"}

	items := Build(keys)
	require.Len(t, items, 2)

	// Folders sort before leaves.
	assert.Equal(t, "user", items[0].ID)
	assert.True(t, items[0].IsFolder())
	assert.Equal(t, "count", items[1].ID)
	assert.False(t, items[1].IsFolder())

	user := items[0]
	require.Len(t, user.Children, 2)
	assert.Equal(t, "user:1", user.Children[0].ID)
	assert.Equal(t, "user:2", user.Children[1].ID)

	user1 := user.Children[0]
	require.Len(t, user1.Children, 2)
	assert.Equal(t, "user:1:age", user1.Children[0].ID)
	assert.Equal(t, "age", user1.Children[0].Label)
	assert.Equal(t, "user:1:name", user1.Children[1].ID)

	user2 := user.Children[1]
	require.Len(t, user2.Children, 1)
	assert.Equal(t, "user:2:name", user2.Children[0].ID)
	assert.Equal(t, "name", user2.Children[0].Label)
}

func TestBuildFullPathInvariant(t *testing.T) {
	keys := []string{
		"a",
		"a:b",
		"a:b:c",
		"x:y",
		"deep:1:2:3:4:5",
	}

	var walk func(t *testing.T, items []TreeItem, parent string)
	walk = func(t *testing.T, items []TreeItem, parent string) {
		for _, item := range items {
			want := item.Label
			if parent != "" {
				want = parent + Separator + item.Label
			}
			assert.Equal(t, want, item.ID)
			walk(t, item.Children, item.ID)
		}
	}
	walk(t, Build(keys), "")
}

func TestBuildEveryKeyReachable(t *testing.T) {
	keys := []string{"user:1:name", "user:1", "session:abc", "count"}

	items := Build(keys)
	for _, key := range keys {
		assert.True(t, containsPath(items, key), "key %q not reachable", key)
	}
}

// containsPath walks the tree by splitting the key on the separator.
func containsPath(items []TreeItem, key string) bool {
	parts := strings.Split(key, Separator)
	current := items
	for i, part := range parts {
		found := false
		for _, item := range current {
			if item.Label != part {
				continue
			}
			if i == len(parts)-1 {
				return item.ID == key
			}
			current = item.Children
			found = true
			break
		}
		if !found {
			return false
		}
	}
	return false
}

func TestBuildIdempotent(t *testing.T) {
	keys := []string{"user:1:name", "user:2:name", "count"}
	withDuplicate := append([]string{}, keys...)
	withDuplicate = append(withDuplicate, "user:1:name")

	assert.Equal(t, Build(keys), Build(withDuplicate))
}

func TestBuildKeyThatIsAlsoFolder(t *testing.T) {
	// "user:1" is a real key and a strict prefix of "user:1:name".
	items := Build([]string{"user:1", "user:1:name"})

	require.Len(t, items, 1)
	require.Len(t, items[0].Children, 1)
	user1 := items[0].Children[0]
	assert.Equal(t, "user:1", user1.ID)
	assert.True(t, user1.IsFolder())
	require.Len(t, user1.Children, 1)
	assert.Equal(t, "user:1:name", user1.Children[0].ID)
}

func TestBuildEmpty(t *testing.T) {
	assert.Empty(t, Build(nil))
	assert.Empty(t, Build([]string{}))
}

func TestCountLeaves(t *testing.T) {
	items := Build([]string{"user:1:name", "user:1:age", "user:2:name", "count"})
	assert.Equal(t, 4, CountLeaves(items))
}
