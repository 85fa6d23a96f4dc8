package data

import "sync"

// ContainerCache maps an entity type name to the container holding its documents.
// Entries are written once per type: concurrent Resolve calls for the same type
// all observe the first stored value.
type ContainerCache struct {
	containers sync.Map // string -> string
}

// NewContainerCache creates an empty cache.
func NewContainerCache() *ContainerCache {
	return &ContainerCache{}
}

// Resolve returns the cached container for typeName, storing declared if none is
// cached yet. An empty declaration defaults to the type name.
func (c *ContainerCache) Resolve(typeName, declared string) string {
	if v, ok := c.containers.Load(typeName); ok {
		return v.(string)
	}
	if declared == "" {
		declared = typeName
	}
	actual, _ := c.containers.LoadOrStore(typeName, declared)
	return actual.(string)
}

// Containers returns every distinct container resolved so far.
func (c *ContainerCache) Containers() []string {
	seen := make(map[string]bool)
	var out []string
	c.containers.Range(func(_, v any) bool {
		name := v.(string)
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
		return true
	})
	return out
}
