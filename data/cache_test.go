package data

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainerCacheResolve(t *testing.T) {
	cache := NewContainerCache()

	assert.Equal(t, "CaseFiles", cache.Resolve("DrugEntry", "CaseFiles"))
	assert.Equal(t, "CaseFiles", cache.Resolve("DrugEntry", "Other"))
	assert.Equal(t, "Widget", cache.Resolve("Widget", ""))
	assert.ElementsMatch(t, []string{"CaseFiles", "Widget"}, cache.Containers())
}

func TestContainerCacheConcurrentFirstWriteWins(t *testing.T) {
	cache := NewContainerCache()
	results := make([]string, 50)

	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			declared := "A"
			if i%2 == 1 {
				declared = "B"
			}
			results[i] = cache.Resolve("Entry", declared)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
}
