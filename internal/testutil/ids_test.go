package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedIDs_ReturnsSameID(t *testing.T) {
	gen := NewFixedIDs("s-123")

	assert.Equal(t, "s-123", gen.Generate())
	assert.Equal(t, "s-123", gen.Generate())
}

func TestFixedIDs_EmptyDefault(t *testing.T) {
	assert.Equal(t, "test-session", NewFixedIDs("").Generate())
}

func TestSequentialIDs_CountsUp(t *testing.T) {
	gen := NewSequentialIDs("branch")

	assert.Equal(t, "branch-0001", gen.Generate())
	assert.Equal(t, "branch-0002", gen.Generate())

	gen.Reset()
	assert.Equal(t, "branch-0001", gen.Generate())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	gen := NewSequentialIDs("")
	seen := make(chan string, 1000)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				seen <- gen.Generate()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[string]bool{}
	for id := range seen {
		unique[id] = true
	}
	assert.Len(t, unique, 1000)
}
