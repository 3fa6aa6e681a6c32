package notify

import (
	"sync"
	"testing"

	"github.com/VoiceForge-io/voiceforge/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestRegistrySubscribePublish(t *testing.T) {
	registry := NewRegistry()

	var got []models.Snapshot
	unsubscribe := registry.Subscribe("u1", func(s models.Snapshot) {
		got = append(got, s)
	})

	registry.Publish(models.Snapshot{UID: "u1", Plan: models.PlanFree, CharacterCount: 10})
	registry.Publish(models.Snapshot{UID: "other", Plan: models.PlanPro})

	assert.Len(t, got, 1, "only snapshots for the subscribed uid are delivered")
	assert.Equal(t, int64(10), got[0].CharacterCount)

	unsubscribe()
	registry.Publish(models.Snapshot{UID: "u1", CharacterCount: 20})
	assert.Len(t, got, 1, "no delivery after unsubscribe")
	assert.Equal(t, 0, registry.SubscriberCount("u1"))
}

func TestRegistryDuplicateSnapshotIsIdempotent(t *testing.T) {
	registry := NewRegistry()

	var latest models.Snapshot
	defer registry.Subscribe("u1", func(s models.Snapshot) {
		latest = s
	})()

	snapshot := models.Snapshot{UID: "u1", Plan: models.PlanFree, CharacterCount: 42}
	registry.Publish(snapshot)
	registry.Publish(snapshot) // duplicate delivery

	assert.Equal(t, snapshot, latest)
}

func TestRegistryUnsubscribeTwice(t *testing.T) {
	registry := NewRegistry()
	unsubscribe := registry.Subscribe("u1", func(models.Snapshot) {})

	unsubscribe()
	unsubscribe() // must not panic
	assert.Equal(t, 0, registry.SubscriberCount("u1"))
}

func TestRegistryConcurrent(t *testing.T) {
	registry := NewRegistry()

	var mu sync.Mutex
	count := 0
	defer registry.Subscribe("u1", func(models.Snapshot) {
		mu.Lock()
		count++
		mu.Unlock()
	})()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registry.Publish(models.Snapshot{UID: "u1"})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 10, count)
}
