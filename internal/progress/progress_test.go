package progress_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smilemakc/dagml/internal/core"
	"github.com/smilemakc/dagml/internal/progress"
)

func TestHubBroadcastWithNoClientsDoesNotBlock(t *testing.T) {
	hub := progress.NewHub()
	go hub.Run()
	defer hub.Stop()

	obsA := progress.NewObserver(hub, "run-a")
	obsB := progress.NewObserver(hub, "run-b")

	require.NotPanics(t, func() {
		obsA.OnGenerationStart(0, []core.Handle{core.NewHandle("placeholder")})
		obsB.OnGenerationStart(0, []core.Handle{core.NewHandle("placeholder")})
	})
	time.Sleep(10 * time.Millisecond)
}

func TestObserverCallbacksDoNotPanic(t *testing.T) {
	hub := progress.NewHub()
	go hub.Run()
	defer hub.Stop()

	obs := progress.NewObserver(hub, "run-1")
	require.NotPanics(t, func() {
		obs.OnGenerationStart(0, nil)
		obs.OnGenerationEnd(0, time.Millisecond)
		obs.OnProducerPrepared(core.NewHandle("prepared:x"), time.Millisecond)
		obs.OnMinibatchApplied(core.NewHandle("prepared:x"), 4, time.Millisecond)
		obs.OnExecutionFailed(core.NewHandle("prepared:x"), errBoom{})
		obs.OnExecutionCancelled("test")
	})
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
