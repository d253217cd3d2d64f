package router

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/af-corp/ai-gateway/internal/types"
)

func TestRouter_SelectHighestPriority(t *testing.T) {
	r, _ := newTestRegistry(t, svc("low", 1, ""), svc("high", 10, ""), svc("mid", 5, ""))

	got, err := New(r).Select(types.CapChat)
	if err != nil {
		t.Fatal(err)
	}
	if got != "high" {
		t.Errorf("expected high, got %s", got)
	}
}

func TestRouter_TieBrokenByLowestID(t *testing.T) {
	r, _ := newTestRegistry(t, svc("zeta", 7, ""), svc("alpha", 7, ""), svc("mike", 7, ""))
	rt := New(r)

	for i := 0; i < 20; i++ {
		got, err := rt.Select(types.CapChat)
		if err != nil {
			t.Fatal(err)
		}
		if got != "alpha" {
			t.Fatalf("iteration %d: expected alpha, got %s", i, got)
		}
	}
}

func TestRouter_SkipsDisabledAndOtherCapabilities(t *testing.T) {
	off := svc("off", 100, "")
	off.Enabled = false
	embed := svc("embed", 50, "")
	embed.Capability = types.CapEmbedding
	r, _ := newTestRegistry(t, off, embed, svc("on", 1, ""))

	got, err := New(r).Select(types.CapChat)
	if err != nil {
		t.Fatal(err)
	}
	if got != "on" {
		t.Errorf("expected on, got %s", got)
	}
}

func TestRouter_NoServiceAvailable(t *testing.T) {
	r, _ := newTestRegistry(t, svc("a", 1, ""))

	_, err := New(r).Select(types.CapImage)
	if !errors.Is(err, ErrNoServiceAvailable) {
		t.Fatalf("expected ErrNoServiceAvailable, got %v", err)
	}
}

func TestRouter_ConcurrentSelectDuringMutation(t *testing.T) {
	r, _ := newTestRegistry(t, svc("a", 10, ""), svc("b", 5, ""))
	rt := New(r)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := fmt.Sprintf("tmp-%d-%d", i, j)
				r.Register(svc(id, 1, ""))
				r.Disable(id)
				r.Remove(id)
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				got, err := rt.Select(types.CapChat)
				if err != nil || got != "a" {
					t.Errorf("expected a, got %q (%v)", got, err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
