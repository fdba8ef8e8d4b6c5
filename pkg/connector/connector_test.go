package connector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/sensortree/pkg/layout"
	"github.com/matzehuels/sensortree/pkg/tree"
	"github.com/matzehuels/sensortree/pkg/visibility"
)

func sample(t *testing.T) *tree.Forest {
	t.Helper()
	f := tree.New()
	for _, n := range []tree.Node{
		{ID: "A", Name: "A"},
		{ID: "A/B", Name: "B", ParentID: "A"},
		{ID: "A/C", Name: "C", ParentID: "A"},
	} {
		if err := f.Add(n); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	return f
}

func TestComputeHorizontal(t *testing.T) {
	f := sample(t)
	st := visibility.New()
	st.Expand(f, "A")
	boxes := Boxes{
		"A":   {Left: 60, Top: 200, Width: 200, Height: 160},
		"A/B": {Left: 280, Top: 100, Width: 200, Height: 160},
		"A/C": {Left: 280, Top: 300, Width: 200, Height: 160},
	}

	curves := Compute(f, st, layout.Horizontal, boxes)
	if len(curves) != 2 {
		t.Fatalf("got %d curves, want 2", len(curves))
	}
	c := curves[0]
	if c.From != "A" || c.To != "A/B" {
		t.Errorf("curve = %s -> %s", c.From, c.To)
	}
	if c.X1 != 260 || c.Y1 != 280 || c.X2 != 280 || c.Y2 != 180 {
		t.Errorf("anchors = (%v,%v) -> (%v,%v)", c.X1, c.Y1, c.X2, c.Y2)
	}
	if c.Special || c.CurveFactor != NormalFactor {
		t.Errorf("curve should be plain: %+v", c)
	}
	// |dx| = 20, so the minimum offset applies
	if got, want := c.Path(), "M 260 280 C 300 280, 240 180, 280 180"; got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}

func TestComputeVerticalSpecial(t *testing.T) {
	f := sample(t)
	st := visibility.New()
	st.ToggleExpand(f, "A")
	boxes := Boxes{
		"A":   {Left: 240, Top: 60, Width: 200, Height: 160},
		"A/B": {Left: 120, Top: 420, Width: 200, Height: 160},
	}

	curves := Compute(f, st, layout.Vertical, boxes)
	if len(curves) != 1 {
		t.Fatalf("got %d curves, want 1 (missing box skipped)", len(curves))
	}
	c := curves[0]
	if !c.Special || c.CurveFactor != SpecialFactor {
		t.Errorf("active parent should make the curve special: %+v", c)
	}
	if c.X1 != 340 || c.Y1 != 220 || c.X2 != 220 || c.Y2 != 420 {
		t.Errorf("anchors = (%v,%v) -> (%v,%v)", c.X1, c.Y1, c.X2, c.Y2)
	}
	// |dy| * 0.15 = 30 is below the minimum offset
	if got, want := c.Path(), "M 340 220 C 340 260, 220 380, 220 420"; got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}

func TestComputeSkipsCollapsedParents(t *testing.T) {
	f := sample(t)
	st := visibility.New()
	boxes := Boxes{"A": {}, "A/B": {}, "A/C": {}}
	if got := Compute(f, st, layout.Horizontal, boxes); len(got) != 0 {
		t.Errorf("collapsed parent produced %d curves", len(got))
	}
}

func TestComputeFromLayout(t *testing.T) {
	f := sample(t)
	st := visibility.New()
	st.Expand(f, "A")
	r := layout.Compute(f, st, layout.Options{})

	calls := 0
	provider := BoxFunc(func(id string) (Box, bool) {
		calls++
		return FromLayout(r).Box(id)
	})
	curves := Compute(f, st, layout.Horizontal, provider)
	if len(curves) != 2 || calls == 0 {
		t.Errorf("curves = %d, provider calls = %d", len(curves), calls)
	}
}

func TestSchedulerCoalesces(t *testing.T) {
	var got []Trigger
	s := NewScheduler(func(tr Trigger) { got = append(got, tr) })

	if s.Frame() {
		t.Error("Frame() with nothing pending should not run")
	}
	s.Request(TriggerScroll)
	s.Request(TriggerResize)
	s.Request(TriggerMutation)
	if !s.Pending() {
		t.Error("Pending() = false after Request")
	}
	if !s.Frame() {
		t.Error("Frame() should run the pending recompute")
	}
	if s.Frame() {
		t.Error("second Frame() should be idle")
	}
	if len(got) != 1 || got[0] != TriggerMutation {
		t.Errorf("recomputes = %v, want [mutation]", got)
	}
}

func TestSchedulerRun(t *testing.T) {
	var mu sync.Mutex
	runs := 0
	s := NewScheduler(func(Trigger) {
		mu.Lock()
		runs++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, time.Millisecond) }()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Request(TriggerSettle)
		}()
	}
	wg.Wait()
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if runs < 1 || runs > 8 {
		t.Errorf("runs = %d, want between 1 and 8", runs)
	}
	if s.Pending() {
		t.Error("pending request left after Run returned")
	}
}
