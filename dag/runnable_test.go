package dag

import (
	"slices"
	"testing"
)

func TestComputeRunnableSet_Diamond(t *testing.T) {
	g := mustBuild(t, diamond())

	steps := []struct {
		name     string
		outcomes Outcomes
		running  IDSet
		runnable []string
		blocked  []string
	}{
		{"initial", Outcomes{}, NewIDSet(), []string{"A"}, []string{"B", "C", "D"}},
		{"A running", Outcomes{}, NewIDSet("A"), nil, []string{"B", "C", "D"}},
		{"A done", Outcomes{}.Set(OutcomeCompleted, "A"), NewIDSet(), []string{"B", "C"}, []string{"D"}},
		{"B done, C running", Outcomes{}.Set(OutcomeCompleted, "A", "B"), NewIDSet("C"), nil, []string{"D"}},
		{"B and C done", Outcomes{}.Set(OutcomeCompleted, "A", "B", "C"), NewIDSet(), []string{"D"}, nil},
		{"all done", Outcomes{}.Set(OutcomeCompleted, "A", "B", "C", "D"), NewIDSet(), nil, nil},
	}
	for _, s := range steps {
		t.Run(s.name, func(t *testing.T) {
			rs := ComputeRunnableSet(g, s.outcomes, s.running)
			if !slices.Equal(rs.Runnable, s.runnable) {
				t.Errorf("runnable: expected %v, got %v", s.runnable, rs.Runnable)
			}
			if !slices.Equal(rs.Blocked, s.blocked) {
				t.Errorf("blocked: expected %v, got %v", s.blocked, rs.Blocked)
			}
			if len(rs.Terminal) != 0 {
				t.Errorf("expected no terminal tasks, got %v", rs.Terminal)
			}
		})
	}
}

func TestComputeRunnableSet_FailurePropagationIsSinglePass(t *testing.T) {
	g := mustBuild(t, []TaskRecord{keyed("A", "SD-A"), keyed("B", "SD-B", "A"), keyed("C", "SD-C", "B")})

	first := ComputeRunnableSet(g, Outcomes{}.Set(OutcomeFailed, "A"), NewIDSet())
	if len(first.Terminal) != 1 || first.Terminal[0].ID != "B" {
		t.Fatalf("expected only B terminal, got %v", first.Terminal)
	}
	if first.Terminal[0].Reason != "blocker_failed:SD-A" {
		t.Errorf("unexpected reason %q", first.Terminal[0].Reason)
	}
	if first.Terminal[0].BlockerOutcome != OutcomeFailed {
		t.Errorf("expected failed blocker outcome, got %s", first.Terminal[0].BlockerOutcome)
	}
	if !slices.Equal(first.Blocked, []string{"C"}) {
		t.Fatalf("expected C still blocked, got %v", first.Blocked)
	}

	second := ComputeRunnableSet(g, Outcomes{}.Set(OutcomeFailed, "A").Set(OutcomeSkipped, "B"), NewIDSet())
	if len(second.Terminal) != 1 || second.Terminal[0].ID != "C" {
		t.Fatalf("expected C terminal on second pass, got %v", second.Terminal)
	}
	if second.Terminal[0].Reason != "blocker_failed:SD-B" {
		t.Errorf("unexpected reason %q", second.Terminal[0].Reason)
	}
}

func TestComputeRunnableSet_FirstFailedBlockerInListOrder(t *testing.T) {
	g := mustBuild(t, []TaskRecord{task("x"), task("y"), task("z", "x", "y")})
	rs := ComputeRunnableSet(g, Outcomes{}.Set(OutcomeCanceled, "y").Set(OutcomeFailed, "x"), NewIDSet())
	if len(rs.Terminal) != 1 || rs.Terminal[0].BlockerID != "x" {
		t.Fatalf("expected x as the reported blocker, got %v", rs.Terminal)
	}
}

func TestComputeRunnableSet_FailureWinsOverPendingBlockers(t *testing.T) {
	g := mustBuild(t, []TaskRecord{task("x"), task("y"), task("z", "x", "y")})
	rs := ComputeRunnableSet(g, Outcomes{}.Set(OutcomeFailed, "y"), NewIDSet("x"))
	if len(rs.Terminal) != 1 || rs.Terminal[0].ID != "z" {
		t.Fatalf("expected z terminal while x still runs, got %+v", rs)
	}
}

func TestComputeRunnableSet_DanglingBlockerIgnored(t *testing.T) {
	g, _ := Build([]TaskRecord{task("a", "ghost")})
	rs := ComputeRunnableSet(g, Outcomes{}, NewIDSet())
	if !slices.Equal(rs.Runnable, []string{"a"}) {
		t.Fatalf("expected a runnable, got %+v", rs)
	}
}

func TestComputeRunnableSet_SettledAndRunningExcluded(t *testing.T) {
	g := mustBuild(t, []TaskRecord{task("a"), task("b"), task("c")})
	rs := ComputeRunnableSet(g, Outcomes{}.Set(OutcomeCompleted, "a").Set(OutcomeFailed, "b"), NewIDSet("c"))
	if len(rs.Runnable)+len(rs.Blocked)+len(rs.Terminal) != 0 {
		t.Fatalf("expected nothing to classify, got %+v", rs)
	}
}

// Adding completions never takes a still-unsettled task out of the
// runnable set.
func TestComputeRunnableSet_MonotoneInCompleted(t *testing.T) {
	tasks := []TaskRecord{task("a"), task("b", "a"), task("c", "a"), task("d", "b", "c"), task("e")}
	g := mustBuild(t, tasks)
	ids := g.IDs()

	subset := func(mask int) Outcomes {
		o := Outcomes{}
		for i, id := range ids {
			if mask&(1<<i) != 0 {
				o[id] = OutcomeCompleted
			}
		}
		return o
	}

	n := 1 << len(ids)
	for small := 0; small < n; small++ {
		before := ComputeRunnableSet(g, subset(small), NewIDSet())
		for large := 0; large < n; large++ {
			if small&large != small {
				continue
			}
			bigger := subset(large)
			after := ComputeRunnableSet(g, bigger, NewIDSet())
			for _, id := range before.Runnable {
				if _, settled := bigger[id]; settled {
					continue
				}
				if !slices.Contains(after.Runnable, id) {
					t.Fatalf("%s runnable with %b but not with %b", id, small, large)
				}
			}
		}
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		o      Outcome
		name   string
		failed bool
	}{
		{OutcomeCompleted, "completed", false},
		{OutcomeFailed, "failed", true},
		{OutcomeCanceled, "canceled", true},
		{OutcomeSkipped, "skipped", true},
		{Outcome(0), "unknown", false},
	}
	for _, tt := range tests {
		if tt.o.String() != tt.name {
			t.Errorf("expected %q, got %q", tt.name, tt.o.String())
		}
		if tt.o.Failed() != tt.failed {
			t.Errorf("%s: expected Failed()=%v", tt.name, tt.failed)
		}
	}
}
