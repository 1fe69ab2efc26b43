package task

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/san-kum/herdsim/internal/agent"
	"github.com/san-kum/herdsim/internal/geom"
)

type positions map[agent.BodyID]geom.Vec

func (p positions) Position(b agent.BodyID) geom.Vec { return p[b] }

type journal struct{ events []string }

type journalListener struct {
	name string
	j    *journal
}

func (l *journalListener) OnBegin() { l.j.events = append(l.j.events, l.name+":begin") }
func (l *journalListener) OnReset() { l.j.events = append(l.j.events, l.name+":reset") }
func (l *journalListener) OnEnd() { l.j.events = append(l.j.events, l.name+":end") }

type journalIndicator struct{ j *journal }

func (i *journalIndicator) SetContained(c bool) {
	i.j.events = append(i.j.events, fmt.Sprintf("indicator:%v", c))
}

func ring(reg *agent.Registry, pos positions, radius float64, n int) {
	dirs := []geom.Vec{{X: 1}, {X: -1}, {Z: 1}, {Z: -1}}
	for i := 0; i < n; i++ {
		d := dirs[i%len(dirs)]
		a := reg.Add(fmt.Sprintf("TA%d", i), agent.RoleTarget, agent.BodyID(reg.Len()), geom.Vec{})
		pos[a.Body] = geom.Vec{X: d.X * radius, Y: 0.2, Z: d.Z * radius}
	}
}

func TestContainmentScenario(t *testing.T) {
	tests := []struct {
		radius float64
		want   bool
	}{
		{0.5, true},
		{0.72, true},
		{0.9, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("radius %.2f", tt.radius), func(t *testing.T) {
			reg := agent.NewRegistry()
			pos := positions{}
			ring(reg, pos, tt.radius, 4)

			m := NewMonitor(reg, pos, DefaultContainmentThreshold)
			if got := m.Evaluate(); got != tt.want {
				t.Errorf("expected contained=%v, got %v (spread %f)", tt.want, got, m.Spread())
			}
			if m.Centroid() != (geom.Vec{}) {
				t.Errorf("expected centroid at origin, got %v", m.Centroid())
			}
		})
	}
}

func TestContainmentIdempotent(t *testing.T) {
	reg := agent.NewRegistry()
	pos := positions{}
	ring(reg, pos, 0.8, 3)
	m := NewMonitor(reg, pos, 0)

	first := m.Evaluate()
	c1, s1 := m.Centroid(), m.Spread()
	second := m.Evaluate()
	if first != second || c1 != m.Centroid() || s1 != m.Spread() {
		t.Error("evaluating twice on the same positions must agree")
	}
}

func TestContainmentNoTargets(t *testing.T) {
	m := NewMonitor(agent.NewRegistry(), positions{}, 0)
	if !m.Evaluate() {
		t.Error("an empty flock is contained")
	}
	if m.Centroid() != (geom.Vec{}) {
		t.Error("empty flock centroid is the origin")
	}
}

func TestMonitorTickOnlyWhenRunning(t *testing.T) {
	reg := agent.NewRegistry()
	pos := positions{}
	ring(reg, pos, 2, 2)
	m := NewMonitor(reg, pos, 0)

	m.Tick()
	if m.Spread() != 0 {
		t.Error("a stopped monitor must not evaluate")
	}
	m.Start()
	if m.Spread() != 2 {
		t.Errorf("start evaluates immediately, spread %f", m.Spread())
	}
	m.Stop()
	pos[0] = geom.Vec{X: 5}
	m.Tick()
	if m.Spread() != 2 {
		t.Error("stopped monitor should keep its last result")
	}
}

func newJournaledTask() (*Task, *journal) {
	j := &journal{}
	reg := agent.NewRegistry()
	pos := positions{}
	ring(reg, pos, 0.1, 2)
	tk := New(NewMonitor(reg, pos, 0), &journalIndicator{j: j}, nil)
	tk.Subscribe(&journalListener{name: "a", j: j})
	tk.Subscribe(&journalListener{name: "b", j: j})
	return tk, j
}

func TestBeginOrdering(t *testing.T) {
	tk, j := newJournaledTask()
	tk.Begin()

	want := []string{"indicator:false", "a:reset", "b:reset", "indicator:true", "a:begin", "b:begin"}
	if !reflect.DeepEqual(j.events, want) {
		t.Errorf("expected %v, got %v", want, j.events)
	}
	if !tk.Active() || !tk.Monitor().Running() {
		t.Error("begin should activate the task and its monitor")
	}
}

func TestEndResetsBeforeEnding(t *testing.T) {
	tk, j := newJournaledTask()
	flushed := 0
	tk.OnEnd(func() {
		flushed++
		j.events = append(j.events, "hook")
	})
	tk.Begin()
	j.events = nil

	tk.End()
	want := []string{"indicator:false", "a:reset", "b:reset", "a:end", "b:end", "hook"}
	if !reflect.DeepEqual(j.events, want) {
		t.Errorf("expected %v, got %v", want, j.events)
	}
	if tk.Active() || tk.Monitor().Running() {
		t.Error("end should deactivate the task and stop the monitor")
	}
	if flushed != 1 {
		t.Errorf("expected one end hook call, got %d", flushed)
	}
}

func TestReentrantBeginResets(t *testing.T) {
	tk, j := newJournaledTask()
	tk.Begin()
	j.events = nil
	tk.Begin()

	if len(j.events) < 3 || j.events[1] != "a:reset" {
		t.Errorf("second begin must reset first, got %v", j.events)
	}
}

func TestToggle(t *testing.T) {
	tk, _ := newJournaledTask()
	tk.Toggle()
	if !tk.Active() {
		t.Fatal("toggle should begin an idle task")
	}
	tk.Toggle()
	if tk.Active() {
		t.Fatal("toggle should end an active task")
	}
}

func TestEndEarlyFlag(t *testing.T) {
	tk, _ := newJournaledTask()
	tk.Begin()
	tk.RequestEndEarly("TA0 left the field")
	tk.RequestEndEarly("TA1 left the field")

	ok, reason := tk.EndEarly()
	if !ok || reason != "TA0 left the field" {
		t.Errorf("expected first reason kept, got %v %q", ok, reason)
	}

	tk.Begin()
	if ok, _ := tk.EndEarly(); ok {
		t.Error("begin clears the early-end flag")
	}
}

func TestUnsubscribe(t *testing.T) {
	tk, j := newJournaledTask()
	extra := &journalListener{name: "c", j: j}
	tk.Subscribe(extra)
	tk.Unsubscribe(extra)
	tk.Reset()

	for _, e := range j.events {
		if e == "c:reset" {
			t.Error("unsubscribed listener was notified")
		}
	}
	if tk.Len() != 2 {
		t.Errorf("expected 2 listeners, got %d", tk.Len())
	}
}

func TestNilIndicatorDegrades(t *testing.T) {
	tk := New(NewMonitor(agent.NewRegistry(), positions{}, 0), nil, nil)
	tk.Begin()
	tk.End()
}
