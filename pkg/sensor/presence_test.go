// Copyright (C) 2025 mmu-sensors-go authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package sensor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func fullPolicy(name string) EventPolicy {
	return EventPolicy{
		EventInsert: InsertCommand + " SENSOR=" + name,
		EventRemove: RemoveCommand + " SENSOR=" + name,
		EventRunout: RunoutCommand + " SENSOR=" + name,
		EventClog:   ClogCommand + " SENSOR=" + name,
		EventTangle: TangleCommand + " SENSOR=" + name,
	}
}

func newTestHelper(t *testing.T, policy EventPolicy) (*RunoutHelper, *fakeSched, *fakeScripts, *fakePrint, *fakePause) {
	t.Helper()
	sched := newFakeSched()
	scripts := &fakeScripts{}
	printing := &fakePrint{}
	pause := &fakePause{}
	h := NewRunoutHelper(RunoutHelperConfig{
		Name:                "toolhead",
		EventDelay:          0.5,
		Policy:              policy,
		InsertRemoveInPrint: true,
	}, sched, scripts, printing, pause, nil)
	return h, sched, scripts, printing, pause
}

func TestHelperSuppressedBeforeReady(t *testing.T) {
	h, sched, scripts, _, _ := newTestHelper(t, fullPolicy("toolhead"))

	h.NoteFilamentPresent(1.0, true)
	require.Equal(t, 0, sched.Pending(), "no dispatch before ready")
	require.True(t, h.FilamentPresent(), "presence still tracks")

	// During warm-up the window is still closed.
	h.HandleReady(10.0)
	h.NoteFilamentPresent(11.0, false)
	require.Equal(t, 0, sched.Pending())

	// After warm-up events flow.
	h.NoteFilamentPresent(12.5, true)
	require.Equal(t, 1, sched.Pending())
	sched.RunPending()
	require.Equal(t, []string{"__MMU_SENSOR_INSERT SENSOR=toolhead EVENTTIME=12.5"},
		scripts.Commands())
}

func TestHelperIdempotentReports(t *testing.T) {
	h, sched, _, _, _ := newTestHelper(t, fullPolicy("toolhead"))
	h.HandleReady(0)

	h.NoteFilamentPresent(5.0, true)
	require.Equal(t, 1, sched.Pending())
	sched.RunPending()

	// Same value again: no edge, nothing dispatched.
	sched.SetTime(10.0)
	h.NoteFilamentPresent(10.0, true)
	h.NoteFilamentPresent(10.1, true)
	require.Equal(t, 0, sched.Pending())
}

func TestHelperRemoveWhenNotPrinting(t *testing.T) {
	h, sched, scripts, printing, pause := newTestHelper(t, fullPolicy("toolhead"))
	h.HandleReady(0)
	printing.Set(false)

	h.NoteFilamentPresent(5.0, true)
	sched.RunPending()
	sched.SetTime(6.0)
	h.NoteFilamentPresent(6.0, false)
	require.Equal(t, 1, sched.Pending())
	sched.RunPending()

	cmds := scripts.Commands()
	require.Len(t, cmds, 2)
	require.Equal(t, "__MMU_SENSOR_REMOVE SENSOR=toolhead EVENTTIME=6", cmds[1])
	require.Equal(t, 0, pause.Count(), "remove never pauses")
}

func TestHelperRunoutWhenPrinting(t *testing.T) {
	h, sched, scripts, printing, pause := newTestHelper(t, fullPolicy("toolhead"))
	h.HandleReady(0)

	h.NoteFilamentPresent(5.0, true)
	sched.RunPending()
	sched.SetTime(6.0)
	printing.Set(true)

	h.NoteFilamentPresent(6.0, false)
	sched.RunPending()

	cmds := scripts.Commands()
	require.Len(t, cmds, 2)
	require.Equal(t, "__MMU_SENSOR_RUNOUT SENSOR=toolhead EVENTTIME=6", cmds[1])
	require.Equal(t, 1, pause.Count(), "runout pauses before the script")
}

func TestHelperRunoutSuspension(t *testing.T) {
	h, sched, scripts, printing, _ := newTestHelper(t, fullPolicy("toolhead"))
	h.HandleReady(0)
	printing.Set(true)

	h.NoteFilamentPresent(5.0, true)
	sched.RunPending()
	sched.SetTime(6.0)

	// Suspended runout falls through to remove while printing.
	h.EnableRunout(false)
	h.NoteFilamentPresent(6.0, false)
	sched.RunPending()

	cmds := scripts.Commands()
	require.Len(t, cmds, 2)
	require.Equal(t, "__MMU_SENSOR_REMOVE SENSOR=toolhead EVENTTIME=6", cmds[1])

	// Restoring re-enables runout.
	sched.SetTime(7.0)
	h.NoteFilamentPresent(7.0, true)
	sched.RunPending()
	sched.SetTime(8.0)
	h.EnableRunout(true)
	h.NoteFilamentPresent(8.0, false)
	sched.RunPending()
	cmds = scripts.Commands()
	require.Equal(t, "__MMU_SENSOR_RUNOUT SENSOR=toolhead EVENTTIME=8", cmds[len(cmds)-1])
}

func TestHelperSingleFlight(t *testing.T) {
	h, sched, scripts, _, _ := newTestHelper(t, fullPolicy("toolhead"))
	h.HandleReady(0)

	h.NoteFilamentPresent(5.0, true)
	require.Equal(t, 1, sched.Pending())

	// Further edges while the handler is still queued are absorbed.
	h.NoteFilamentPresent(5.1, false)
	h.NoteFilamentPresent(5.2, true)
	require.Equal(t, 1, sched.Pending())

	sched.SetTime(5.3)
	sched.RunPending()
	require.Len(t, scripts.Commands(), 1)

	// Until the event delay elapses the guard stays closed.
	h.NoteFilamentPresent(5.4, false)
	require.Equal(t, 0, sched.Pending())

	// After the delay a fresh edge dispatches again.
	sched.SetTime(6.0)
	h.NoteFilamentPresent(6.0, true)
	require.Equal(t, 1, sched.Pending())
}

func TestHelperScriptErrorRearmsGuard(t *testing.T) {
	h, sched, scripts, _, _ := newTestHelper(t, fullPolicy("toolhead"))
	h.HandleReady(0)
	scripts.err = errors.New("executor unavailable")

	h.NoteFilamentPresent(5.0, true)
	sched.SetTime(5.0)
	sched.RunPending()
	require.Len(t, scripts.Commands(), 1)

	// The failure did not wedge the guard.
	sched.SetTime(6.0)
	h.NoteFilamentPresent(6.0, false)
	require.Equal(t, 1, sched.Pending())
}

func TestHelperMissingPolicyAbsorbed(t *testing.T) {
	// Runout-only policy: insert and remove edges do nothing.
	h, sched, scripts, printing, _ := newTestHelper(t, EventPolicy{
		EventRunout: RunoutCommand + " SENSOR=mmu_gate",
	})
	h.HandleReady(0)

	h.NoteFilamentPresent(5.0, true)
	require.Equal(t, 0, sched.Pending())
	printing.Set(false)
	h.NoteFilamentPresent(6.0, false)
	require.Equal(t, 0, sched.Pending())

	printing.Set(true)
	h.NoteFilamentPresent(7.0, true)
	h.NoteFilamentPresent(8.0, false)
	require.Equal(t, 1, sched.Pending())
	sched.SetTime(8.0)
	sched.RunPending()
	require.Equal(t, []string{"__MMU_SENSOR_RUNOUT SENSOR=mmu_gate EVENTTIME=8"},
		scripts.Commands())
}

func TestHelperDisabledSensor(t *testing.T) {
	h, sched, _, _, _ := newTestHelper(t, fullPolicy("toolhead"))
	h.HandleReady(0)
	h.SetEnabled(false)

	h.NoteFilamentPresent(5.0, true)
	require.Equal(t, 0, sched.Pending())
	require.True(t, h.FilamentPresent(), "presence tracks while disabled")

	h.SetEnabled(true)
	h.NoteFilamentPresent(6.0, false)
	require.Equal(t, 1, sched.Pending())
}

func TestHelperClogTangle(t *testing.T) {
	h, sched, scripts, _, pause := newTestHelper(t, fullPolicy("toolhead"))

	// Clog before ready is suppressed like any other event.
	h.NoteClogTangle(EventClog, 1.0)
	require.Equal(t, 0, sched.Pending())

	h.HandleReady(0)
	h.NoteClogTangle(EventClog, 5.0)
	require.Equal(t, 1, sched.Pending())

	// Single-flight covers injected events too.
	h.NoteClogTangle(EventTangle, 5.1)
	require.Equal(t, 1, sched.Pending())

	sched.SetTime(5.2)
	sched.RunPending()
	require.Equal(t, []string{"__MMU_SENSOR_CLOG SENSOR=toolhead EVENTTIME=5"},
		scripts.Commands())
	require.Equal(t, 1, pause.Count())

	// Unknown kinds are ignored outright.
	sched.SetTime(6.0)
	h.NoteClogTangle(EventInsert, 6.0)
	require.Equal(t, 0, sched.Pending())
}

func TestHelperButtonFeedback(t *testing.T) {
	sched := newFakeSched()
	var reports []bool
	h := NewRunoutHelper(RunoutHelperConfig{
		Name: "sync_feedback_tension",
		ButtonHandler: func(eventtime float64, name string, present bool, h *RunoutHelper) {
			reports = append(reports, present)
		},
	}, sched, &fakeScripts{}, &fakePrint{}, &fakePause{}, nil)

	// Feedback fires on every report, edges or not, even before ready.
	h.NoteFilamentPresent(1.0, true)
	h.NoteFilamentPresent(2.0, true)
	h.NoteFilamentPresent(3.0, false)
	require.Equal(t, []bool{true, true, false}, reports)

	// Suspension stops it; restoring resumes it.
	h.EnableButtonFeedback(false)
	h.NoteFilamentPresent(4.0, true)
	require.Len(t, reports, 3)
	h.EnableButtonFeedback(true)
	h.NoteFilamentPresent(5.0, false)
	require.Equal(t, []bool{true, true, false, false}, reports)
}

func TestSuspendStateString(t *testing.T) {
	require.Equal(t, "unset", SuspendUnset.String())
	require.Equal(t, "suspended", Suspended.String())
	require.Equal(t, "active", SuspendActive.String())
}
