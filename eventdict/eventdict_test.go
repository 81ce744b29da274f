package eventdict

import "testing"

func TestWellKnownIDsAreFixed(t *testing.T) {
	d := New()
	cases := []struct {
		id   ID
		name string
	}{
		{CPUFrequency, "cpu_frequency"},
		{CPUIdle, "cpu_idle"},
		{SchedMigrateTask, "sched_migrate_task"},
		{SchedSwitch, "sched_switch"},
		{SchedWakeup, "sched_wakeup"},
		{SchedWakeupNew, "sched_wakeup_new"},
		{SchedWaking, "sched_waking"},
		{SchedProcessFork, "sched_process_fork"},
		{SchedProcessExit, "sched_process_exit"},
		{IRQHandlerEntry, "irq_handler_entry"},
		{IRQHandlerExit, "irq_handler_exit"},
	}
	for _, c := range cases {
		got, ok := d.Lookup(c.id)
		if !ok || got != c.name {
			t.Errorf("Lookup(%d) = (%q, %v), want (%q, true)", c.id, got, ok, c.name)
		}
		id, ok := d.IDFor(c.name)
		if !ok || id != c.id {
			t.Errorf("IDFor(%q) = (%d, %v), want (%d, true)", c.name, id, ok, c.id)
		}
	}
}

func TestInternOrAssignAssignsFreshIDs(t *testing.T) {
	d := New()
	before := d.MaxID()
	id1 := d.InternOrAssign("workqueue_execute_start")
	if id1 <= before {
		t.Errorf("InternOrAssign() new id %d not greater than previous max %d", id1, before)
	}
	id2 := d.InternOrAssign("workqueue_execute_start")
	if id1 != id2 {
		t.Errorf("InternOrAssign() on repeat name returned %d, want %d", id2, id1)
	}
	if d.MaxID() != id1 {
		t.Errorf("MaxID() = %d, want %d", d.MaxID(), id1)
	}
}
