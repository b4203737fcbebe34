package jobs

import (
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/armaan1620/tsh/internal/errors"
)

// DefaultCapacity is the number of job slots when none is configured.
const DefaultCapacity = 16

// State is the state of a job.
type State int

const (
	Undefined State = iota
	Foreground
	Background
	Stopped
)

func (s State) String() string {
	switch s {
	case Foreground:
		return "Foreground"
	case Background:
		return "Running"
	case Stopped:
		return "Stopped"
	default:
		return "Undefined"
	}
}

// Job is one pipeline known to the shell.
type Job struct {
	ID    int // job id, smallest unused value at insertion
	PGID  int // process group id, also the pid of the group leader
	State State
	Cmd   string // command line as typed

	// members are the pids still alive in the group.
	members []int
}

// Members returns the pids of the job's processes that haven't been reaped.
func (j Job) Members() []int {
	return slices.Clone(j.members)
}

func (j Job) String() string {
	return fmt.Sprintf("[%d] (%d) %s %s", j.ID, j.PGID, j.State, j.Cmd)
}

// Table is a fixed capacity job registry. It is shared between the
// goroutine evaluating command lines and the signal coordinator; every
// mutation wakes goroutines blocked in WaitForeground.
type Table struct {
	mu    sync.Mutex
	cond  *sync.Cond
	slots []Job // PGID == 0 marks a free slot
}

// NewTable returns an empty table with the given number of slots.
func NewTable(capacity int) *Table {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	t := &Table{slots: make([]Job, capacity)}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Capacity returns the number of slots.
func (t *Table) Capacity() int {
	return len(t.slots)
}

// Len returns the number of active jobs.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, j := range t.slots {
		if j.PGID != 0 {
			n++
		}
	}
	return n
}

// Full reports whether Add would fail for lack of a slot.
func (t *Table) Full() bool {
	return t.Len() == t.Capacity()
}

// Add registers a job for the group pgid. members lists every pid in the
// group; the leader is assumed when it is empty. The new job gets the
// smallest unused job id.
func (t *Table) Add(pgid int, state State, cmd string, members ...int) (Job, error) {
	if pgid < 1 {
		return Job{}, fmt.Errorf("invalid process group id %d", pgid)
	}
	if state == Undefined {
		return Job{}, fmt.Errorf("invalid job state")
	}
	if len(members) == 0 {
		members = []int{pgid}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if state == Foreground && t.foregroundLocked() != nil {
		return Job{}, fmt.Errorf("a foreground job already exists")
	}
	id := t.freeIDLocked()
	if id == 0 {
		return Job{}, &errors.JobTableFullError{Capacity: len(t.slots)}
	}
	for i := range t.slots {
		if t.slots[i].PGID == 0 {
			t.slots[i] = Job{
				ID:      id,
				PGID:    pgid,
				State:   state,
				Cmd:     cmd,
				members: slices.Clone(members),
			}
			t.cond.Broadcast()
			return snapshot(&t.slots[i]), nil
		}
	}
	return Job{}, &errors.JobTableFullError{Capacity: len(t.slots)}
}

func (t *Table) freeIDLocked() int {
	taken := make([]bool, len(t.slots)+1)
	for _, j := range t.slots {
		if j.ID != 0 {
			taken[j.ID] = true
		}
	}
	for id := 1; id <= len(t.slots); id++ {
		if !taken[id] {
			return id
		}
	}
	return 0
}

// Remove deletes the job for pgid. Removing an absent job is a no-op.
func (t *Table) Remove(pgid int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	j := t.byPGIDLocked(pgid)
	if j == nil {
		return false
	}
	*j = Job{}
	t.cond.Broadcast()
	return true
}

// FindByPGID returns the job for the given process group.
func (t *Table) FindByPGID(pgid int) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if j := t.byPGIDLocked(pgid); j != nil {
		return snapshot(j), true
	}
	return Job{}, false
}

// FindByID returns the job with the given job id.
func (t *Table) FindByID(id int) (Job, bool) {
	if id < 1 {
		return Job{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.slots {
		if t.slots[i].ID == id {
			return snapshot(&t.slots[i]), true
		}
	}
	return Job{}, false
}

// FindByMember returns the job whose group contains pid.
func (t *Table) FindByMember(pid int) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if j := t.byMemberLocked(pid); j != nil {
		return snapshot(j), true
	}
	return Job{}, false
}

// Foreground returns the foreground job, if any.
func (t *Table) Foreground() (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if j := t.foregroundLocked(); j != nil {
		return snapshot(j), true
	}
	return Job{}, false
}

// SetState changes the state of the job for pgid. At most one job may be in
// the foreground.
func (t *Table) SetState(pgid int, state State) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	j := t.byPGIDLocked(pgid)
	if j == nil {
		return fmt.Errorf("no job for process group %d", pgid)
	}
	if state == Foreground {
		if fg := t.foregroundLocked(); fg != nil && fg.PGID != pgid {
			return fmt.Errorf("job [%d] is already in the foreground", fg.ID)
		}
	}
	j.State = state
	t.cond.Broadcast()
	return nil
}

// Exited records that the member pid has been reaped. The job is removed
// once no member is left; the returned job is the state after the update.
func (t *Table) Exited(pid int) (job Job, removed bool, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	j := t.byMemberLocked(pid)
	if j == nil {
		return Job{}, false, false
	}
	j.members = slices.DeleteFunc(j.members, func(m int) bool { return m == pid })
	job = snapshot(j)
	if len(j.members) == 0 {
		*j = Job{}
		removed = true
	}
	t.cond.Broadcast()
	return job, removed, true
}

// WaitForeground blocks until pgid is no longer the foreground job: it
// terminated, stopped, or was moved to the background.
func (t *Table) WaitForeground(pgid int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		fg := t.foregroundLocked()
		if fg == nil || fg.PGID != pgid {
			return
		}
		t.cond.Wait()
	}
}

// List yields one formatted line per active job, in slot order. Each
// iteration takes a fresh look at the table.
func (t *Table) List() iter.Seq[string] {
	return func(yield func(string) bool) {
		for i := 0; i < len(t.slots); i++ {
			t.mu.Lock()
			j := t.slots[i]
			t.mu.Unlock()

			if j.PGID == 0 {
				continue
			}
			if !yield(j.String()) {
				return
			}
		}
	}
}

// Jobs returns a copy of every active job.
func (t *Table) Jobs() []Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Job
	for i := range t.slots {
		if t.slots[i].PGID != 0 {
			out = append(out, snapshot(&t.slots[i]))
		}
	}
	return out
}

// snapshot copies a slot so callers never share its member list.
func snapshot(j *Job) Job {
	out := *j
	out.members = slices.Clone(j.members)
	return out
}

func (t *Table) byPGIDLocked(pgid int) *Job {
	if pgid < 1 {
		return nil
	}
	for i := range t.slots {
		if t.slots[i].PGID == pgid {
			return &t.slots[i]
		}
	}
	return nil
}

func (t *Table) byMemberLocked(pid int) *Job {
	if pid < 1 {
		return nil
	}
	for i := range t.slots {
		if t.slots[i].PGID != 0 && slices.Contains(t.slots[i].members, pid) {
			return &t.slots[i]
		}
	}
	return nil
}

func (t *Table) foregroundLocked() *Job {
	for i := range t.slots {
		if t.slots[i].PGID != 0 && t.slots[i].State == Foreground {
			return &t.slots[i]
		}
	}
	return nil
}
