package process

import (
	"fmt"
	"sort"

	memdb "github.com/hashicorp/go-memdb"
)

// Pid identifies a process within one run. Pids start at 1.
type Pid int64

type State string

const (
	Registered State = "registered"
	Running    State = "running"
	Suspended  State = "suspended"
	Completed  State = "completed"
	Crashed    State = "crashed"
)

// Info is the row kept for every process. Rows are replaced, never mutated
// in place.
type Info struct {
	Pid      Pid
	Parent   Pid
	Function string
	State    State
	// Reason says what a suspended process waits on, or why it crashed.
	Reason string
}

const processTable = "processes"

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		processTable: {
			Name: processTable,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.IntFieldIndex{Field: "Pid"},
				},
				"state": {
					Name:    "state",
					Indexer: &memdb.StringFieldIndex{Field: "State"},
				},
			},
		},
	},
}

// Table is the transactional process table of a run.
type Table struct {
	db *memdb.MemDB
}

func NewTable() (*Table, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, err
	}
	return &Table{db: db}, nil
}

func (t *Table) insert(info Info) error {
	txn := t.db.Txn(true)
	defer txn.Abort()

	row := info
	if err := txn.Insert(processTable, &row); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// Get returns a copy of the row for pid.
func (t *Table) Get(pid Pid) (Info, bool) {
	txn := t.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(processTable, "id", pid)
	if err != nil || raw == nil {
		return Info{}, false
	}
	return *raw.(*Info), true
}

// Transition moves pid to state. Unknown pids are an error.
func (t *Table) Transition(pid Pid, state State, reason string) error {
	txn := t.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(processTable, "id", pid)
	if err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("Process %d not registered", pid)
	}
	row := *raw.(*Info)
	row.State = state
	row.Reason = reason
	if err := txn.Insert(processTable, &row); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// InState lists the processes currently in state, ordered by pid.
func (t *Table) InState(state State) []Info {
	txn := t.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(processTable, "state", string(state))
	if err != nil {
		return nil
	}
	var out []Info
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, *raw.(*Info))
	}
	sortByPid(out)
	return out
}

// All lists every process of the run, ordered by pid.
func (t *Table) All() []Info {
	txn := t.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(processTable, "id")
	if err != nil {
		return nil
	}
	var out []Info
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, *raw.(*Info))
	}
	return out
}

func sortByPid(infos []Info) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].Pid < infos[j].Pid })
}
