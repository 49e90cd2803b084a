package manager

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/buntdb"

	"github.com/hpcmsg/muscore/ref"
	"github.com/hpcmsg/muscore/wire"
)

// PortMeta mirrors spec.md §6's RegisterInstance.ports entry.
type PortMeta struct {
	Name     string       `json:"name"`
	Operator wire.Operator `json:"operator"`
}

// InstanceRecord is spec.md §3's InstanceRegistry entry: instance_name
// -> {locations, ports}.
type InstanceRecord struct {
	Name      string     `json:"name"`
	Locations []string   `json:"locations"`
	Ports     []PortMeta `json:"ports"`
}

// Registry stores InstanceRecords in an embedded, in-memory buntdb
// database, keyed "inst:<name>", so that "all concrete instances of
// kernel X" can be prefix-scanned with buntdb's AscendKeys
// (ByKernelPrefix) instead of a hand-rolled index, the role buntdb plays
// as the teacher's embedded indexed store. Server's request_peers
// handling looks each expected instance up with Get instead.
type Registry struct {
	db *buntdb.DB
}

func NewRegistry() (*Registry, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, err
	}
	return &Registry{db: db}, nil
}

func (r *Registry) Close() error { return r.db.Close() }

func instKey(name string) string { return "inst:" + name }

// ErrAlreadyRegistered is the registry's own sentinel-shaped error (not
// part of cmn's cross-process error-kind taxonomy: it never leaves the
// manager process, it only drives the RegisterInstance wire-status
// mapping in rpcserver.go).
type ErrAlreadyRegistered struct{ Name string }

func (e *ErrAlreadyRegistered) Error() string { return fmt.Sprintf("instance %q is already registered", e.Name) }

// Register inserts a new InstanceRecord. Fails with *ErrAlreadyRegistered
// if name is already present (spec.md §4.3 register_instance / §8
// "Double register" scenario).
func (r *Registry) Register(rec InstanceRecord) error {
	data, err := jsoniter.Marshal(rec)
	if err != nil {
		return err
	}
	return r.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Get(instKey(rec.Name)); err == nil {
			return &ErrAlreadyRegistered{Name: rec.Name}
		} else if err != buntdb.ErrNotFound {
			return err
		}
		_, _, err = tx.Set(instKey(rec.Name), string(data), nil)
		return err
	})
}

// Deregister removes an entry; idempotent (spec.md §4.3).
func (r *Registry) Deregister(name string) error {
	return r.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(instKey(name))
		if err != nil && err != buntdb.ErrNotFound {
			return err
		}
		return nil
	})
}

// Get returns the record for name, if registered.
func (r *Registry) Get(name string) (InstanceRecord, bool) {
	var rec InstanceRecord
	var found bool
	_ = r.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(instKey(name))
		if err != nil {
			return nil
		}
		if jsoniter.UnmarshalFromString(v, &rec) == nil {
			found = true
		}
		return nil
	})
	return rec, found
}

// ByKernelPrefix returns every registered instance whose name has the
// given kernel as its Head() (e.g. kernel "micro" matches "micro[3][7]"
// as well as the scalar instance "micro" itself). Nothing in the module
// calls it yet; request_peers uses Get per expected instance name.
func (r *Registry) ByKernelPrefix(kernel string) []InstanceRecord {
	var out []InstanceRecord
	_ = r.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(instKey(kernel)+"*", func(key, value string) bool {
			name := key[len("inst:"):]
			head, err := ref.Parse(name)
			if err != nil {
				return true
			}
			if head.Head().String() != kernel {
				return true
			}
			var rec InstanceRecord
			if jsoniter.UnmarshalFromString(value, &rec) == nil {
				out = append(out, rec)
			}
			return true
		})
	})
	return out
}
