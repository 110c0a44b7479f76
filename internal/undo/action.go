// Package undo keeps a bounded, linear history of reversible file operations.
package undo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind names an action variant. The string form is the wire "type" field.
type Kind string

const (
	KindRename      Kind = "rename"
	KindMove        Kind = "move"
	KindCreate      Kind = "create"
	KindBatchRename Kind = "batch-rename"
)

// Action is one reversible operation. The variants are Rename, Move, Create
// and BatchRename; each carries everything needed to reverse it.
type Action interface {
	Kind() Kind
	Info() Meta
	sealed()
}

// Meta identifies an action.
type Meta struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func newMeta() Meta {
	return Meta{ID: uuid.NewString(), Timestamp: time.Now()}
}

func (m Meta) Info() Meta { return m }

// ensure fills in a missing ID or timestamp.
func (m *Meta) ensure() {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
}

type Rename struct {
	Meta
	OldPath string `json:"oldPath"`
	NewPath string `json:"newPath"`
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
}

// MovedItem records where an item was and where it is now.
type MovedItem struct {
	OriginalPath string `json:"originalPath"`
	CurrentPath  string `json:"currentPath"`
}

type Move struct {
	Meta
	IsCopy         bool        `json:"isCopy"`
	Items          []MovedItem `json:"items"`
	DestinationDir string      `json:"destinationDir"`
}

// ItemType is what a Create made.
type ItemType string

const (
	ItemFile   ItemType = "file"
	ItemFolder ItemType = "folder"
)

type Create struct {
	Meta
	ItemType   ItemType `json:"itemType"`
	Path       string   `json:"path"`
	ParentPath string   `json:"parentPath"`
	Name       string   `json:"name"`
}

// PathPair is one rename inside a batch.
type PathPair struct {
	OldPath string `json:"oldPath"`
	NewPath string `json:"newPath"`
}

type BatchRename struct {
	Meta
	Operations []PathPair `json:"operations"`
}

func (Rename) Kind() Kind      { return KindRename }
func (Move) Kind() Kind        { return KindMove }
func (Create) Kind() Kind      { return KindCreate }
func (BatchRename) Kind() Kind { return KindBatchRename }

func (Rename) sealed()      {}
func (Move) sealed()        {}
func (Create) sealed()      {}
func (BatchRename) sealed() {}

// NewRename builds a Rename action with a fresh ID.
func NewRename(oldPath, newPath, oldName, newName string) Rename {
	return Rename{Meta: newMeta(), OldPath: oldPath, NewPath: newPath, OldName: oldName, NewName: newName}
}

// NewMove builds a Move (or copy, when isCopy is set) action.
func NewMove(isCopy bool, items []MovedItem, destinationDir string) Move {
	return Move{Meta: newMeta(), IsCopy: isCopy, Items: items, DestinationDir: destinationDir}
}

// NewCreate builds a Create action.
func NewCreate(itemType ItemType, path, parentPath, name string) Create {
	return Create{Meta: newMeta(), ItemType: itemType, Path: path, ParentPath: parentPath, Name: name}
}

// NewBatchRename builds a BatchRename action.
func NewBatchRename(ops []PathPair) BatchRename {
	return BatchRename{Meta: newMeta(), Operations: ops}
}

// Marshal encodes an action with its "type" tag.
func Marshal(a Action) ([]byte, error) {
	body, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"], _ = json.Marshal(a.Kind())
	return json.Marshal(fields)
}

// Unmarshal decodes a tagged action produced by Marshal or by a client.
func Unmarshal(data []byte) (Action, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	var a Action
	var err error
	switch head.Type {
	case KindRename:
		var v Rename
		err = json.Unmarshal(data, &v)
		v.ensure()
		a = v
	case KindMove:
		var v Move
		err = json.Unmarshal(data, &v)
		v.ensure()
		a = v
	case KindCreate:
		var v Create
		err = json.Unmarshal(data, &v)
		v.ensure()
		a = v
	case KindBatchRename:
		var v BatchRename
		err = json.Unmarshal(data, &v)
		v.ensure()
		a = v
	default:
		return nil, fmt.Errorf("unknown action type %q", head.Type)
	}
	if err != nil {
		return nil, err
	}
	if err := validate(a); err != nil {
		return nil, err
	}
	return a, nil
}

// validate checks that an action carries what its inverse needs.
func validate(a Action) error {
	switch v := a.(type) {
	case Rename:
		if v.OldPath == "" || v.NewPath == "" {
			return fmt.Errorf("rename action needs oldPath and newPath")
		}
	case Move:
		if len(v.Items) == 0 {
			return fmt.Errorf("move action has no items")
		}
		for _, it := range v.Items {
			if it.OriginalPath == "" || it.CurrentPath == "" {
				return fmt.Errorf("move item needs originalPath and currentPath")
			}
		}
	case Create:
		if v.Path == "" {
			return fmt.Errorf("create action needs path")
		}
	case BatchRename:
		if len(v.Operations) == 0 {
			return fmt.Errorf("batch-rename action has no operations")
		}
		for _, op := range v.Operations {
			if op.OldPath == "" || op.NewPath == "" {
				return fmt.Errorf("batch-rename operation needs oldPath and newPath")
			}
		}
	default:
		return fmt.Errorf("unknown action %T", a)
	}
	return nil
}
