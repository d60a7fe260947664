package common

import "fmt"

type ChangeType uint8

const (
	ChangeAdd ChangeType = iota + 1
	ChangeUpdate
	ChangeRemove
)

func (c ChangeType) String() string {
	switch c {
	case ChangeAdd:
		return "add"
	case ChangeUpdate:
		return "update"
	case ChangeRemove:
		return "remove"
	}
	return fmt.Sprintf("unknown(%d)", uint8(c))
}

// Merge combines two pending changes of the same tile: remove wins over add,
// add wins over update.
func (c ChangeType) Merge(other ChangeType) ChangeType {
	if c == ChangeRemove || other == ChangeRemove {
		return ChangeRemove
	}
	if c == ChangeAdd || other == ChangeAdd {
		return ChangeAdd
	}
	return ChangeUpdate
}
