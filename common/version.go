package common

// Version identifies a state of a navmesh or of the geometry it was built
// from.
type Version struct {
	Generation uint64
	Revision   uint64
}

// Less orders versions by generation then revision.
func (v Version) Less(o Version) bool {
	if v.Generation != o.Generation {
		return v.Generation < o.Generation
	}
	return v.Revision < o.Revision
}
