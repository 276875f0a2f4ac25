//go:build !hidegroups

package buildflags

//dao:repository
type GroupStore interface {
	//dao:query SELECT count(*) FROM groups
	Count() (int64, error)
}
