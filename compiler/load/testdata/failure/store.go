// Package failure declares malformed directives.
package failure

type Row struct {
	ID int64
}

//dao:repository
type NotAnInterface struct{}

//dao:repository
//dao:bogus
type Broken interface {
	//dao:query SELECT 1
	//dao:exec DELETE FROM t
	Conflict() error

	NoSQL() error

	//dao:query SELECT 1
	//dao:nullable missing
	//dao:use x
	//dao:config limit
	BadTargets(id int64) (int64, error)

	//dao:query
	Empty() error
}

//dao:encoder a b
func Encode(r Row) int64 { return r.ID }
