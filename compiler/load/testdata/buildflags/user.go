package buildflags

//dao:repository
type UserStore interface {
	//dao:query SELECT count(*) FROM users
	Count() (int64, error)
}
