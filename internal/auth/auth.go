// Package auth gates the admin command surface.
package auth

// Authorizer decides whether an actor may run admin commands. Listing,
// trading, liquidation, and claims are permissionless and never consult it.
type Authorizer interface {
	IsAuthorized(actor string) bool
}

// StaticList authorizes a fixed set of addresses.
type StaticList struct {
	admins map[string]struct{}
}

func NewStaticList(admins ...string) *StaticList {
	s := &StaticList{admins: make(map[string]struct{}, len(admins))}
	for _, a := range admins {
		s.admins[a] = struct{}{}
	}
	return s
}

func (s *StaticList) IsAuthorized(actor string) bool {
	_, ok := s.admins[actor]
	return ok
}

// AllowAll is used by tests that are not exercising authorization.
type AllowAll struct{}

func (AllowAll) IsAuthorized(string) bool { return true }
