package enums

// Role is the actor role carried in identity provider tokens. Values are
// lower case on the wire.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
)

var roles = []Role{RoleCustomer, RoleSeller}

func (r Role) String() string { return string(r) }
func (r Role) IsValid() bool  { return known(r, roles) }

func ParseRole(raw string) (Role, error) { return parse("role", raw, roles) }
