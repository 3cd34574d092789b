package models

import "time"

type Role string

const (
	RoleFarmer   Role = "farmer"
	RoleIndustry Role = "industry"
	RoleBuyer    Role = "buyer"
	RoleRecycler Role = "recycler"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleIndustry, RoleBuyer, RoleRecycler, RoleAdmin:
		return true
	}
	return false
}

// IsSeller reports whether the role may publish catalog listings.
func (r Role) IsSeller() bool {
	return r == RoleFarmer || r == RoleIndustry || r == RoleRecycler
}

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
