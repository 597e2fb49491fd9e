package domain

const (
	RoleSuperAdmin = "super_admin"
	RoleShopAdmin  = "shop_admin"
	RoleCashier    = "cashier"
)

type User struct {
	ID        int64  `json:"id" db:"id"`
	Username  string `json:"username" db:"username"`
	Email     string `json:"email" db:"email"`
	Password  string `json:"password,omitempty" db:"password"`
	FullName  string `json:"full_name" db:"full_name"`
	Role      string `json:"role" db:"role"`
	ShopID    *int64 `json:"shop_id,omitempty" db:"shop_id"`
	IsActive  bool   `json:"is_active" db:"is_active"`
	CreatedAt string `json:"created_at,omitempty" db:"created_at"`
}
