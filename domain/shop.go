package domain

type Shop struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Code      string `db:"code" json:"code"`
	Address   string `db:"address" json:"address"`
	Phone     string `db:"phone" json:"phone"`
	IsActive  bool   `db:"is_active" json:"is_active"`
	CreatedAt string `db:"created_at" json:"created_at"`
}
