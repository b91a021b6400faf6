package models

import "time"

// Product 商品（只读视角，由主站商品服务维护）
type Product struct {
	ID         int64     `db:"id" json:"id"`
	CategoryID int64     `db:"category_id" json:"category_id"`
	Name       string    `db:"name" json:"name"`
	Price      float64   `db:"price" json:"price"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Category 商品类目
type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
