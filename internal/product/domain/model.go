package domain

// Product is the storefront catalogue row the affiliate engine reads.
type Product struct {
	ID       int64   `json:"id" gorm:"primaryKey"`
	Name     string  `json:"name" gorm:"column:name"`
	Price    float64 `json:"price" gorm:"column:price"`
	ImageURL *string `json:"image_url,omitempty" gorm:"column:image_url"`
}

func (Product) TableName() string { return "products" }
