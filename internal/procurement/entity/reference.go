package entity

import "time"

// Part 备件主数据. Owned by the master-data module; read-only here.
type Part struct {
	ID           string    `json:"id" gorm:"primaryKey;size:32"`
	Code         string    `json:"code" gorm:"size:50;uniqueIndex"`
	Name         string    `json:"name" gorm:"size:200;not null"`
	SupplierName string    `json:"supplier_name" gorm:"size:200;index"`
	CategoryName string    `json:"category_name" gorm:"size:100"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Part) TableName() string {
	return "parts"
}

// User 用户主数据
type User struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	Name       string    `json:"name" gorm:"size:100;not null"`
	Email      string    `json:"email" gorm:"size:200"`
	EmployeeID string    `json:"employee_id" gorm:"size:50"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
