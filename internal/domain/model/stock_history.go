package model

import "time"

//在庫調整の履歴（追記のみ。更新・削除はしない）

type StockHistory struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MedicineID   int64     `gorm:"not null;index" json:"medicine_id"`
	ChangeAmount int64     `gorm:"not null" json:"change_amount"`
	Reason       string    `gorm:"type:varchar(255)" json:"reason,omitempty"`
	ChangedBy    string    `gorm:"type:varchar(255)" json:"changed_by,omitempty"`
	ChangedAt    time.Time `gorm:"not null;autoCreateTime;index" json:"changed_at"`
}
