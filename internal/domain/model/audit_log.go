package model

import "time"

// 在庫調整、医薬品マスタ更新など。
type AuditAction string

const (
	//在庫を調整した操作。
	AuditActionAdjustStock AuditAction = "ADJUST_STOCK"
	//医薬品マスタを作成した操作。
	AuditActionCreateMedicine AuditAction = "CREATE_MEDICINE"
	//医薬品マスタを更新した操作。
	AuditActionUpdateMedicine AuditAction = "UPDATE_MEDICINE"
	//医薬品マスタを削除した操作。
	AuditActionDeleteMedicine AuditAction = "DELETE_MEDICINE"
)

// 何に対する操作か
type AuditResourceType string

const (
	//医薬品に対する操作。
	AuditResourceMedicine AuditResourceType = "medicine"

	//ユーザーに対する操作。
	AuditResourceUser AuditResourceType = "user"
)

// 監査ログ（管理者操作ログ）。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	//IDは監査ログの主キー
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//操作したユーザー（主に管理者）のID。
	ActorUserID int64 `gorm:"not null;index" json:"actor_user_id"`

	//Actionは操作の種類（ADJUST_STOCK / UPDATE_MEDICINE など）。
	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	//対象の種類（medicine / user）。
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`

	//対象のID。
	ResourceID int64 `gorm:"not null;index" json:"resource_id"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before_json"`

	//JSON文字列で保存する。
	AfterJSON string `gorm:"type:text" json:"after_json"`

	//作成時刻
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
