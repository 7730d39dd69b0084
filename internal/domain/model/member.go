package model

// Member 會員, Point 為站內點數餘額, 只有結帳流程會扣款
type Member struct {
	ID    int64  `gorm:"primaryKey" json:"id"`
	Email string `gorm:"unique;not null;type:varchar(100)" json:"email"`
	Name  string `gorm:"not null;type:varchar(50)" json:"name"`
	Point int64  `gorm:"not null;default:0;check:chk_members_point,point >= 0" json:"point"`
	BaseModel
}

// MemberAddress 收件地址, 結帳時複製成訂單的出貨快照
type MemberAddress struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	MemberID  int64  `gorm:"not null;index" json:"member_id"`
	Name      string `gorm:"not null;type:varchar(50)" json:"name"`
	Phone     string `gorm:"not null;type:varchar(30)" json:"phone"`
	Address   string `gorm:"not null;type:varchar(255)" json:"address"`
	Detail    string `gorm:"type:varchar(255)" json:"detail"`
	Zipcode   string `gorm:"type:varchar(10)" json:"zipcode"`
	IsDefault bool   `gorm:"not null" json:"is_default"`
	BaseModel
}

func (a *MemberAddress) Snapshot() ShippingSnapshot {
	return ShippingSnapshot{
		ReceiverName:  a.Name,
		ReceiverPhone: a.Phone,
		Address:       a.Address,
		AddressDetail: a.Detail,
		Zipcode:       a.Zipcode,
	}
}
