package model

import "time"

// CartLine 購物車明細
// (member_id, product_id, option_id) 唯一, 重複加入只會合併數量
type CartLine struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	MemberID  int64     `gorm:"not null;index" json:"member_id"`
	ProductID int64     `gorm:"not null" json:"product_id"`
	OptionID  *int64    `json:"option_id"`
	Quantity  int       `gorm:"not null;check:chk_cart_lines_quantity,quantity >= 1" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *CartLine) Selector() OptionSelector {
	return SelectorFromColumn(c.OptionID)
}

// CartKey 購物車明細的唯一鍵
type CartKey struct {
	MemberID  int64
	ProductID int64
	OptionID  int64
}

func (c *CartLine) Key() CartKey {
	k := CartKey{MemberID: c.MemberID, ProductID: c.ProductID}
	if c.OptionID != nil {
		k.OptionID = *c.OptionID
	}
	return k
}
