package model

import (
	"errors"
	"strconv"
)

var ErrInvalidSelector = errors.New("option id must be positive")

// OptionSelector 指定購物車或訂單明細選的是哪個選項
// 零值代表沒有選項, 落地時是可為 NULL 的 option_id
type OptionSelector struct {
	optionID int64
}

func NoOption() OptionSelector {
	return OptionSelector{}
}

func OptionRef(id int64) OptionSelector {
	return OptionSelector{optionID: id}
}

// ParseOptionSelector 只在 API 邊界呼叫一次
func ParseOptionSelector(id *int64) (OptionSelector, error) {
	if id == nil {
		return NoOption(), nil
	}
	if *id <= 0 {
		return OptionSelector{}, ErrInvalidSelector
	}
	return OptionRef(*id), nil
}

// SelectorFromColumn 由資料庫欄位還原
func SelectorFromColumn(id *int64) OptionSelector {
	if id == nil {
		return NoOption()
	}
	return OptionRef(*id)
}

func (s OptionSelector) IsNone() bool {
	return s.optionID == 0
}

func (s OptionSelector) OptionID() (int64, bool) {
	return s.optionID, s.optionID != 0
}

// Column 轉為資料庫欄位值
func (s OptionSelector) Column() *int64 {
	if s.optionID == 0 {
		return nil
	}
	id := s.optionID
	return &id
}

func (s OptionSelector) Equal(other OptionSelector) bool {
	return s.optionID == other.optionID
}

func (s OptionSelector) String() string {
	if s.optionID == 0 {
		return "none"
	}
	return strconv.FormatInt(s.optionID, 10)
}
