package dto

type AddCartLineRequest struct {
	ProductID int64  `json:"product_id"`
	OptionID  *int64 `json:"option_id,omitempty"`
	Quantity  *int   `json:"quantity,omitempty"`
}

// Qty 未帶數量時預設 1
func (r AddCartLineRequest) Qty() int {
	if r.Quantity == nil {
		return 1
	}
	return *r.Quantity
}

type AddCartLineResponse struct {
	CartLineID int64 `json:"cart_line_id"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type ChangeOptionRequest struct {
	OptionID *int64 `json:"option_id"`
}
