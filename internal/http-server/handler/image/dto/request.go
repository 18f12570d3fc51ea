package dto

type NormalizeQuery struct {
	MaxDimension int   `validate:"omitempty,gt=0,lte=16384"`
	MaxBytes     int64 `validate:"omitempty,gt=0"`
}

type GetImageRequest struct {
	ID      string `validate:"required"`
	Variant string `validate:"omitempty,oneof=original normalized"`
}

type StatusRequest struct {
	ID string `validate:"required"`
}

type DeleteRequest struct {
	ID string `validate:"required"`
}
