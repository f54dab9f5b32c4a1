package dto

type NamespaceSummaryDTO struct {
	MetaDTO
	Phase string `json:"phase"`
}
