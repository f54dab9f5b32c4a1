package dto

type PodSummaryDTO struct {
	MetaDTO
	PrimaryImage string `json:"primaryImage"`
}
