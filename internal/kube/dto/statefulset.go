package dto

type StatefulSetSummaryDTO struct {
	MetaDTO
	DesiredReplicas int32 `json:"desiredReplicas"`
	CurrentReplicas int32 `json:"currentReplicas"`
}
