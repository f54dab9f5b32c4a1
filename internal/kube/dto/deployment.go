package dto

type DeploymentSummaryDTO struct {
	MetaDTO
	DesiredReplicas   int32 `json:"desiredReplicas"`
	AvailableReplicas int32 `json:"availableReplicas"`
}
