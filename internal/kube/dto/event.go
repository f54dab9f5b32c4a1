package dto

import "time"

type EventSummaryDTO struct {
	MetaDTO
	Type               string     `json:"type"`
	Reason             string     `json:"reason"`
	Message            string     `json:"message"`
	InvolvedObjectName string     `json:"involvedObjectName"`
	Timestamp          *time.Time `json:"timestamp"`
}
