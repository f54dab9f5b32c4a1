package dto

import "time"

// MetaDTO is the part every summary shares. AgeRelative is filled in when the
// response is built and is never stored.
type MetaDTO struct {
	Name        string            `json:"name"`
	Namespace   string            `json:"namespace"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	CreatedAt   time.Time         `json:"createdAt"`
	AgeRelative string            `json:"ageRelative"`
}
