// Package api contains the request contracts of the quality-check HTTP API.
package api

// PaginationRequest represents common pagination parameters
type PaginationRequest struct {
	Offset int `json:"offset" query:"offset" validate:"min=0"`
	Limit  int `json:"limit" query:"limit" validate:"min=0,max=5000"`
}

// StartRunRequest starts a new run. Warm lists sources to load eagerly.
type StartRunRequest struct {
	Warm []string `json:"warm,omitempty" validate:"omitempty,dive,oneof=working current history cds csbs nyt counties"`
}

// DatasetRequest selects a page of a dataset
type DatasetRequest struct {
	Name string `json:"name" param:"name" validate:"required,oneof=working current history cds csbs nyt counties"`
	PaginationRequest
}
