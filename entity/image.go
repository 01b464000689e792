package entity

import "time"

// ImageCriteria is the fixed filter set used to pick a machine image. Every
// field must match (logical AND).
type ImageCriteria struct {
	NamePattern         string `json:"name_pattern"`
	Architecture        string `json:"architecture"`
	VirtualizationClass string `json:"virtualization_class"`
	RootStorageClass    string `json:"root_storage_class"`
	PublisherID         string `json:"publisher_id"`
}

// CatalogImage is an image as reported by the catalog. CreationDate may be empty.
type CatalogImage struct {
	ID           string
	CreationDate string
}

// ImageCandidate is a dated image chosen by the resolver
type ImageCandidate struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}
