package entity

import "time"

// UploadGrant authorizes exactly one PUT of ContentType to ObjectKey until ExpiresAt.
type UploadGrant struct {
	WriteURL     string    `json:"url"`
	StoreLocator string    `json:"bucket"`
	ObjectKey    string    `json:"object_key"`
	ContentType  string    `json:"content_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (g *UploadGrant) Expired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

// ArtifactReference is the reference a job record stores for this upload
func (g *UploadGrant) ArtifactReference() string {
	return g.StoreLocator + "/" + g.ObjectKey
}
