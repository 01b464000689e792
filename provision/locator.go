package provision

import (
	"strings"

	"github.com/tnqbao/gau-compute-dispatcher/entity"
)

// CanonicalArtifactLocator strips the upload-pending marker from a record's
// artifact reference, e.g. "bucket/job42.bin.Input" -> "bucket/job42.bin".
// A reference without the marker, or one that is only the marker, is malformed.
func CanonicalArtifactLocator(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if !strings.HasSuffix(ref, entity.PendingArtifactSuffix) {
		return "", entity.WrapMalformed("artifact reference has no " + entity.PendingArtifactSuffix + " marker")
	}
	canonical := strings.TrimSuffix(ref, entity.PendingArtifactSuffix)
	if canonical == "" || strings.HasSuffix(canonical, "/") {
		return "", entity.WrapMalformed("artifact reference has no object name")
	}
	return canonical, nil
}
