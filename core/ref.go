package fastdb

import (
	"fmt"

	"github.com/meigma/fastdb/core/internal/format"
)

// FeatureRef addresses a feature by layer and feature index.
// Stored references hold 16 bits of layer and 24 bits of feature index.
type FeatureRef struct {
	Layer   uint16
	Feature uint32
}

func (r FeatureRef) String() string {
	return fmt.Sprintf("%d:%d", r.Layer, r.Feature)
}

// storable reports whether the feature index fits a stored reference.
func (r FeatureRef) storable() bool {
	return r.Feature <= format.MaxRefFeature
}

func readRef(b []byte) FeatureRef {
	layer, feature := format.Ref(b)
	return FeatureRef{Layer: layer, Feature: feature}
}
