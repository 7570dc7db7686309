package build

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestFingerprintProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234) // reproducible
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("deterministic across repeated calls", prop.ForAll(
		func(data []byte) bool {
			return Fingerprint(data) == Fingerprint(data)
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("digest is fixed-length lowercase hex", prop.ForAll(
		func(data []byte) bool {
			digest := Fingerprint(data)
			if len(digest) != 64 {
				return false
			}
			for _, c := range digest {
				if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("cache round-trips any digest it stores", prop.ForAll(
		func(path string, data []byte) bool {
			if path == "" {
				return true
			}
			cache := NewCache()
			digest := Fingerprint(data)
			cache.Update(path, digest)
			return !cache.NeedsRebuild(path, digest)
		},
		gen.AlphaString(),
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}
