package version_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowcore/differential/pkg/version"
)

func TestInitBinaryVersionDefaultsToZero(t *testing.T) {
	version.InitBinaryVersion()
	assert.GreaterOrEqual(t, version.Binary, 0)
}

func TestDefaultVersionStrings(t *testing.T) {
	assert.NotEmpty(t, version.Version)
	assert.NotEmpty(t, version.Commit)
	assert.NotEmpty(t, version.Date)
}
