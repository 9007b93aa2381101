package catalog_test

import (
	"testing"

	"grimoire/testutil"
)

// TestNoInfraImports ensures production code reaches storage through the
// core and blob facades only.
func TestNoInfraImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InfraImportForbidden, "adapters must not import storage drivers")
}
