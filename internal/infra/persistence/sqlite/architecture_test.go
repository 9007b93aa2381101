package sqlite

import (
	"testing"

	"grimoire/testutil"
)

func TestStoreDependsOnDomainOnly(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "snapshot stores depend on pkg/domain only")
}
