package memory_test

import (
	"testing"

	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/store/memory"
	"github.com/xraph/treasury/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}
