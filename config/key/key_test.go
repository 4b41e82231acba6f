// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package key

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChain_Key(t *testing.T) {
	testCases := []struct {
		Name  string
		Chain Chain
		Key   string
	}{
		{Name: "empty", Chain: Chain{}, Key: ""},
		{Name: "single", Chain: Chain{Name("export")}, Key: "export"},
		{Name: "nested", Chain: Chain{Name("export"), Name("address")}, Key: "export.address"},
		{Name: "nested chain", Chain: Chain{Name("a"), Chain{Name("b"), Name("c")}}, Key: "a.b.c"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			require.Equal(t, testCase.Key, testCase.Chain.Key())
		})
	}
}

func TestSplit(t *testing.T) {
	t.Run("will drop empty elements", func(t *testing.T) {
		require.Equal(t, Chain{Name("export"), Name("address")}, Split("export__address__", "__"))
	})

	t.Run("will return a single element chain", func(t *testing.T) {
		t.Run("if the separator is absent", func(t *testing.T) {
			require.Equal(t, Chain{Name("NOTIFICATION_BACKEND")}, Split("NOTIFICATION_BACKEND", "__"))
		})
	})
}
