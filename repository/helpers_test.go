package repository

import (
	"slices"

	"github.com/google/go-cmp/cmp"
)

func cmpSortStrings() cmp.Option {
	return cmp.Transformer("sort", func(in []string) []string {
		out := slices.Clone(in)
		slices.Sort(out)
		return out
	})
}
