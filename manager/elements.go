package manager

import "fmt"

// ElementsForModel implements spec.md §4.3's elements_for_model: expand
// every declared compute element's multiplicity vector into the set of
// expected concrete instance names (invariant 6, spec.md §8: exactly
// product(multiplicity) distinct names per element, covering the full
// Cartesian index space).
func ElementsForModel(t *Topology) []string {
	var out []string
	for _, e := range t.Elements {
		out = append(out, instancesForElement(e)...)
	}
	return out
}

// instancesForElement expands one element's multiplicity vector.
// Multiplicity [] (scalar) yields exactly [name]; multiplicity [n1,
// n2, ...] yields the full Cartesian product n1*n2*... names of the
// form "name[i][j]...".
func instancesForElement(e ElementSpec) []string {
	if len(e.Multiplicity) == 0 {
		return []string{e.Name}
	}
	indices := make([][]int, len(e.Multiplicity))
	for i, n := range e.Multiplicity {
		idx := make([]int, n)
		for j := range idx {
			idx[j] = j
		}
		indices[i] = idx
	}
	var out []string
	var walk func(dim int, suffix string)
	walk = func(dim int, suffix string) {
		if dim == len(indices) {
			out = append(out, e.Name+suffix)
			return
		}
		for _, i := range indices[dim] {
			walk(dim+1, suffix+fmt.Sprintf("[%d]", i))
		}
	}
	walk(0, "")
	return out
}
