package core

// ViewTag selects which of a STREAM preparer's two emitted successor
// producers a View resolves to.
type ViewTag int

const (
	// ForPreparationData selects the successor producer that computed the
	// preparer's own training-time output for each example it processed.
	ForPreparationData ViewTag = iota
	// ForNewData selects the successor producer that applies the
	// preparer's learned PreparedTransformer to examples outside the
	// preparation set (ordinary apply-phase traffic).
	ForNewData
)

// View is a placeholder for a value that only becomes available once its
// parent PreparableTransformer has finished preparing: the DAG executor
// splices the view out, right after the parent's Preparer.finish runs,
// replacing it with the appropriate successor producer (see
// internal/execengine's prepare-phase splice-and-continue step). A View
// must never survive into the apply-phase DAG; graph.Build rejects a
// DAG any of whose outputs is one.
type View struct {
	base
	tag    ViewTag
	parent *PreparableTransformer
}

// NewView creates a view over a preparable transformer's preparation-time
// output, selected by tag.
func NewView(parent *PreparableTransformer, tag ViewTag) *View {
	return &View{
		base:   base{handle: NewHandle("view"), policy: HandleEquality, parents: []Producer{parent}},
		tag:    tag,
		parent: parent,
	}
}

func (v *View) Tag() ViewTag                       { return v.tag }
func (v *View) PreparableParent() *PreparableTransformer { return v.parent }

func (v *View) ValueHash() uint64 { return v.cachedHash(func() uint64 { return fnv1a64(0, v.handle) }) }

func (v *View) ValueEqual(other Producer) bool {
	o, ok := other.(*View)
	return ok && o.handle == v.handle
}

func (v *View) WithParents(parents []Producer) Producer {
	if len(parents) != 1 {
		panic("dagml: view must have exactly one parent")
	}
	parent, ok := parents[0].(*PreparableTransformer)
	if !ok {
		panic("dagml: view parent must be a PreparableTransformer")
	}
	clone := *v
	clone.parents = cloneParents(parents)
	clone.parent = parent
	clone.hashOnce = false
	return &clone
}
