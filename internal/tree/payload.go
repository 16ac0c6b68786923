package tree

// Payload is what a node stands for: an Entity, a Group or a Root.
// The set of implementations is closed; switch on the concrete type.
type Payload interface {
	isPayload()
}

// Entity is a node backed by an item store record.
type Entity struct {
	LocalID string
}

// GroupKind distinguishes the two kinds of synthetic grouping nodes.
type GroupKind int

// Group kinds.
const (
	// GroupLinkedNotebook holds the items of one linked notebook.
	GroupLinkedNotebook GroupKind = iota + 1
	// GroupStack holds the notebooks of one stack.
	GroupStack
)

func (k GroupKind) String() string {
	switch k {
	case GroupLinkedNotebook:
		return "linked_notebook"
	case GroupStack:
		return "stack"
	default:
		return "unknown"
	}
}

// GroupKey identifies a group node. Linked notebook groups are keyed by guid
// only; stacks by name within their partition.
type GroupKey struct {
	Kind               GroupKind
	Name               string
	LinkedNotebookGUID string
}

// LinkedNotebookGroup returns the key of a linked notebook group.
func LinkedNotebookGroup(guid string) GroupKey {
	return GroupKey{Kind: GroupLinkedNotebook, LinkedNotebookGUID: guid}
}

// StackGroup returns the key of a stack group within a partition.
func StackGroup(name, linkedNotebookGUID string) GroupKey {
	return GroupKey{Kind: GroupStack, Name: name, LinkedNotebookGUID: linkedNotebookGUID}
}

// Group is a synthetic node partitioning entities. It is removed as soon as
// its last child goes away.
type Group struct {
	Key GroupKey
}

// Root is either the invisible top level root or the visible all items root.
type Root struct {
	AllItems bool
}

func (Entity) isPayload() {}
func (Group) isPayload()  {}
func (Root) isPayload()   {}
