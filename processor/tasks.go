package processor

// TaskMap maps enclosing elements to the members that need code generation.
// Keys are kept in the order they were first added and members in the order
// they were discovered, so output built from a TaskMap is deterministic for a
// given input order. A key never maps to an empty list.
type TaskMap struct {
	keys  []*Element
	tasks map[*Element][]*Element
}

// NewTaskMap returns an empty task map.
func NewTaskMap() *TaskMap {
	return &TaskMap{tasks: map[*Element][]*Element{}}
}

// Add appends member to the tasks of enclosing.
func (m *TaskMap) Add(enclosing, member *Element) {
	if _, ok := m.tasks[enclosing]; !ok {
		m.keys = append(m.keys, enclosing)
	}
	m.tasks[enclosing] = append(m.tasks[enclosing], member)
}

// Len returns the number of enclosing elements.
func (m *TaskMap) Len() int {
	return len(m.keys)
}

// Keys returns the enclosing elements in insertion order.
func (m *TaskMap) Keys() []*Element {
	return append([]*Element(nil), m.keys...)
}

// Members returns the members recorded for the given enclosing element, or nil
// if it has none.
func (m *TaskMap) Members(enclosing *Element) []*Element {
	members := m.tasks[enclosing]
	if members == nil {
		return nil
	}
	return append([]*Element(nil), members...)
}

// Range calls fn for every enclosing element, in insertion order, until fn
// returns false.
func (m *TaskMap) Range(fn func(enclosing *Element, members []*Element) bool) {
	for _, k := range m.keys {
		if !fn(k, m.tasks[k]) {
			return
		}
	}
}

// CollectTasks builds the task map for a round. Every root whose qualified
// name passes the filter is scanned: each of its direct members is recorded
// once for every marker whose identity equals an entry in supported. A member
// with two supported markers is therefore recorded twice. Roots are visited in
// the given order and members in declaration order.
//
// The only error returned is the filter's configuration error.
func CollectTasks(roots []*Element, supported []string, filter *NamespaceFilter) (*TaskMap, error) {
	tasks := NewTaskMap()
	if len(supported) == 0 {
		return tasks, nil
	}
	for _, root := range roots {
		ok, err := filter.ShouldProcess(root.QualifiedName())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for _, member := range root.Members {
			for _, marker := range member.Markers {
				for _, s := range supported {
					if s == marker.Type {
						tasks.Add(root, member)
					}
				}
			}
		}
	}
	return tasks, nil
}
