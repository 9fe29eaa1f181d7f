package reconciler

// workingSet is an insertion-ordered collection of the entities mutated
// during one batch. The first Put of a key fixes its position; later Puts
// overwrite the value in place.
type workingSet[V any] struct {
	order []string
	items map[string]V
}

func newWorkingSet[V any]() *workingSet[V] {
	return &workingSet[V]{
		items: make(map[string]V),
	}
}

func (s *workingSet[V]) Get(key string) (V, bool) {
	value, ok := s.items[key]
	return value, ok
}

func (s *workingSet[V]) Put(key string, value V) {
	if _, ok := s.items[key]; !ok {
		s.order = append(s.order, key)
	}
	s.items[key] = value
}

func (s *workingSet[V]) Len() int {
	return len(s.items)
}

// Values returns the entities in first-touch order
func (s *workingSet[V]) Values() []V {
	values := make([]V, 0, len(s.order))
	for _, key := range s.order {
		values = append(values, s.items[key])
	}
	return values
}
