package pipeline

// Index is the per-run deduplication set of identity keys (canonical URLs).
// It is seeded from retained history and grows as retry-queue entries are
// reinjected and fresh candidates are accepted, so the same identity is
// never scheduled twice within one run even when two sources surface it.
type Index struct {
	seen map[string]struct{}
}

func NewIndex() *Index {
	return &Index{seen: make(map[string]struct{})}
}

func (i *Index) Contains(identity string) bool {
	_, ok := i.seen[identity]
	return ok
}

func (i *Index) Add(identity string) {
	i.seen[identity] = struct{}{}
}

func (i *Index) Len() int {
	return len(i.seen)
}
