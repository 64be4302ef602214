package backup

// SkipPredicate decides whether a file can be skipped because the remote
// already holds it. Pluggable so a content-hash check can replace the
// name-only default without touching the orchestration.
type SkipPredicate interface {
	// ShouldSkip is given the file's base name and whether the file is
	// large enough to have been split on a previous run.
	ShouldSkip(fileName string, large bool) bool
}

// NameSkipPredicate matches by name only against the remote listing:
// small files by exact name, large files by the name of their first
// chunk. A changed file with an unchanged name is therefore treated as
// already backed up; that is a documented limitation of the scheme, not
// an accident.
type NameSkipPredicate struct {
	existing map[string]struct{}
}

func NewNameSkipPredicate(existing map[string]struct{}) *NameSkipPredicate {
	if existing == nil {
		existing = map[string]struct{}{}
	}
	return &NameSkipPredicate{existing: existing}
}

func (p *NameSkipPredicate) ShouldSkip(fileName string, large bool) bool {
	name := fileName
	if large {
		name = ChunkName(fileName, 1)
	}
	_, ok := p.existing[name]
	return ok
}

// skipNothing is used when no remote listing is available.
type skipNothing struct{}

func (skipNothing) ShouldSkip(string, bool) bool { return false }
