package validator

import "github.com/maypok86/otter"

// CompletionCache bounds repeated `completeJob` calls from recomputing the
// full per-study completion predicate when cell counts are large, keyed by
// studyId. Grounded on the teacher's otter-backed LatencyTable.
type CompletionCache struct {
	cache otter.Cache[string, StudyCompletion]
}

// NewCompletionCache builds a cache bounded to maxStudies entries.
func NewCompletionCache(maxStudies int) *CompletionCache {
	cache, err := otter.MustBuilder[string, StudyCompletion](maxStudies).
		Cost(func(_ string, _ StudyCompletion) uint32 { return 1 }).
		Build()
	if err != nil {
		panic("validator: failed to create completion cache: " + err.Error())
	}
	return &CompletionCache{cache: cache}
}

// Get returns the cached completion verdict for studyID, if present.
func (c *CompletionCache) Get(studyID string) (StudyCompletion, bool) {
	return c.cache.Get(studyID)
}

// Set stores (or replaces) the completion verdict for studyID.
func (c *CompletionCache) Set(studyID string, completion StudyCompletion) {
	c.cache.Set(studyID, completion)
}

// Invalidate drops a study's cached verdict, forcing recomputation on the
// next completeJob call (use after any completed/failed count changes).
func (c *CompletionCache) Invalidate(studyID string) {
	c.cache.Delete(studyID)
}

// Close releases resources held by the underlying cache.
func (c *CompletionCache) Close() {
	c.cache.Close()
}
