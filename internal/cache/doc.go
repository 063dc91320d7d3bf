// Package cache provides the memo cache used for derived GPU descriptors.
//
// [Cache] maps a comparable key to a value built on first use. It is used
// for values that are cheap to rebuild but should be built once per frame
// loop (vertex layouts derived from the stride table) and for values whose
// creation must not be duplicated (pipelines). A limit of 0 disables
// eviction; entries holding GPU handles are created with limit 0 so handles
// stay valid until explicitly released.
package cache
