// Package hnsw implements the layered proximity graph used for approximate
// nearest neighbor search.
//
// Nodes are addressed by dense slot indices assigned by the mapping layer.
// Removal tombstones a slot rather than unlinking it: the graph never
// compacts in place, so in-flight readers keep a consistent view and
// reclamation happens only through a full rebuild.
//
// The graph structure is guarded by a single read-write lock. Searches run
// concurrently with each other; inserts and removals exclude all other
// access. This favors search throughput and is the engine's primary
// serialization point.
package hnsw
