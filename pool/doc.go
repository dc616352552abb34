// Package pool
// Author: momentics <momentics@gmail.com>
//
// Fixed-size buffer pooling for I/O paths of the diagnostics agent.
//
// A BufferPool is a watermark allocator: it preallocates a number of equally
// sized buffers, grows by one whenever a caller finds it empty, and never
// shrinks. Allocate and free are O(1) stack operations under a single mutex.
// Growth is announced to observers registered with OnExpanded so memory
// footprint (TotalBufferCount * BufferSize) can be tracked.
package pool
