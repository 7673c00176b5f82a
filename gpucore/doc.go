// Package gpucore defines the device abstraction the batched tile backend
// draws through.
//
// The tile pipeline is written once against [Device], while thin adapters
// translate the calls to a concrete graphics API:
//
//	               +-----------------+
//	               |   gpu.Backend   |
//	               | (batch + cache) |
//	               +--------+--------+
//	                        |
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	|  device/wgpu    |          |  device/opengl  |
//	|  (hal.Device)   |          |  (GL 3.3 core)  |
//	+-----------------+          +-----------------+
//
// # Resource Management
//
// GPU resources are referred to by opaque IDs ([ProgramID], [VertexArrayID],
// [BufferID], [TextureID]). Adapters keep the mapping between IDs and real
// resources. The zero ID means "nothing bound".
//
// # State model
//
// Device mirrors a small immediate-mode state machine: bind a program,
// vertex array, buffer and texture, upload vertex data, then draw a range of
// the current buffer. Adapters that record command buffers translate this
// into their own passes and submit on [Device.Submit].
package gpucore
