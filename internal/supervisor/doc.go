// Package supervisor runs external encoders and kills them when they stop
// making progress.
//
// A child moves through Spawning, Running and then one of Completed, Killed
// or Failed. While running, a Sampler reads its CPU usage once per interval
// and a Watchdog counts consecutive idle samples; when the count exceeds the
// limit the child is killed, the partial output removed after a grace
// period, and services.ErrStalled returned.
//
// The child's scheduling priority is lowered right after spawn. Platforms
// that cannot address another process fall back to lowering this process
// around the spawn, serialised by a process-wide mutex.
//
//go:generate mockgen -source=sampler.go -destination=mocks/sampler.go -package=mocks
package supervisor
