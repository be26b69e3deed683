// Package podcast orchestrates episode generation.
//
// RequestEpisode validates a request synchronously, records a pending episode
// through the job registry, and returns. A goroutine per episode then runs the
// pipeline: corpus assembly, chunk selection, script synthesis, speech
// synthesis with bounded parallelism, and WAV assembly. The audio file is
// written to a temporary path and renamed before the episode is marked
// completed, so a consumer never sees a reference to partial audio. Any stage
// error fails the episode with a recorded reason; there is no automatic retry.
package podcast
