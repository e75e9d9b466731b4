// Package scheduler drives duties through time: it periodically starts
// assigned duties whose window has begun and completes running duties whose
// window has ended. It also builds per-vehicle day plans.
package scheduler
