// Package alerts turns critical series classifications into webhook
// notifications. Each (metric, group) pair fires at most one alert at a
// time, re-fires are cooldown-suppressed, and leaving the critical bucket
// produces a resolve event. Delivery failures are logged, never fatal.
package alerts
