// Package app provides the application service layer.
//
// Owns fusion sessions: one SamplingLoop, one window and the push-style modality inputs per session.
// Sits between HTTP handlers and the fusion engine. Depends on domain interfaces, not concrete adapters.
package app
