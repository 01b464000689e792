// Package provision turns job-created notifications into compute launches.
//
// For each created job record the Provisioner resolves the newest machine image
// matching a fixed operator filter, renders a bootstrap script that hands the
// job parameters to the worker as inert shell literals, and submits exactly one
// launch request. It keeps no state between invocations; redelivered events are
// bounded by the launch client token and an optional launch marker.
package provision
