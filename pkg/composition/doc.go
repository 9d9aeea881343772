// Package composition models the local element/model directory of the
// provisioner: the fixed set of elements the device exposes and the models
// hosted on each element.
//
// The directory is read-only for everyone except the registry core, which
// mutates exactly two per-model pieces of state: the application key binding
// slots and the publication settings. Everything else (element layout, model
// identifiers) is fixed at construction.
package composition
