// Package monitor defines the types and interfaces shared by the stock
// availability probe: the check target, the rendered page handed from the
// fetchers to the detector, the verdict, and the errors that shape a run.
package monitor
