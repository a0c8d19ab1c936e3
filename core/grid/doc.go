// Package grid models which actors can deliver power to which others and
// partitions the grid into circuits: groups of suppliers that can all reach
// the same fixed set of demanders.
//
// Reachability is computed on a gonum directed graph built from the
// connectivity matrix. An edge j → i exists when matrix[i][j] is true. The
// diagonal is ignored, so an actor never reaches itself even when it lies on
// a cycle such as battery → bus → battery.
package grid
