// Package flatten reads entity shapes as relational table sources.
//
// A plain shape reads its table. A table-per-concrete-type hierarchy reads
// the UNION ALL of its selected subtype tables, each branch padded with
// typed NULLs to the shape's canonical column list and tagged with a
// discriminator literal. When a single subtype is selected its table is
// read directly.
package flatten
