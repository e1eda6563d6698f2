// Package exp provides the expression tree used for query qualifiers,
// orderings and result columns, and the typed Property builders that produce
// it.
//
// Expression is a sealed interface using the marker method pattern. Only
// types in this package implement it, so every interpreter can switch
// exhaustively over the node set:
//
//	switch n := e.(type) {
//	case *Path:
//	case *Scalar:
//	case *Param:
//	case *Comparison:
//	case *Like:
//	case *In:
//	case *Between:
//	case *Bool:
//	case *Not:
//	case *Function:
//	case *Aggregate:
//	case *List:
//	case *Subquery:
//	case *Exists:
//	}
//
// There are two interpreters over the same tree. Match/Evaluate in this
// package walk in-memory objects through package access; package translate
// renders the tree as SQL. Both use SQL three-valued logic: a comparison with
// a NULL operand is UNKNOWN, NOT UNKNOWN is UNKNOWN, and only TRUE matches.
//
// Relationship paths are evaluated the way SQL joins them. Every relationship
// prefix of every path in a qualifier is bound once per "join row": to-many
// relationships fan out into one row per element, an empty or nil
// relationship drops the row unless the segment carries the outer join
// marker "+", in which case the row is kept with a nil target. An object
// matches if any of its join rows matches. This keeps in-memory filtering
// identical to the SQL result, including under NOT.
//
// Trees are immutable once built. Params and Transform return new trees;
// DeepCopy gives an independent copy for reuse across queries.
package exp
