// Package harness checks that SQL execution and in-memory evaluation of the
// same query agree.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: gallery
//	description: "Relationship paths and windows over the gallery schema"
//	schema: ../../../schema/testdata/gallery.yaml
//	dialect: sqlite
//	in_list_limit: 2
//	data:
//	  Artist:
//	    - {id: 1, name: Picasso}
//	  Painting:
//	    - {id: 1, title: Guernica, artistId: 1}
//	queries:
//	  - name: picasso_paintings
//	    entity: Painting
//	    where: "artist.name = 'Picasso'"
//	    order: [title]
//	    limit: 10
//	    expect: [1]
//	assertions:
//	  - type: sql_contains
//	    query: picasso_paintings
//	    text: "JOIN ARTIST"
//
// The schema path is relative to the scenario file. Data rows are keyed by
// attribute name and inserted through package batch.
//
// # Execution
//
// Every scenario runs in a fresh in-memory SQLite database. After the data
// is loaded each entity is read back and the objects are linked into a
// graph: a to-one relationship holds the related object, a to-many
// relationship a slice of them. Each query then runs twice, once as SQL and
// once over the graph, and the primary keys of both results must match: in
// order when the query has orderings, as sets otherwise.
//
// # Assertion Types
//
//   - sql_contains: the rendered SQL of a query contains a text
//   - row_count: a query returns exactly N rows
//   - final_state: a table row matching where has the expected column values
//
// # Golden Files
//
// RunWithGolden writes the rendered SQL, bound arguments and result keys of
// every query as canonical JSON and compares it with
// testdata/golden/<name>.golden.
package harness
