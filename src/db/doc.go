/*
This package contains lowish-level APIs for making queries to the forum's Postgres database. It maps query results onto Go types while still letting you write plain SQL.

The primary functions are Query and QueryIterator.

Query syntax

Arguments use placeholders like $1, $2, etc. and are passed straight through to pgx:

	forumIDs, err := db.QueryScalar[int](ctx, conn,
		`
		SELECT id
		FROM forum
		WHERE
			tree_id = ANY($1)
			AND kind = $2
		`,
		[]int{1, 3},
		models.ForumKindForum,
	)

(If you want to use a slice in your query, use Postgres arrays instead of IN.)

To query multiple columns at once, use a struct type with `db:"column_name"` tags and the special $columns placeholder:

	type Forum struct {
		ID    int    `db:"id"`
		Name  string `db:"name"`
		Level int    `db:"level"`
	}
	forums, err := db.Query[Forum](ctx, conn, `SELECT $columns FROM forum ORDER BY tree_id, lft`)
	// Resulting query:
	// SELECT id, name, level FROM forum ORDER BY tree_id, lft

When joining, include a table prefix in the placeholder with $columns{prefix}. Nested structs tagged with a name expand to prefixed columns, which is how a post and its topic come back in one row:

	type PostAndTopic struct {
		Post  Post  `db:"post"`
		Topic Topic `db:"topic"`
	}
	row, err := db.QueryOne[PostAndTopic](ctx, conn, `
		SELECT $columns
		FROM
			forum_post AS post
			JOIN forum_topic AS topic ON topic.id = post.topic_id
		WHERE post.id = $1
	`, postID)
	// Resulting query:
	// SELECT post.id, post.topic_id, ..., topic.id, topic.forum_id, ... FROM ...

A leading "---- Name" line in a query names it in perf output.
*/
package db
