package driver

var SchemaQueries = []string{
	"CREATE CONSTRAINT upload_name IF NOT EXISTS FOR (u:Upload) REQUIRE u.name IS UNIQUE",
	"CREATE CONSTRAINT match_name IF NOT EXISTS FOR (m:Match) REQUIRE m.name IS UNIQUE",
	"CREATE INDEX row_id IF NOT EXISTS FOR (r:Row) ON (r.rowId)",
}

const (
	CreateUploadQuery = `
		OPTIONAL MATCH (existing:Upload {name: $name})
		WITH existing WHERE existing IS NULL
		CREATE (u:Upload {
			name: $name,
			processed: $processed,
			outOf: $outOf,
			timeStamp: $timeStamp,
			mappings: $mappings,
			status: $status
		})
		RETURN u
	`

	GetUploadQuery = `
		MATCH (u:Upload {name: $name})
		RETURN u
	`

	ListUnfinishedUploadsQuery = `
		MATCH (u:Upload)
		WHERE u.status = $status
		RETURN u
		ORDER BY u.timeStamp, u.name
		SKIP $skip LIMIT $limit
	`

	ListFinishedUploadsQuery = `
		MATCH (u:Upload)
		WHERE u.status <> $status
		RETURN u
		ORDER BY u.timeStamp DESC, u.name
		SKIP $skip LIMIT $limit
	`

	FinishUploadQuery = `
		MATCH (u:Upload {name: $name})
		SET u.status = $status, u.processed = $processed
		RETURN u
	`

	// WriteBatchHeader opens a batch write; one CREATE per Field label is
	// appended after it.
	WriteBatchHeader = `
		MATCH (upload:Upload {name: $upload})
		SET upload.processed = $processed
		WITH upload
		UNWIND $rows AS row
		CREATE (upload)-[:OWNS]->(r:Row {rowId: row.rowId})
	`

	RowFieldsQuery = `
		MATCH (src:Row)-[:OWNS]->(n)
		WHERE elementId(n) = $id
		MATCH (src)-[:OWNS]->(r)
		RETURN elementId(src) AS row, labels(r) AS labels, r.value AS value
		ORDER BY elementId(r)
	`

	// JoinCandidatesQuery takes the Field label as its single format verb.
	JoinCandidatesQuery = `
		MATCH (src:Row)-[:OWNS]->(n:%s)
		WHERE n.value = $value AND NOT elementId(src) IN $exclude
		WITH DISTINCT src
		ORDER BY elementId(src)
		LIMIT $rows
		MATCH (src)-[:OWNS]->(r)
		RETURN elementId(src) AS row, labels(r) AS labels, r.value AS value
		ORDER BY row, elementId(r)
	`

	ListLabelsQuery = `
		CALL db.labels() YIELD label
		RETURN label
		ORDER BY label
	`

	CreateMatchQuery = `
		OPTIONAL MATCH (existing:Match {name: $name})
		WITH existing WHERE existing IS NULL
		CREATE (m:Match {
			name: $name,
			processed: $processed,
			outOf: $outOf,
			completed: $completed,
			timeStamp: $timeStamp,
			error: ''
		})
		RETURN m
	`

	GetMatchQuery = `
		MATCH (m:Match {name: $name})
		RETURN m
	`

	UpdateMatchProgressQuery = `
		MATCH (m:Match {name: $name})
		SET m.processed = $processed
		RETURN m
	`

	CompleteMatchQuery = `
		MATCH (m:Match {name: $name})
		SET m.completed = true,
			m.error = CASE WHEN $error = '' THEN coalesce(m.error, '') ELSE $error END
		RETURN m
	`

	ListMatchesQuery = `
		MATCH (m:Match)
		RETURN m
		ORDER BY m.timeStamp DESC, m.name
		SKIP $skip LIMIT $limit
	`
)
