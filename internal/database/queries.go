package database

// Moderation audit queries
const (
	InsertFlagEventQuery = `
		INSERT INTO moderation_events (
			contact_id, contact_id_hash, term, term_count, warned, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	SelectRecentFlagEventsQuery = `
		SELECT id, contact_id, term, term_count, warned, created_at
		FROM moderation_events
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	SelectFlagEventsByContactQuery = `
		SELECT id, contact_id, term, term_count, warned, created_at
		FROM moderation_events
		WHERE contact_id_hash = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	SelectTermTotalsQuery = `
		SELECT term, COUNT(*)
		FROM moderation_events
		GROUP BY term
	`

	DeleteOldFlagEventsQuery = `
		DELETE FROM moderation_events
		WHERE created_at < ?
	`
)
